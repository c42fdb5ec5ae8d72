package handlers

import (
	"net/http"

	"github.com/uyjoy/site/models"
	"github.com/uyjoy/site/pkg"
	"github.com/uyjoy/site/pkg/i18n"
	"github.com/uyjoy/site/services"
)

// PropertyHandler serves the catalog as JSON for client widgets.
// The locale comes from ?locale= and defaults to uz.
type PropertyHandler struct {
	propertyService services.PropertyService
}

// NewPropertyHandler, constructor.
func NewPropertyHandler(propertyService services.PropertyService) *PropertyHandler {
	return &PropertyHandler{propertyService: propertyService}
}

// List godoc
// One page of localized listings. Filters are lenient: invalid values are
// dropped instead of failing the request.
//
// GET /api/properties?locale=&district=&deal=&type=&rooms=&price_min=&price_max=&area_min=&area_max=&sort=&page=&page_size=
//
//	Response: { "success": true, "data": {
//	  "items": [ { "id": 7, "title": "...", "price_label": "$ 85,000", "url": "/ru/properties/7", ... } ],
//	  "total": 31, "page": 1, "page_size": 12, "pages": 3 } }
func (h *PropertyHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := models.ParseFilter(r.URL.Query())

	page, err := h.propertyService.List(r.Context(), apiLocale(r), filter)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, page)
}

// Get godoc
// GET /api/properties/{id}?locale=
// 404 for an unknown id, 502 when the property API is unreachable.
func (h *PropertyHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := services.ParsePropertyID(r.PathValue("id"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	detail, err := h.propertyService.Get(r.Context(), apiLocale(r), id)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, detail)
}

// Images godoc
// GET /api/properties/{id}/images
// Response: { "success": true, "data": { "images": ["https://cdn.example.com/7/1.jpg", ...] } }
func (h *PropertyHandler) Images(w http.ResponseWriter, r *http.Request) {
	id, err := services.ParsePropertyID(r.PathValue("id"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	images, err := h.propertyService.Images(r.Context(), id)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string][]string{"images": images})
}

// Districts godoc
// GET /api/districts?locale=
func (h *PropertyHandler) Districts(w http.ResponseWriter, r *http.Request) {
	districts, err := h.propertyService.Districts(r.Context(), apiLocale(r))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, districts)
}

// apiLocale reads ?locale=, then Accept-Language.
func apiLocale(r *http.Request) string {
	if l := r.URL.Query().Get("locale"); i18n.IsSupported(l) {
		return l
	}
	return i18n.Match(r.Header.Get("Accept-Language"))
}
