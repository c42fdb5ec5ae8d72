package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/uyjoy/site/models"
	"github.com/uyjoy/site/pkg"
	"github.com/uyjoy/site/pkg/i18n"
	"github.com/uyjoy/site/pkg/ratelimit"
	"github.com/uyjoy/site/services"
)

const homeFeaturedCount = 6

// PageHandler renders the public HTML pages. The locale middleware runs in
// front of every route here.
type PageHandler struct {
	properties services.PropertyService
	leads      services.LeadService
	seo        services.SEOService
	renderer   *Renderer
	log        *zap.Logger
}

// NewPageHandler is the constructor.
func NewPageHandler(
	properties services.PropertyService,
	leads services.LeadService,
	seo services.SEOService,
	renderer *Renderer,
	log *zap.Logger,
) *PageHandler {
	return &PageHandler{
		properties: properties,
		leads:      leads,
		seo:        seo,
		renderer:   renderer,
		log:        log,
	}
}

// Home godoc
// GET /{locale}/
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	locale := LocaleFrom(ctx)
	loc := i18n.NewLocalizer(locale)

	featured, err := h.properties.Featured(ctx, locale, homeFeaturedCount)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	data := h.renderer.NewPageData(r, h.seo.PageMeta(services.PageInput{
		Locale:      locale,
		Path:        "/",
		Description: loc.T("site.description"),
	}))
	data.Featured = featured
	data.Districts = h.districts(r, locale)
	h.renderer.Render(w, http.StatusOK, PageHome, data)
}

// Catalog godoc
// GET /{locale}/properties?district=&deal=&type=&rooms=&price_min=&price_max=&area_min=&area_max=&sort=&page=
func (h *PageHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	locale := LocaleFrom(ctx)
	loc := i18n.NewLocalizer(locale)

	filter := models.ParseFilter(r.URL.Query())
	filter.Normalize()

	page, err := h.properties.List(ctx, locale, filter)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	title := loc.T("catalog.title")
	data := h.renderer.NewPageData(r, h.seo.PageMeta(services.PageInput{
		Locale:      locale,
		Path:        "/properties",
		Query:       filter.Query(),
		Title:       title,
		Description: loc.T("catalog.description"),
		NoIndex:     page.Total == 0,
		Breadcrumbs: []models.Breadcrumb{
			{Name: loc.T("nav.home"), URL: "/" + locale + "/"},
			{Name: title, URL: "/" + locale + "/properties"},
		},
	}))
	data.Catalog = page
	data.Filter = filter
	data.Districts = h.districts(r, locale)
	h.renderer.Render(w, http.StatusOK, PageCatalog, data)
}

// Property godoc
// GET /{locale}/properties/{id}
func (h *PageHandler) Property(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	locale := LocaleFrom(ctx)
	loc := i18n.NewLocalizer(locale)

	id, err := services.ParsePropertyID(r.PathValue("id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	detail, err := h.properties.Get(ctx, locale, id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	p := &detail.Property
	data := h.renderer.NewPageData(r, h.seo.PageMeta(services.PageInput{
		Locale:      locale,
		Path:        "/properties/" + strconv.FormatInt(id, 10),
		Title:       p.Title,
		Description: p.Summary,
		Image:       p.Cover,
		Property:    p,
		Breadcrumbs: []models.Breadcrumb{
			{Name: loc.T("nav.home"), URL: "/" + locale + "/"},
			{Name: loc.T("nav.catalog"), URL: "/" + locale + "/properties"},
			{Name: p.Title, URL: p.URL},
		},
	}))
	data.Detail = detail
	data.Form = ContactForm{PropertyID: id}
	h.renderer.Render(w, http.StatusOK, PageProperty, data)
}

// Contact godoc
// GET /{locale}/contact
func (h *PageHandler) Contact(w http.ResponseWriter, r *http.Request) {
	data := h.contactPage(r)
	data.Sent = r.URL.Query().Get("sent") == "1"
	h.renderer.Render(w, http.StatusOK, PageContact, data)
}

// SubmitContact godoc
// POST /{locale}/contact
// Post/Redirect/Get: success redirects to ?sent=1, invalid input re-renders
// the form with the entered values.
func (h *PageHandler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	locale := LocaleFrom(r.Context())
	loc := i18n.NewLocalizer(locale)

	r.Body = http.MaxBytesReader(w, r.Body, maxContactBody)
	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, pkg.ErrBadRequest)
		return
	}

	req := leadRequestFromForm(r)
	req.Locale = locale
	if req.PageURL == "" {
		req.PageURL = r.Referer()
	}

	_, err := h.leads.Submit(r.Context(), req, ratelimit.ExtractIP(r))
	if err == nil {
		http.Redirect(w, r, "/"+locale+"/contact?sent=1", http.StatusSeeOther)
		return
	}

	data := h.contactPage(r)
	data.Form = ContactForm{
		Name:       req.Name,
		Phone:      req.Phone,
		Message:    req.Message,
		PropertyID: req.PropertyID,
	}

	status := http.StatusInternalServerError
	var limited *services.RateLimitError
	var field *models.FieldError
	switch {
	case errors.As(err, &limited):
		status = http.StatusTooManyRequests
		w.Header().Set("Retry-After", strconv.Itoa(limited.RetryAfter))
		data.Form.Error = loc.TWithParams("validation.rate_limit", map[string]string{"seconds": strconv.Itoa(limited.RetryAfter)})
	case errors.As(err, &field):
		status = http.StatusUnprocessableEntity
		data.Form.Errors = map[string]string{field.Field: loc.T("validation." + field.Field)}
	default:
		h.log.Error("lead submit failed", zap.Error(err))
		data.Form.Error = loc.T("contact.error")
	}
	h.renderer.Render(w, status, PageContact, data)
}

func (h *PageHandler) contactPage(r *http.Request) *PageData {
	locale := LocaleFrom(r.Context())
	loc := i18n.NewLocalizer(locale)
	title := loc.T("contact.title")
	return h.renderer.NewPageData(r, h.seo.PageMeta(services.PageInput{
		Locale:      locale,
		Path:        "/contact",
		Title:       title,
		Description: loc.T("contact.description"),
		Breadcrumbs: []models.Breadcrumb{
			{Name: loc.T("nav.home"), URL: "/" + locale + "/"},
			{Name: title, URL: "/" + locale + "/contact"},
		},
	}))
}

// NotFound godoc
// Any unmatched path under a locale prefix.
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderStatus(w, r, http.StatusNotFound)
}

// ServerError renders the localized 500 page. Panic recovery uses it.
func (h *PageHandler) ServerError(w http.ResponseWriter, r *http.Request) {
	h.renderStatus(w, r, http.StatusInternalServerError)
}

// renderError maps err to the 404 or 500 page.
func (h *PageHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, pkg.ErrNotFound):
		h.renderStatus(w, r, http.StatusNotFound)
		return
	case errors.Is(err, pkg.ErrBadRequest):
		h.renderStatus(w, r, http.StatusBadRequest)
		return
	}
	h.log.Error("page failed", zap.String("path", r.URL.Path), zap.Error(err))
	h.renderStatus(w, r, http.StatusInternalServerError)
}

func (h *PageHandler) renderStatus(w http.ResponseWriter, r *http.Request, status int) {
	locale := requestLocale(r)
	loc := i18n.NewLocalizer(locale)

	titleKey, textKey := "error.server_title", "error.server_text"
	switch status {
	case http.StatusNotFound:
		titleKey, textKey = "error.not_found_title", "error.not_found_text"
	case http.StatusBadRequest:
		titleKey, textKey = "error.bad_request_title", "error.bad_request_text"
	}

	data := h.renderer.NewPageData(r, h.seo.PageMeta(services.PageInput{
		Locale:      locale,
		Path:        stripLocale(r.URL.Path),
		Title:       loc.T(titleKey),
		Description: loc.T(textKey),
		NoIndex:     true,
	}))
	data.ErrorTitle = titleKey
	data.ErrorText = textKey
	h.renderer.Render(w, status, PageError, data)
}

// districts is best effort: a failing district list only empties the filter.
func (h *PageHandler) districts(r *http.Request, locale string) []models.DistrictView {
	districts, err := h.properties.Districts(r.Context(), locale)
	if err != nil {
		h.log.Warn("district list unavailable", zap.Error(err))
		return nil
	}
	return districts
}
