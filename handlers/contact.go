package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/uyjoy/site/models"
	"github.com/uyjoy/site/pkg"
	"github.com/uyjoy/site/pkg/i18n"
	"github.com/uyjoy/site/pkg/ratelimit"
	"github.com/uyjoy/site/services"
)

const maxContactBody = 64 << 10

// LeadReceipt is the POST /api/contact response.
type LeadReceipt struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// ContactHandler accepts lead submissions from widgets and scripts.
type ContactHandler struct {
	leadService services.LeadService
}

// NewContactHandler, constructor.
func NewContactHandler(leadService services.LeadService) *ContactHandler {
	return &ContactHandler{leadService: leadService}
}

// Submit godoc
// POST /api/contact
// Accepts JSON or a urlencoded/multipart form. A relay failure is not an
// error for the visitor: the lead is stored and redelivered later.
//
// Body:     { "name": "Aziz", "phone": "+998 90 123 45 67", "message": "...", "property_id": 7, "locale": "ru" }
// Response: 201 { "success": true, "data": { "id": "5f0c...", "message": "Thank you! ..." } }
//
// Errors carry a message in the lead's locale:
//
//	400 → a field failed validation ("Enter a valid phone number.")
//	429 → too many submissions from this IP, Retry-After is set
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxContactBody)

	req, err := decodeLeadRequest(r)
	if err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PageURL == "" {
		req.PageURL = r.Referer()
	}

	loc := i18n.NewLocalizer(req.Locale)
	lead, err := h.leadService.Submit(r.Context(), req, ratelimit.ExtractIP(r))
	if err != nil {
		var limited *services.RateLimitError
		if errors.As(err, &limited) {
			w.Header().Set("Retry-After", strconv.Itoa(limited.RetryAfter))
			pkg.ErrorWithMessage(w, http.StatusTooManyRequests,
				loc.TWithParams("validation.rate_limit", map[string]string{"seconds": strconv.Itoa(limited.RetryAfter)}))
			return
		}
		var field *models.FieldError
		if errors.As(err, &field) {
			pkg.ErrorWithMessage(w, http.StatusBadRequest, loc.T("validation."+field.Field))
			return
		}
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, LeadReceipt{ID: lead.ID, Message: loc.T("contact.success")})
}

// decodeLeadRequest reads a lead from a JSON body or form values.
func decodeLeadRequest(r *http.Request) (*models.CreateLeadRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req models.CreateLeadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxContactBody); err != nil {
			return nil, err
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return leadRequestFromForm(r), nil
}

func leadRequestFromForm(r *http.Request) *models.CreateLeadRequest {
	propertyID, _ := strconv.ParseInt(strings.TrimSpace(r.FormValue("property_id")), 10, 64)
	return &models.CreateLeadRequest{
		Name:       r.FormValue("name"),
		Phone:      r.FormValue("phone"),
		Message:    r.FormValue("message"),
		PropertyID: propertyID,
		Locale:     r.FormValue("locale"),
		PageURL:    r.FormValue("page_url"),
		Website:    r.FormValue("website"),
	}
}
