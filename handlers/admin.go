package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/uyjoy/site/models"
	"github.com/uyjoy/site/pkg"
	"github.com/uyjoy/site/pkg/ratelimit"
	"github.com/uyjoy/site/services"
)

// AdminHandler serves the operator API. Everything except Login sits
// behind AdminAuthMiddleware.
type AdminHandler struct {
	adminService    services.AdminService
	leadService     services.LeadService
	propertyService services.PropertyService
}

// NewAdminHandler, constructor. The services are the same instances the
// public handlers use, so ClearCache affects the live site.
func NewAdminHandler(
	adminService services.AdminService,
	leadService services.LeadService,
	propertyService services.PropertyService,
) *AdminHandler {
	return &AdminHandler{
		adminService:    adminService,
		leadService:     leadService,
		propertyService: propertyService,
	}
}

type loginRequest struct {
	Password string `json:"password"`
}

// Login godoc
// Exchanges the operator password for a short-lived access token.
//
// POST /api/admin/login
// Body:     { "password": "..." }
// Response: { "success": true, "data": { "access_token": "eyJ...", "expires_at": "2026-10-20T08:00:00Z" } }
//
// 401 on a wrong password, 403 when the admin API is disabled, 429 (with
// Retry-After) after too many attempts from one IP.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.adminService.Login(req.Password, ratelimit.ExtractIP(r))
	if err != nil {
		var limited *services.RateLimitError
		if errors.As(err, &limited) {
			w.Header().Set("Retry-After", strconv.Itoa(limited.RetryAfter))
		}
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, token)
}

// ListLeads godoc
// Newest first. status is pending, delivered or failed; empty lists all.
//
// GET /api/admin/leads?status=&limit=&offset=
// Response: { "success": true, "data": { "items": [...], "total": 13, "limit": 50, "offset": 0 } }
func (h *AdminHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	leads, err := h.leadService.List(r.Context(), models.LeadStatus(q.Get("status")), limit, offset)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, leads)
}

// RetryLead godoc
// POST /api/admin/leads/{id}/retry
// 502 when the relay still fails; the attempt is recorded either way.
func (h *AdminHandler) RetryLead(w http.ResponseWriter, r *http.Request) {
	lead, err := h.leadService.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, lead)
}

// LeadAttempts godoc
// GET /api/admin/leads/{id}/attempts
func (h *AdminHandler) LeadAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.leadService.Attempts(r.Context(), r.PathValue("id"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, attempts)
}

// ClearCache godoc
// POST /api/admin/cache/clear
func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.propertyService.ClearCache()

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "cache cleared"})
}
