package handlers

import (
	"net/http"

	"github.com/uyjoy/site/models"
	"github.com/uyjoy/site/pkg"
	"github.com/uyjoy/site/pkg/cache"
	"github.com/uyjoy/site/repository"
)

// CacheStatter reports property API cache counters. *propertyapi.Client
// implements it.
type CacheStatter interface {
	Stats() cache.Stats
}

// HealthResponse is the GET /api/health payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// StatsResponse is the admin overview.
type StatsResponse struct {
	Cache cache.Stats    `json:"cache"`
	Leads map[string]int `json:"leads"`
}

// StatsHandler serves the health check and the admin overview.
type StatsHandler struct {
	cache    CacheStatter
	leadRepo repository.LeadRepository
}

// NewStatsHandler is the constructor. main.go wires it up via initHandlers.
func NewStatsHandler(cache CacheStatter, leadRepo repository.LeadRepository) *StatsHandler {
	return &StatsHandler{cache: cache, leadRepo: leadRepo}
}

// Health godoc
// Liveness check for the load balancer. No dependency is checked: the site
// can still serve cached pages while the property API is down.
//
// GET /api/health
// Response: { "success": true, "data": { "status": "ok", "service": "uyjoy" } }
func (h *StatsHandler) Health(w http.ResponseWriter, r *http.Request) {
	pkg.JSON(w, http.StatusOK, HealthResponse{Status: "ok", Service: "uyjoy"})
}

// AdminStats godoc
// Operator overview: property API cache counters plus lead counts per
// status. Requires an admin token.
//
// GET /api/admin/stats
//
//	Response: { "success": true, "data": {
//	  "cache": { "hits": 120, "misses": 8, "shared": 2, "entries": 6 },
//	  "leads": { "pending": 0, "delivered": 12, "failed": 1 } } }
func (h *StatsHandler) AdminStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Cache: h.cache.Stats(),
		Leads: make(map[string]int, 3),
	}
	for _, status := range []models.LeadStatus{models.LeadPending, models.LeadDelivered, models.LeadFailed} {
		n, err := h.leadRepo.Count(r.Context(), status)
		if err != nil {
			pkg.Error(w, err)
			return
		}
		resp.Leads[string(status)] = n
	}

	pkg.JSON(w, http.StatusOK, resp)
}
