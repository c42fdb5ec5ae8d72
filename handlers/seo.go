package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/uyjoy/site/services"
)

// SEOHandler serves sitemap.xml, robots.txt and the web manifest.
type SEOHandler struct {
	sitemapService services.SitemapService
	log            *zap.Logger
}

// NewSEOHandler is the constructor.
func NewSEOHandler(sitemapService services.SitemapService, log *zap.Logger) *SEOHandler {
	return &SEOHandler{sitemapService: sitemapService, log: log}
}

// Sitemap godoc
// GET /sitemap.xml
func (h *SEOHandler) Sitemap(w http.ResponseWriter, r *http.Request) {
	body, err := h.sitemapService.Sitemap(r.Context())
	if err != nil {
		h.log.Error("sitemap failed", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeDocument(w, "application/xml; charset=utf-8", "public, max-age=3600", body)
}

// Robots godoc
// GET /robots.txt
func (h *SEOHandler) Robots(w http.ResponseWriter, r *http.Request) {
	writeDocument(w, "text/plain; charset=utf-8", "public, max-age=86400", h.sitemapService.Robots())
}

// Manifest godoc
// GET /manifest.webmanifest
func (h *SEOHandler) Manifest(w http.ResponseWriter, r *http.Request) {
	body, err := h.sitemapService.Manifest()
	if err != nil {
		h.log.Error("manifest failed", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeDocument(w, "application/manifest+json", "public, max-age=86400", body)
}

func writeDocument(w http.ResponseWriter, contentType, cacheControl string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", cacheControl)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
