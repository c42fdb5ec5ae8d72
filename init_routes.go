package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uyjoy/site/config"
	"github.com/uyjoy/site/handlers"
	"github.com/uyjoy/site/middleware"
	"github.com/uyjoy/site/pkg"
	"github.com/uyjoy/site/pkg/ratelimit"
	"github.com/uyjoy/site/static"
)

// initRoutes builds the whole HTTP tree:
//
//	/api/*           JSON API, CORS enabled
//	/assets/*        embedded bundle
//	/sitemap.xml ... SEO documents
//	/{locale}/*      pages, behind the locale middleware
//
// Literal paths are registered next to wildcard ones; ServeMux picks the
// more specific pattern.
//
// The outermost layer resolves the client IP once (TRUSTED_PROXIES); the
// limiters and the access log read it through ratelimit.ExtractIP.
func initRoutes(h *Handlers, svcs *Services, cfg *config.Config, log *zap.Logger) (http.Handler, error) {
	clientIP, err := ratelimit.NewIPResolver(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	adminAuth := middleware.NewAdminAuthMiddleware(svcs.Admin)
	admin := func(handler http.HandlerFunc) http.Handler {
		return adminAuth.Require(handler)
	}

	// ─── API ───
	api := http.NewServeMux()
	api.HandleFunc("GET /api/health", h.Stats.Health)

	api.HandleFunc("GET /api/properties", h.Property.List)
	api.HandleFunc("GET /api/properties/{id}", h.Property.Get)
	api.HandleFunc("GET /api/properties/{id}/images", h.Property.Images)
	api.HandleFunc("GET /api/districts", h.Property.Districts)
	api.HandleFunc("GET /api/dictionary/{locale}", h.Dictionary.Get)
	api.HandleFunc("POST /api/contact", h.Contact.Submit)
	api.HandleFunc("GET /api/image", h.Image.Proxy)

	api.HandleFunc("POST /api/admin/login", h.Admin.Login)
	api.Handle("GET /api/admin/leads", admin(h.Admin.ListLeads))
	api.Handle("GET /api/admin/leads/{id}/attempts", admin(h.Admin.LeadAttempts))
	api.Handle("POST /api/admin/leads/{id}/retry", admin(h.Admin.RetryLead))
	api.Handle("POST /api/admin/cache/clear", admin(h.Admin.ClearCache))
	api.Handle("GET /api/admin/stats", admin(h.Stats.AdminStats))

	api.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		pkg.ErrorWithMessage(w, http.StatusNotFound, pkg.ErrNotFound.Error())
	})

	// ─── Pages ───
	pages := http.NewServeMux()
	pages.HandleFunc("GET /{locale}/{$}", h.Page.Home)
	pages.HandleFunc("GET /{locale}/properties", h.Page.Catalog)
	pages.HandleFunc("GET /{locale}/properties/{id}", h.Page.Property)
	pages.HandleFunc("GET /{locale}/contact", h.Page.Contact)
	pages.HandleFunc("POST /{locale}/contact", h.Page.SubmitContact)
	pages.HandleFunc("/", h.Page.NotFound)

	// ─── Root ───
	root := http.NewServeMux()
	root.Handle("/api/", newCORS(cfg, log).Handler(api))

	assets := static.Assets()
	root.Handle("GET /assets/", handlers.Assets(assets))
	root.HandleFunc("GET /favicon.ico", handlers.Favicon(assets))
	root.HandleFunc("GET /sitemap.xml", h.SEO.Sitemap)
	root.HandleFunc("GET /robots.txt", h.SEO.Robots)
	root.HandleFunc("GET /manifest.webmanifest", h.SEO.Manifest)

	locale := middleware.NewLocaleMiddleware(strings.HasPrefix(cfg.Server.SiteURL, "https://"))
	root.Handle("/", locale.Handle(pages))

	httpLog := log.Named("http")
	chain := middleware.AccessLog(httpLog)(middleware.Recover(httpLog, h.Page.ServerError)(root))
	return clientIP.Middleware(chain), nil
}

func newCORS(cfg *config.Config, log *zap.Logger) *cors.Cors {
	origins := cfg.CORS.AllowedOrigins
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept-Language"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: !allowsAnyOrigin(origins),
		MaxAge:           600,
		Logger:           corsLogger{log.Named("cors")},
		Debug:            cfg.IsDevelopment(),
	})
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// corsLogger routes rs/cors debug output into zap.
type corsLogger struct{ log *zap.Logger }

func (l corsLogger) Printf(format string, v ...any) {
	l.log.Sugar().Debugf(format, v...)
}
