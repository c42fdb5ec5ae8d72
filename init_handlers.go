package main

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/uyjoy/site/config"
	"github.com/uyjoy/site/handlers"
	"github.com/uyjoy/site/pkg/propertyapi"
	"github.com/uyjoy/site/static"
)

// Handlers holds every handler instance.
type Handlers struct {
	Page       *handlers.PageHandler
	Property   *handlers.PropertyHandler
	Contact    *handlers.ContactHandler
	Dictionary *handlers.DictionaryHandler
	SEO        *handlers.SEOHandler
	Image      *handlers.ImageHandler
	Admin      *handlers.AdminHandler
	Stats      *handlers.StatsHandler
}

// initHandlers builds the handlers. Templates are parsed here, so a broken
// template fails startup instead of the first request.
func initHandlers(
	svcs *Services,
	repos *Repositories,
	limiters *RateLimiters,
	client *propertyapi.Client,
	cfg *config.Config,
	profile *config.SiteProfile,
	log *zap.Logger,
) (*Handlers, error) {
	renderer, err := handlers.NewRenderer(static.Templates(), profile, log.Named("render"))
	if err != nil {
		return nil, err
	}

	imageHosts := append([]string{cfg.PropertyAPI.APIHost()}, cfg.Images.AllowedHosts...)
	imageClient := &http.Client{Timeout: cfg.PropertyAPI.Timeout}

	return &Handlers{
		Page:       handlers.NewPageHandler(svcs.Property, svcs.Lead, svcs.SEO, renderer, log.Named("page")),
		Property:   handlers.NewPropertyHandler(svcs.Property),
		Contact:    handlers.NewContactHandler(svcs.Lead),
		Dictionary: handlers.NewDictionaryHandler(),
		SEO:        handlers.NewSEOHandler(svcs.Sitemap, log.Named("seo")),
		Image:      handlers.NewImageHandler(imageClient, imageHosts, cfg.Images.MaxBytes, limiters.Image, log.Named("image")),
		Admin:      handlers.NewAdminHandler(svcs.Admin, svcs.Lead, svcs.Property),
		Stats:      handlers.NewStatsHandler(client, repos.Lead),
	}, nil
}
