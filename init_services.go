package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/uyjoy/site/config"
	"github.com/uyjoy/site/pkg/email"
	"github.com/uyjoy/site/pkg/propertyapi"
	"github.com/uyjoy/site/pkg/ratelimit"
	"github.com/uyjoy/site/pkg/telegram"
	"github.com/uyjoy/site/services"
)

const (
	adminLoginMaxAttempts = 5
	adminLoginWindow      = 15 * time.Minute

	imageBurstMax      = 60
	imageBurstWindow   = 10 * time.Second
	imageBurstCooldown = 30 * time.Second

	notifierTimeout = 15 * time.Second
)

// Services holds every service instance.
type Services struct {
	Property   services.PropertyService
	SEO        services.SEOService
	Sitemap    services.SitemapService
	Lead       services.LeadService
	Admin      services.AdminService
	Redelivery services.LeadRedelivery
}

// RateLimiters holds the in-memory limiters; each runs a janitor goroutine.
type RateLimiters struct {
	Contact    *ratelimit.WindowLimiter
	AdminLogin *ratelimit.WindowLimiter
	Image      *ratelimit.BurstLimiter
}

// Stop ends every janitor.
func (l *RateLimiters) Stop() {
	l.Contact.Stop()
	l.AdminLogin.Stop()
	l.Image.Stop()
}

// catalogServices are the parts that only need the property API; the
// sitemap command runs with just these.
type catalogServices struct {
	Property services.PropertyService
	SEO      services.SEOService
	Sitemap  services.SitemapService
}

func initCatalogServices(client *propertyapi.Client, cfg *config.Config, profile *config.SiteProfile, log *zap.Logger) *catalogServices {
	property := services.NewPropertyService(client, log.Named("property"))
	seo := services.NewSEOService(cfg.Server.SiteURL, profile, log.Named("seo"))
	return &catalogServices{
		Property: property,
		SEO:      seo,
		Sitemap:  services.NewSitemapService(property, seo, profile, log.Named("sitemap")),
	}
}

// initServices wires the services and rate limiters.
func initServices(
	repos *Repositories,
	client *propertyapi.Client,
	cfg *config.Config,
	profile *config.SiteProfile,
	log *zap.Logger,
) (*Services, *RateLimiters) {
	limiters := &RateLimiters{
		Contact:    ratelimit.NewWindowLimiter(cfg.Contact.MaxPerWindow, cfg.Contact.Window),
		AdminLogin: ratelimit.NewWindowLimiter(adminLoginMaxAttempts, adminLoginWindow),
		Image:      ratelimit.NewBurstLimiter(imageBurstMax, imageBurstWindow, imageBurstCooldown),
	}

	catalog := initCatalogServices(client, cfg, profile, log)

	leadLog := log.Named("lead")
	leadService := services.NewLeadService(
		repos.Lead,
		initNotifiers(cfg, profile, log),
		limiters.Contact,
		cfg.Server.SiteURL,
		cfg.Contact.MaxAttempts,
		leadLog,
	)

	return &Services{
		Property:   catalog.Property,
		SEO:        catalog.SEO,
		Sitemap:    catalog.Sitemap,
		Lead:       leadService,
		Admin:      services.NewAdminService(cfg.Admin.PasswordHash, cfg.Admin.JWTSecret, cfg.Admin.TokenTTL, limiters.AdminLogin, log.Named("admin")),
		Redelivery: services.NewLeadRedelivery(leadService, cfg.Contact.RetryInterval, leadLog.Named("redelivery")),
	}, limiters
}

// initNotifiers returns the configured lead channels. None configured is
// allowed: leads are stored as failed until a channel is added.
func initNotifiers(cfg *config.Config, profile *config.SiteProfile, log *zap.Logger) []services.LeadNotifier {
	var notifiers []services.LeadNotifier

	if cfg.Telegram.Enabled() {
		notifiers = append(notifiers, telegram.NewNotifier(telegram.Config{
			Token:    cfg.Telegram.BotToken,
			ChatID:   cfg.Telegram.ChatID,
			TopicID:  cfg.Telegram.TopicID,
			Endpoint: cfg.Telegram.APIEndpoint,
			Locale:   cfg.Telegram.Locale,
		}, &http.Client{Timeout: notifierTimeout}, log.Named("telegram")))
	} else {
		log.Warn("telegram relay disabled: TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID not set")
	}

	if cfg.Email.Enabled() {
		notifiers = append(notifiers, email.NewResendSender(
			cfg.Email.ResendAPIKey,
			cfg.Email.FromEmail,
			profile.Name,
			cfg.Email.LeadRecipient,
			cfg.Telegram.Locale,
		))
	}

	return notifiers
}
