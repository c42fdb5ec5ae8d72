package services

import (
	"encoding/json"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/uyjoy/site/config"
	"github.com/uyjoy/site/models"
	"github.com/uyjoy/site/pkg/format"
	"github.com/uyjoy/site/pkg/i18n"
)

const (
	descriptionRunes = 160
	schemaContext    = "https://schema.org"
	robotsIndex      = "index,follow"
	robotsNoIndex    = "noindex,follow"
)

// PageInput describes one page for metadata generation.
type PageInput struct {
	Locale string
	// Path below the locale prefix: "/", "/properties", "/properties/7".
	Path string
	// Query is appended to canonical and alternate URLs (catalog filters).
	Query       string
	Title       string // empty = home page
	Description string
	Image       string
	NoIndex     bool
	Breadcrumbs []models.Breadcrumb
	Property    *models.PropertyView
}

// SEOService builds <head> metadata and JSON-LD for pages.
type SEOService interface {
	PageMeta(in PageInput) models.Meta

	// URL returns the absolute URL of path under locale.
	URL(locale, path string) string

	// Absolute makes a site-relative link absolute; absolute links pass through.
	Absolute(link string) string
}

type seoService struct {
	siteURL string
	profile *config.SiteProfile
	log     *zap.Logger
}

// NewSEOService is the constructor. siteURL has no trailing slash.
func NewSEOService(siteURL string, profile *config.SiteProfile, log *zap.Logger) SEOService {
	return &seoService{
		siteURL: strings.TrimRight(siteURL, "/"),
		profile: profile,
		log:     log,
	}
}

func (s *seoService) PageMeta(in PageInput) models.Meta {
	loc := i18n.NewLocalizer(in.Locale)
	locale := loc.Locale()
	siteName := loc.T("site.name")

	title := siteName + " | " + loc.T("site.tagline")
	if in.Title != "" {
		title = in.Title + " | " + siteName
	}

	description := in.Description
	if description == "" {
		description = loc.T("site.description")
	}
	description = format.Truncate(format.PlainText(description), descriptionRunes)

	canonical := s.pageURL(locale, in.Path, in.Query)

	image := in.Image
	if image == "" {
		image = s.profile.OGImage
	}
	image = s.Absolute(image)

	ogType := "website"
	if in.Property != nil {
		ogType = "product"
	}

	robots := robotsIndex
	if in.NoIndex {
		robots = robotsNoIndex
	}

	ogTitle := title
	if in.Title != "" {
		ogTitle = in.Title
	}

	meta := models.Meta{
		Title:       title,
		Description: description,
		Canonical:   canonical,
		Robots:      robots,
		Alternates:  s.alternates(in.Path, in.Query),
		OpenGraph: models.OpenGraph{
			Type:        ogType,
			Title:       ogTitle,
			Description: description,
			URL:         canonical,
			Image:       image,
			SiteName:    siteName,
			Locale:      i18n.OGLocale(locale),
			AltLocales:  altOGLocales(locale),
		},
		Twitter: models.TwitterCard{
			Card:        "summary_large_image",
			Title:       ogTitle,
			Description: description,
			Image:       image,
		},
	}

	docs := []any{s.organization(locale), s.website(locale, siteName)}
	if len(in.Breadcrumbs) > 0 {
		docs = append(docs, s.breadcrumbs(in.Breadcrumbs))
	}
	if in.Property != nil {
		docs = append(docs, s.product(in.Property, canonical))
	}

	for _, doc := range docs {
		b, err := json.Marshal(doc)
		if err != nil {
			s.log.Error("json-ld marshal failed", zap.Error(err))
			continue
		}
		meta.JSONLD = append(meta.JSONLD, string(b))
	}

	return meta
}

func (s *seoService) URL(locale, path string) string {
	return s.pageURL(locale, path, "")
}

func (s *seoService) Absolute(link string) string {
	if link == "" || strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	if !strings.HasPrefix(link, "/") {
		link = "/" + link
	}
	return s.siteURL + link
}

func (s *seoService) pageURL(locale, path, query string) string {
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := s.siteURL + "/" + locale + path
	if query != "" {
		u += "?" + query
	}
	return u
}

// alternates lists every locale plus x-default, which points at the
// default locale.
func (s *seoService) alternates(path, query string) []models.Alternate {
	out := make([]models.Alternate, 0, len(i18n.SupportedLocales)+1)
	for _, l := range i18n.SupportedLocales {
		out = append(out, models.Alternate{HrefLang: i18n.HrefLang(l), Href: s.pageURL(l, path, query)})
	}
	return append(out, models.Alternate{HrefLang: "x-default", Href: s.pageURL(i18n.DefaultLocale, path, query)})
}

func altOGLocales(current string) []string {
	self := i18n.OGLocale(current)
	seen := map[string]bool{self: true}
	var out []string
	for _, l := range i18n.SupportedLocales {
		og := i18n.OGLocale(l)
		if !seen[og] {
			seen[og] = true
			out = append(out, og)
		}
	}
	return out
}

func (s *seoService) organizationID() string {
	return s.siteURL + "/#organization"
}

func (s *seoService) organization(locale string) map[string]any {
	p := s.profile
	org := map[string]any{
		"@context": schemaContext,
		"@type":    "RealEstateAgent",
		"@id":      s.organizationID(),
		"name":     p.Name,
		"url":      s.siteURL,
		"logo":     s.Absolute(p.Logo),
		"image":    s.Absolute(p.OGImage),
	}
	if p.LegalName != "" {
		org["legalName"] = p.LegalName
	}
	if len(p.Phones) > 0 {
		org["telephone"] = p.Phones[0]
	}
	if p.Email != "" {
		org["email"] = p.Email
	}
	if addr := p.AddressIn(locale); addr != "" {
		org["address"] = map[string]any{
			"@type":           "PostalAddress",
			"streetAddress":   addr,
			"addressLocality": "Tashkent",
			"addressCountry":  "UZ",
		}
	}
	if p.Geo.Lat != 0 || p.Geo.Lng != 0 {
		org["geo"] = map[string]any{
			"@type":     "GeoCoordinates",
			"latitude":  p.Geo.Lat,
			"longitude": p.Geo.Lng,
		}
	}
	if p.Hours != "" {
		org["openingHours"] = p.Hours
	}
	if len(p.Socials) > 0 {
		org["sameAs"] = p.Socials
	}
	return org
}

func (s *seoService) website(locale, siteName string) map[string]any {
	return map[string]any{
		"@context":   schemaContext,
		"@type":      "WebSite",
		"@id":        s.siteURL + "/#website",
		"url":        s.pageURL(locale, "/", ""),
		"name":       siteName,
		"inLanguage": i18n.HrefLang(locale),
		"publisher":  map[string]any{"@id": s.organizationID()},
	}
}

func (s *seoService) breadcrumbs(items []models.Breadcrumb) map[string]any {
	list := make([]map[string]any, 0, len(items))
	for i, b := range items {
		list = append(list, map[string]any{
			"@type":    "ListItem",
			"position": i + 1,
			"name":     b.Name,
			"item":     s.Absolute(b.URL),
		})
	}
	return map[string]any{
		"@context":        schemaContext,
		"@type":           "BreadcrumbList",
		"itemListElement": list,
	}
}

func (s *seoService) product(p *models.PropertyView, canonical string) map[string]any {
	images := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		images = append(images, s.Absolute(img))
	}

	product := map[string]any{
		"@context":       schemaContext,
		"@type":          "Product",
		"additionalType": "https://schema.org/RealEstateListing",
		"name":           p.Title,
		"sku":            strconv.FormatInt(p.ID, 10),
		"url":            canonical,
		"offers": map[string]any{
			"@type":         "Offer",
			"price":         p.Price,
			"priceCurrency": p.Currency,
			"availability":  "https://schema.org/InStock",
			"url":           canonical,
			"seller":        map[string]any{"@id": s.organizationID()},
		},
	}
	if p.Summary != "" {
		product["description"] = p.Summary
	}
	if len(images) > 0 {
		product["image"] = images
	}
	if p.TypeLabel != "" {
		product["category"] = p.TypeLabel
	}
	return product
}
