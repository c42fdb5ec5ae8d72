package services

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/uyjoy/site/config"
	"github.com/uyjoy/site/pkg/i18n"
)

// SitemapMaxProperties caps listing URLs so the sitemap stays well under
// the 50,000 URL protocol limit with four locales.
const SitemapMaxProperties = 5000

var staticPaths = []struct {
	path       string
	changeFreq string
	priority   float64
}{
	{"/", "daily", 1.0},
	{"/properties", "hourly", 0.9},
	{"/contact", "monthly", 0.5},
}

// SitemapService renders sitemap.xml, robots.txt and the web manifest.
type SitemapService interface {
	Sitemap(ctx context.Context) ([]byte, error)
	Robots() []byte
	Manifest() ([]byte, error)
}

type sitemapService struct {
	properties PropertyService
	seo        SEOService
	profile    *config.SiteProfile
	log        *zap.Logger
	now        func() time.Time
}

// NewSitemapService, constructor.
func NewSitemapService(properties PropertyService, seo SEOService, profile *config.SiteProfile, log *zap.Logger) SitemapService {
	return &sitemapService{
		properties: properties,
		seo:        seo,
		profile:    profile,
		log:        log,
		now:        time.Now,
	}
}

type urlSet struct {
	XMLName    xml.Name     `xml:"urlset"`
	Xmlns      string       `xml:"xmlns,attr"`
	XmlnsXhtml string       `xml:"xmlns:xhtml,attr"`
	URLs       []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string      `xml:"loc"`
	LastMod    string      `xml:"lastmod,omitempty"`
	ChangeFreq string      `xml:"changefreq,omitempty"`
	Priority   string      `xml:"priority,omitempty"`
	Links      []xhtmlLink `xml:"xhtml:link"`
}

type xhtmlLink struct {
	Rel      string `xml:"rel,attr"`
	HrefLang string `xml:"hreflang,attr"`
	Href     string `xml:"href,attr"`
}

// Sitemap lists static pages and every listing, each once per locale with
// hreflang alternates. If the API is down the static pages are still
// returned.
func (s *sitemapService) Sitemap(ctx context.Context) ([]byte, error) {
	set := urlSet{
		Xmlns:      "http://www.sitemaps.org/schemas/sitemap/0.9",
		XmlnsXhtml: "http://www.w3.org/1999/xhtml",
	}
	today := s.now().UTC().Format("2006-01-02")

	for _, sp := range staticPaths {
		s.addAllLocales(&set, sp.path, today, sp.changeFreq, sp.priority)
	}

	props, err := s.properties.All(ctx, SitemapMaxProperties)
	if err != nil {
		s.log.Warn("sitemap built without listings", zap.Error(err))
	}
	for i := range props {
		p := &props[i]
		lastMod := ""
		if t := p.LastModified(); !t.IsZero() {
			lastMod = t.UTC().Format("2006-01-02")
		}
		s.addAllLocales(&set, fmt.Sprintf("/properties/%d", p.ID), lastMod, "weekly", 0.8)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return nil, fmt.Errorf("encode sitemap: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func (s *sitemapService) addAllLocales(set *urlSet, path, lastMod, changeFreq string, priority float64) {
	links := make([]xhtmlLink, 0, len(i18n.SupportedLocales)+1)
	for _, l := range i18n.SupportedLocales {
		links = append(links, xhtmlLink{Rel: "alternate", HrefLang: i18n.HrefLang(l), Href: s.seo.URL(l, path)})
	}
	links = append(links, xhtmlLink{Rel: "alternate", HrefLang: "x-default", Href: s.seo.URL(i18n.DefaultLocale, path)})

	for _, l := range i18n.SupportedLocales {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        s.seo.URL(l, path),
			LastMod:    lastMod,
			ChangeFreq: changeFreq,
			Priority:   fmt.Sprintf("%.1f", priority),
			Links:      links,
		})
	}
}

func (s *sitemapService) Robots() []byte {
	var buf bytes.Buffer
	buf.WriteString("User-agent: *\n")
	buf.WriteString("Allow: /\n")
	buf.WriteString("Disallow: /api/\n")
	buf.WriteString("\n")
	fmt.Fprintf(&buf, "Sitemap: %s\n", s.seo.Absolute("/sitemap.xml"))
	return buf.Bytes()
}

type manifest struct {
	Name            string        `json:"name"`
	ShortName       string        `json:"short_name"`
	Description     string        `json:"description"`
	StartURL        string        `json:"start_url"`
	Scope           string        `json:"scope"`
	Display         string        `json:"display"`
	ThemeColor      string        `json:"theme_color"`
	BackgroundColor string        `json:"background_color"`
	Lang            string        `json:"lang"`
	Icons           []config.Icon `json:"icons"`
}

func (s *sitemapService) Manifest() ([]byte, error) {
	loc := i18n.NewLocalizer(i18n.DefaultLocale)
	icons := s.profile.Icons
	if icons == nil {
		icons = []config.Icon{}
	}
	m := manifest{
		Name:            s.profile.Name,
		ShortName:       s.profile.ShortName,
		Description:     loc.T("site.description"),
		StartURL:        "/" + i18n.DefaultLocale + "/",
		Scope:           "/",
		Display:         "standalone",
		ThemeColor:      s.profile.ThemeColor,
		BackgroundColor: s.profile.BgColor,
		Lang:            i18n.HrefLang(i18n.DefaultLocale),
		Icons:           icons,
	}
	return json.MarshalIndent(m, "", "  ")
}
