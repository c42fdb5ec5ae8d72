package handlers

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/uyjoy/site/config"
	"github.com/uyjoy/site/models"
	"github.com/uyjoy/site/pkg/i18n"
)

// Page template names.
const (
	PageHome     = "home"
	PageCatalog  = "catalog"
	PageProperty = "property"
	PageContact  = "contact"
	PageError    = "error"
)

var pageNames = []string{PageHome, PageCatalog, PageProperty, PageContact, PageError}

// shared templates parsed into every page set.
var layoutFiles = []string{"base.html", "form.html"}

var languageLabels = map[string]string{
	i18n.Uzbek:         "O'zbekcha",
	i18n.Russian:       "Русский",
	i18n.English:       "English",
	i18n.UzbekCyrillic: "Ўзбекча",
}

// LanguageLink is one entry of the language switcher.
type LanguageLink struct {
	Locale   string
	Label    string
	HrefLang string
	URL      string
	Active   bool
}

// ContactForm is the lead form state kept across a failed POST.
type ContactForm struct {
	Name       string
	Phone      string
	Message    string
	PropertyID int64
	Errors     map[string]string
	Error      string
}

// PageData is the root value of every page template.
type PageData struct {
	Locale    string
	Loc       *i18n.Localizer
	Site      *config.SiteProfile
	Meta      models.Meta
	Languages []LanguageLink
	Year      int

	Featured  []models.PropertyView
	Districts []models.DistrictView
	Catalog   *models.PropertyPage
	Filter    models.PropertyFilter
	Detail    *models.PropertyDetail
	Form      ContactForm
	Sent      bool

	ErrorTitle string
	ErrorText  string
}

// T translates key.
func (d *PageData) T(key string) string { return d.Loc.T(key) }

// TP translates key with "name", "value" parameter pairs.
func (d *PageData) TP(key string, kv ...string) string {
	params := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		params[kv[i]] = kv[i+1]
	}
	return d.Loc.TWithParams(key, params)
}

// Href prefixes a site path with the page locale.
func (d *PageData) Href(path string) string {
	return "/" + d.Locale + path
}

// HTMLLang is the <html lang> value.
func (d *PageData) HTMLLang() string { return i18n.HrefLang(d.Locale) }

// Address is the office address in the page locale.
func (d *PageData) Address() string { return d.Site.AddressIn(d.Locale) }

// Renderer executes page templates from the embedded bundle.
type Renderer struct {
	pages   map[string]*template.Template
	profile *config.SiteProfile
	log     *zap.Logger
}

// NewRenderer parses every page once at startup.
func NewRenderer(templates fs.FS, profile *config.SiteProfile, log *zap.Logger) (*Renderer, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		files := append(append([]string{}, layoutFiles...), name+".html")
		t, err := template.New(name).Funcs(templateFuncs()).ParseFS(templates, files...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages, profile: profile, log: log}, nil
}

// NewPageData prepares the common part of a page for r's locale.
func (rn *Renderer) NewPageData(r *http.Request, meta models.Meta) *PageData {
	locale := requestLocale(r)
	return &PageData{
		Locale:    locale,
		Loc:       i18n.NewLocalizer(locale),
		Site:      rn.profile,
		Meta:      meta,
		Languages: languageLinks(locale, meta.Alternates),
		Year:      time.Now().Year(),
	}
}

// Render writes page with status. The template is executed into a buffer
// first so a failing template never leaves a half-written page.
func (rn *Renderer) Render(w http.ResponseWriter, status int, page string, data *PageData) {
	t, ok := rn.pages[page]
	if !ok {
		rn.log.Error("unknown page template", zap.String("page", page))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		rn.log.Error("template execution failed", zap.String("page", page), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Language", i18n.HrefLang(data.Locale))
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// languageLinks points every locale at the same page, reusing the
// hreflang alternates so the switcher carries the canonical query only.
func languageLinks(current string, alternates []models.Alternate) []LanguageLink {
	hrefs := make(map[string]string, len(alternates))
	for _, a := range alternates {
		hrefs[a.HrefLang] = a.Href
	}

	links := make([]LanguageLink, 0, len(i18n.SupportedLocales))
	for _, l := range i18n.SupportedLocales {
		hrefLang := i18n.HrefLang(l)
		href, ok := hrefs[hrefLang]
		if !ok {
			href = "/" + l + "/"
		}
		links = append(links, LanguageLink{
			Locale:   l,
			Label:    languageLabels[l],
			HrefLang: hrefLang,
			URL:      href,
			Active:   l == current,
		})
	}
	return links
}

// stripLocale returns the path below the locale prefix, always starting
// with "/".
func stripLocale(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	segment, rest, _ := strings.Cut(trimmed, "/")
	if !i18n.IsSupported(segment) {
		return path
	}
	return "/" + rest
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		// JSON-LD documents are marshalled by encoding/json, which escapes
		// "<" and ">", so they are safe inside <script>.
		"jsonld": func(doc string) template.JS { return template.JS(doc) },
		// Descriptions arrive sanitized by bluemonday.
		"safeHTML":  func(s string) template.HTML { return template.HTML(s) },
		"img":       ImageURL,
		"pageURL":   catalogPageURL,
		"phoneHref": phoneHref,
		"amount":    amount,
		"add":       func(a, b int) int { return a + b },
		"sub":       func(a, b int) int { return a - b },
		"dealTypes": func() []string { return []string{models.DealSale, models.DealRent} },
		"propertyTypes": func() []string {
			return []string{models.TypeApartment, models.TypeHouse, models.TypeCommercial, models.TypeLand}
		},
		"sortOrders": func() []string {
			return []string{models.SortNewest, models.SortPriceAsc, models.SortPriceDesc, models.SortAreaDesc}
		},
		"roomChoices": func() []int { return []int{1, 2, 3, 4, 5} },
	}
}

// ImageURL routes remote images through the image proxy. Site-relative
// paths are returned unchanged.
func ImageURL(src string) string {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return "/api/image?src=" + url.QueryEscape(src)
	}
	return src
}

func catalogPageURL(locale string, f models.PropertyFilter, page int) string {
	path := "/" + locale + "/properties"
	if q := f.WithPage(page).Query(); q != "" {
		return path + "?" + q
	}
	return path
}

func phoneHref(phone string) string {
	var b strings.Builder
	for i, r := range phone {
		if (r >= '0' && r <= '9') || (r == '+' && i == 0) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func amount(v float64) string {
	if v <= 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
