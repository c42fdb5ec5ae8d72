package models

// Alternate is one hreflang link.
type Alternate struct {
	HrefLang string `json:"hreflang"`
	Href     string `json:"href"`
}

// OpenGraph holds og:* properties.
type OpenGraph struct {
	Type        string
	Title       string
	Description string
	URL         string
	Image       string
	SiteName    string
	Locale      string
	AltLocales  []string
}

// TwitterCard holds twitter:* properties.
type TwitterCard struct {
	Card        string
	Title       string
	Description string
	Image       string
}

// Meta is everything a page puts into <head>.
type Meta struct {
	Title       string
	Description string
	Canonical   string
	Robots      string
	Alternates  []Alternate
	OpenGraph   OpenGraph
	Twitter     TwitterCard
	// JSONLD holds already-marshalled documents, one <script> each.
	JSONLD []string
}

// Breadcrumb is one BreadcrumbList entry.
type Breadcrumb struct {
	Name string
	URL  string
}
