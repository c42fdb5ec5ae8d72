// Package models holds the domain types shared by every layer: remote API
// records, the view models templates render, leads and SEO metadata.
//
// The package depends on nothing in the project, so any layer may import it.
package models

import (
	"maps"
	"slices"
	"time"
)

// Deal kinds.
const (
	DealSale = "sale"
	DealRent = "rent"
)

// Property kinds.
const (
	TypeApartment  = "apartment"
	TypeHouse      = "house"
	TypeCommercial = "commercial"
	TypeLand       = "land"
)

// Currencies the remote API uses.
const (
	CurrencyUSD = "USD"
	CurrencyUZS = "UZS"
)

// LocalizedText is a per-locale string map as the remote API sends it:
// {"uz": "...", "ru": "...", "en": "...", "uz-cy": "..."}.
type LocalizedText map[string]string

// localeFallback is tried after the requested locale.
var localeFallback = []string{"uz", "ru", "en"}

// In returns the text for locale, falling back to uz, ru, en and finally
// any non-empty value.
func (t LocalizedText) In(locale string) string {
	if v := t[locale]; v != "" {
		return v
	}
	for _, l := range localeFallback {
		if v := t[l]; v != "" {
			return v
		}
	}
	// Map order is random; sorted keys keep the pick stable between renders.
	for _, l := range slices.Sorted(maps.Keys(t)) {
		if v := t[l]; v != "" {
			return v
		}
	}
	return ""
}

// District is a city district listings are grouped by.
type District struct {
	ID   int64         `json:"id"`
	Slug string        `json:"slug"`
	Name LocalizedText `json:"name"`
}

// Property is a listing record exactly as the remote API returns it.
type Property struct {
	ID          int64         `json:"id"`
	Slug        string        `json:"slug"`
	Title       LocalizedText `json:"title"`
	Description LocalizedText `json:"description"`
	Price       float64       `json:"price"`
	Currency    string        `json:"currency"`
	Deal        string        `json:"deal"`
	Type        string        `json:"type"`
	Rooms       int           `json:"rooms"`
	Area        float64       `json:"area"`
	Floor       int           `json:"floor"`
	TotalFloors int           `json:"total_floors"`
	District    *District     `json:"district"`
	Address     LocalizedText `json:"address"`
	Lat         float64       `json:"lat"`
	Lng         float64       `json:"lng"`
	Images      []string      `json:"images"`
	ImagesDir   string        `json:"images_dir"`
	IsFeatured  bool          `json:"is_featured"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// DistrictSlug returns the district slug or "".
func (p *Property) DistrictSlug() string {
	if p.District == nil {
		return ""
	}
	return p.District.Slug
}

// LastModified returns UpdatedAt, or CreatedAt when the API left it empty.
func (p *Property) LastModified() time.Time {
	if !p.UpdatedAt.IsZero() {
		return p.UpdatedAt
	}
	return p.CreatedAt
}

// PropertyList is the remote listing envelope.
type PropertyList struct {
	Count   int        `json:"count"`
	Results []Property `json:"results"`
}

// PropertyView is a property localized and formatted for one locale.
// Templates and the JSON API render it as is.
type PropertyView struct {
	ID           int64    `json:"id"`
	URL          string   `json:"url"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Summary      string   `json:"summary"`
	Price        float64  `json:"price"`
	Currency     string   `json:"currency"`
	PriceLabel   string   `json:"price_label"`
	Deal         string   `json:"deal"`
	DealLabel    string   `json:"deal_label"`
	Type         string   `json:"type"`
	TypeLabel    string   `json:"type_label"`
	Rooms        int      `json:"rooms"`
	RoomsLabel   string   `json:"rooms_label"`
	Area         float64  `json:"area"`
	AreaLabel    string   `json:"area_label"`
	FloorLabel   string   `json:"floor_label,omitempty"`
	DistrictSlug string   `json:"district_slug,omitempty"`
	DistrictName string   `json:"district_name,omitempty"`
	Address      string   `json:"address,omitempty"`
	Lat          float64  `json:"lat,omitempty"`
	Lng          float64  `json:"lng,omitempty"`
	Cover        string   `json:"cover,omitempty"`
	Images       []string `json:"images"`
	IsFeatured   bool     `json:"is_featured"`
	UpdatedAt    string   `json:"updated_at,omitempty"`
}

// PropertyDetail is the detail page payload.
type PropertyDetail struct {
	Property PropertyView   `json:"property"`
	Similar  []PropertyView `json:"similar"`
}

// PropertyPage is one page of localized listings.
type PropertyPage struct {
	Items    []PropertyView `json:"items"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Pages    int            `json:"pages"`
}

// NewPropertyPage computes the page count; Pages is at least 1 so
// templates can always print "1 / 1".
func NewPropertyPage(items []PropertyView, total, page, pageSize int) PropertyPage {
	pages := 1
	if pageSize > 0 && total > 0 {
		pages = (total + pageSize - 1) / pageSize
	}
	if items == nil {
		items = []PropertyView{}
	}
	return PropertyPage{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Pages:    pages,
	}
}

// HasPrev reports whether a previous page exists.
func (p PropertyPage) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a next page exists.
func (p PropertyPage) HasNext() bool { return p.Page < p.Pages }

// DistrictView is a district localized for one locale.
type DistrictView struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}
