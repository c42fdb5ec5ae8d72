package models

import (
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Sort orders accepted by the catalog.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortAreaDesc  = "area_desc"
)

// Paging limits.
const (
	DefaultPageSize = 12
	MaxPageSize     = 48
	MaxRooms        = 10
)

var (
	validDeals = []string{DealSale, DealRent}
	validTypes = []string{TypeApartment, TypeHouse, TypeCommercial, TypeLand}
	validSorts = []string{SortNewest, SortPriceAsc, SortPriceDesc, SortAreaDesc}
)

// PropertyFilter is the catalog query. Parsing is lenient: anything the
// catalog cannot use is dropped instead of failing the page.
type PropertyFilter struct {
	District string  `json:"district,omitempty"`
	Deal     string  `json:"deal,omitempty"`
	Type     string  `json:"type,omitempty"`
	Rooms    []int   `json:"rooms,omitempty"`
	PriceMin float64 `json:"price_min,omitempty"`
	PriceMax float64 `json:"price_max,omitempty"`
	AreaMin  float64 `json:"area_min,omitempty"`
	AreaMax  float64 `json:"area_max,omitempty"`
	Sort     string  `json:"sort"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

// ParseFilter builds a filter from query parameters.
func ParseFilter(q url.Values) PropertyFilter {
	f := PropertyFilter{
		District: cleanSlug(q.Get("district")),
		Deal:     oneOf(q.Get("deal"), validDeals),
		Type:     oneOf(q.Get("type"), validTypes),
		Rooms:    parseRooms(q["rooms"]),
		PriceMin: parseAmount(q.Get("price_min")),
		PriceMax: parseAmount(q.Get("price_max")),
		AreaMin:  parseAmount(q.Get("area_min")),
		AreaMax:  parseAmount(q.Get("area_max")),
		Sort:     oneOf(q.Get("sort"), validSorts),
		Page:     parsePositive(q.Get("page")),
		PageSize: parsePositive(q.Get("page_size")),
	}
	f.Normalize()
	return f
}

// Normalize applies defaults, reorders swapped ranges and clamps paging.
func (f *PropertyFilter) Normalize() {
	if f.Sort == "" {
		f.Sort = SortNewest
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	if f.PriceMin > 0 && f.PriceMax > 0 && f.PriceMin > f.PriceMax {
		f.PriceMin, f.PriceMax = f.PriceMax, f.PriceMin
	}
	if f.AreaMin > 0 && f.AreaMax > 0 && f.AreaMin > f.AreaMax {
		f.AreaMin, f.AreaMax = f.AreaMax, f.AreaMin
	}
}

// IsEmpty reports whether no narrowing criteria are set. Sort and paging
// do not count.
func (f PropertyFilter) IsEmpty() bool {
	return f.District == "" && f.Deal == "" && f.Type == "" && len(f.Rooms) == 0 &&
		f.PriceMin == 0 && f.PriceMax == 0 && f.AreaMin == 0 && f.AreaMax == 0
}

// Values renders the filter as query values. Defaults are omitted so
// equivalent filters produce the same output.
func (f PropertyFilter) Values() url.Values {
	v := url.Values{}
	if f.District != "" {
		v.Set("district", f.District)
	}
	if f.Deal != "" {
		v.Set("deal", f.Deal)
	}
	if f.Type != "" {
		v.Set("type", f.Type)
	}
	if len(f.Rooms) > 0 {
		parts := make([]string, len(f.Rooms))
		for i, r := range f.Rooms {
			parts[i] = strconv.Itoa(r)
		}
		v.Set("rooms", strings.Join(parts, ","))
	}
	setAmount(v, "price_min", f.PriceMin)
	setAmount(v, "price_max", f.PriceMax)
	setAmount(v, "area_min", f.AreaMin)
	setAmount(v, "area_max", f.AreaMax)
	if f.Sort != "" && f.Sort != SortNewest {
		v.Set("sort", f.Sort)
	}
	if f.Page > 1 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 && f.PageSize != DefaultPageSize {
		v.Set("page_size", strconv.Itoa(f.PageSize))
	}
	return v
}

// Query returns the canonical query string; url.Values.Encode sorts keys.
func (f PropertyFilter) Query() string {
	return f.Values().Encode()
}

// WithPage returns a copy pointing at page n.
func (f PropertyFilter) WithPage(n int) PropertyFilter {
	f.Rooms = slices.Clone(f.Rooms)
	f.Page = n
	return f
}

// HasRooms reports whether n is among the selected room counts.
func (f PropertyFilter) HasRooms(n int) bool {
	return slices.Contains(f.Rooms, n)
}

// Matches reports whether p satisfies the narrowing criteria. The remote
// API filters too; this guards locally derived lists such as "similar".
func (f PropertyFilter) Matches(p *Property) bool {
	if f.District != "" && p.DistrictSlug() != f.District {
		return false
	}
	if f.Deal != "" && p.Deal != f.Deal {
		return false
	}
	if f.Type != "" && p.Type != f.Type {
		return false
	}
	if len(f.Rooms) > 0 && !roomsMatch(f.Rooms, p.Rooms) {
		return false
	}
	if f.PriceMin > 0 && p.Price < f.PriceMin {
		return false
	}
	if f.PriceMax > 0 && p.Price > f.PriceMax {
		return false
	}
	if f.AreaMin > 0 && p.Area < f.AreaMin {
		return false
	}
	if f.AreaMax > 0 && p.Area > f.AreaMax {
		return false
	}
	return true
}

// roomsMatch treats the highest selected count as "n or more" when it is
// the 5+ bucket.
func roomsMatch(rooms []int, n int) bool {
	if slices.Contains(rooms, n) {
		return true
	}
	top := rooms[len(rooms)-1]
	return top >= 5 && n >= top
}

func oneOf(v string, allowed []string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if slices.Contains(allowed, v) {
		return v
	}
	return ""
}

func cleanSlug(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" || len(v) > 64 {
		return ""
	}
	for _, r := range v {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' && r != '_' {
			return ""
		}
	}
	return v
}

// parseRooms accepts repeated and comma separated values. "5+" means 5.
func parseRooms(raw []string) []int {
	var out []int
	for _, item := range raw {
		for _, part := range strings.Split(item, ",") {
			part = strings.TrimSuffix(strings.TrimSpace(part), "+")
			n, err := strconv.Atoi(part)
			if err != nil || n < 1 || n > MaxRooms {
				continue
			}
			if !slices.Contains(out, n) {
				out = append(out, n)
			}
		}
	}
	slices.Sort(out)
	return out
}

func parseAmount(v string) float64 {
	v = strings.ReplaceAll(strings.TrimSpace(v), " ", "")
	if v == "" {
		return 0
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil || n <= 0 || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0
	}
	return n
}

func parsePositive(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return 0
	}
	return n
}

func setAmount(v url.Values, key string, n float64) {
	if n > 0 {
		v.Set(key, strconv.FormatFloat(n, 'f', -1, 64))
	}
}
