// Package services holds the site's business logic.
//
// The service layer sits between handlers (HTTP) and the data sources:
//
//	handlers → services → propertyapi.Client (remote listings, cached)
//	                    → repository (SQLite leads)
//	                    → notifiers (Telegram, e-mail)
//
// Every rule of the site lives here: localization of listings, lead
// validation and rate limiting, redelivery, SEO metadata, admin login.
//
// A service never sees http.Request or http.ResponseWriter; it takes and
// returns domain models and reports failures with the pkg sentinel errors
// (wrapped with %w), which handlers map to status codes.
//
// Each service is an interface plus an unexported struct. Handlers depend
// on the interface, which keeps them testable with small fakes.
package services

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/collate"

	"github.com/uyjoy/site/models"
	"github.com/uyjoy/site/pkg"
	"github.com/uyjoy/site/pkg/format"
	"github.com/uyjoy/site/pkg/i18n"
)

const (
	similarLimit     = 4
	featuredPoolSize = models.MaxPageSize
	summaryRunes     = 160
)

// PropertySource is the remote listing API. *propertyapi.Client
// implements it.
type PropertySource interface {
	ListProperties(ctx context.Context, filter models.PropertyFilter) (models.PropertyList, error)
	GetProperty(ctx context.Context, id int64) (models.Property, error)
	ListDistricts(ctx context.Context) ([]models.District, error)
	ListImages(ctx context.Context, dirURL string) ([]string, error)
	ClearCache()
}

// PropertyService localizes listings for pages and the JSON API.
type PropertyService interface {
	// List returns one localized catalog page. An empty result is not an error.
	List(ctx context.Context, locale string, filter models.PropertyFilter) (*models.PropertyPage, error)

	// Get returns the detail view with gallery and similar listings.
	Get(ctx context.Context, locale string, id int64) (*models.PropertyDetail, error)

	// Images returns the gallery: the API image list, or the scraped
	// images_dir listing when the list is empty.
	Images(ctx context.Context, id int64) ([]string, error)

	// Featured returns up to n listings, featured ones first, newest fill.
	Featured(ctx context.Context, locale string, n int) ([]models.PropertyView, error)

	// Districts returns districts localized and sorted by name.
	Districts(ctx context.Context, locale string) ([]models.DistrictView, error)

	// All walks every catalog page, newest first, up to max listings.
	All(ctx context.Context, max int) ([]models.Property, error)

	// ClearCache drops every cached API response.
	ClearCache()
}

type propertyService struct {
	source PropertySource
	log    *zap.Logger
}

// NewPropertyService creates the catalog service. source is normally the
// cached *propertyapi.Client; tests pass a fake.
func NewPropertyService(source PropertySource, log *zap.Logger) PropertyService {
	return &propertyService{source: source, log: log}
}

func (s *propertyService) List(ctx context.Context, locale string, filter models.PropertyFilter) (*models.PropertyPage, error) {
	filter.Normalize()

	list, err := s.source.ListProperties(ctx, filter)
	if err != nil {
		return nil, err
	}

	loc := i18n.NewLocalizer(locale)
	views := make([]models.PropertyView, 0, len(list.Results))
	for i := range list.Results {
		views = append(views, ToView(&list.Results[i], loc))
	}

	page := models.NewPropertyPage(views, list.Count, filter.Page, filter.PageSize)
	return &page, nil
}

func (s *propertyService) Get(ctx context.Context, locale string, id int64) (*models.PropertyDetail, error) {
	p, err := s.source.GetProperty(ctx, id)
	if err != nil {
		return nil, err
	}

	loc := i18n.NewLocalizer(locale)
	view := ToView(&p, loc)
	view.Images = s.gallery(ctx, &p)
	if len(view.Images) > 0 {
		view.Cover = view.Images[0]
	}

	return &models.PropertyDetail{
		Property: view,
		Similar:  s.similar(ctx, &p, loc),
	}, nil
}

func (s *propertyService) Images(ctx context.Context, id int64) ([]string, error) {
	p, err := s.source.GetProperty(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.gallery(ctx, &p), nil
}

// gallery never fails: a broken directory listing means no photos.
func (s *propertyService) gallery(ctx context.Context, p *models.Property) []string {
	if len(p.Images) > 0 {
		return slices.Clone(p.Images)
	}
	if p.ImagesDir == "" {
		return []string{}
	}

	imgs, err := s.source.ListImages(ctx, p.ImagesDir)
	if err != nil {
		s.log.Warn("image directory unavailable",
			zap.Int64("property_id", p.ID),
			zap.String("dir", p.ImagesDir),
			zap.Error(err),
		)
		return []string{}
	}
	return slices.Clone(imgs)
}

// similar lists same-district, same-deal listings. Failures only cost the
// section, never the page.
func (s *propertyService) similar(ctx context.Context, p *models.Property, loc *i18n.Localizer) []models.PropertyView {
	out := []models.PropertyView{}
	if p.DistrictSlug() == "" {
		return out
	}

	filter := models.PropertyFilter{
		District: p.DistrictSlug(),
		Deal:     p.Deal,
		PageSize: similarLimit + 1, // one extra in case p itself is returned
	}
	filter.Normalize()

	list, err := s.source.ListProperties(ctx, filter)
	if err != nil {
		s.log.Warn("similar listings unavailable", zap.Int64("property_id", p.ID), zap.Error(err))
		return out
	}

	for i := range list.Results {
		c := &list.Results[i]
		if c.ID == p.ID || !filter.Matches(c) {
			continue
		}
		out = append(out, ToView(c, loc))
		if len(out) == similarLimit {
			break
		}
	}
	return out
}

func (s *propertyService) Featured(ctx context.Context, locale string, n int) ([]models.PropertyView, error) {
	filter := models.PropertyFilter{PageSize: featuredPoolSize}
	filter.Normalize()

	list, err := s.source.ListProperties(ctx, filter)
	if err != nil {
		return nil, err
	}

	pool := slices.Clone(list.Results)
	// Stable keeps the API's newest-first order inside each group.
	slices.SortStableFunc(pool, func(a, b models.Property) int {
		switch {
		case a.IsFeatured == b.IsFeatured:
			return 0
		case a.IsFeatured:
			return -1
		default:
			return 1
		}
	})
	if len(pool) > n {
		pool = pool[:n]
	}

	loc := i18n.NewLocalizer(locale)
	views := make([]models.PropertyView, 0, len(pool))
	for i := range pool {
		views = append(views, ToView(&pool[i], loc))
	}
	return views, nil
}

func (s *propertyService) Districts(ctx context.Context, locale string) ([]models.DistrictView, error) {
	ds, err := s.source.ListDistricts(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]models.DistrictView, 0, len(ds))
	for _, d := range ds {
		views = append(views, models.DistrictView{ID: d.ID, Slug: d.Slug, Name: d.Name.In(locale)})
	}

	// Collation puts Cyrillic and Latin names in dictionary order.
	col := collate.New(i18n.Tag(locale), collate.IgnoreCase)
	slices.SortFunc(views, func(a, b models.DistrictView) int {
		return col.CompareString(a.Name, b.Name)
	})
	return views, nil
}

func (s *propertyService) All(ctx context.Context, max int) ([]models.Property, error) {
	var out []models.Property
	for page := 1; len(out) < max; page++ {
		filter := models.PropertyFilter{Page: page, PageSize: models.MaxPageSize}
		filter.Normalize()

		list, err := s.source.ListProperties(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("list page %d: %w", page, err)
		}
		out = append(out, list.Results...)

		if len(list.Results) < filter.PageSize || page*filter.PageSize >= list.Count {
			break
		}
	}
	if len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func (s *propertyService) ClearCache() {
	s.source.ClearCache()
}

// ToView localizes and formats p. Images are copied as listed; Get fills
// in scraped galleries.
func ToView(p *models.Property, loc *i18n.Localizer) models.PropertyView {
	locale := loc.Locale()

	title := p.Title.In(locale)
	if title == "" {
		title = loc.TWithParams("property.listing", map[string]string{"id": strconv.FormatInt(p.ID, 10)})
	}

	rawDescription := p.Description.In(locale)
	price := format.Price(p.Price, p.Currency, loc.T("currency.uzs"))
	if p.Deal == models.DealRent {
		price += " " + loc.T("property.per_month")
	}

	v := models.PropertyView{
		ID:          p.ID,
		URL:         PropertyPath(locale, p.ID),
		Title:       title,
		Description: format.SanitizeHTML(rawDescription),
		Summary:     format.Truncate(format.PlainText(rawDescription), summaryRunes),
		Price:       p.Price,
		Currency:    strings.ToUpper(p.Currency),
		PriceLabel:  price,
		Deal:        p.Deal,
		Type:        p.Type,
		Rooms:       p.Rooms,
		Area:        p.Area,
		Address:     p.Address.In(locale),
		Lat:         p.Lat,
		Lng:         p.Lng,
		Images:      slices.Clone(p.Images),
		IsFeatured:  p.IsFeatured,
	}
	if v.Images == nil {
		v.Images = []string{}
	}
	if len(v.Images) > 0 {
		v.Cover = v.Images[0]
	}
	if p.Deal != "" {
		v.DealLabel = loc.T("deal." + p.Deal)
	}
	if p.Type != "" {
		v.TypeLabel = loc.T("type." + p.Type)
	}
	if p.Rooms > 0 {
		v.RoomsLabel = loc.TWithParams("property.rooms", map[string]string{"count": strconv.Itoa(p.Rooms)})
	}
	if p.Area > 0 {
		v.AreaLabel = format.Area(locale, p.Area, loc.T("unit.sqm"))
	}
	if p.Floor > 0 && p.TotalFloors > 0 {
		v.FloorLabel = loc.TWithParams("property.floor", map[string]string{
			"floor": strconv.Itoa(p.Floor),
			"total": strconv.Itoa(p.TotalFloors),
		})
	}
	if p.District != nil {
		v.DistrictSlug = p.District.Slug
		v.DistrictName = p.District.Name.In(locale)
	}
	if t := p.LastModified(); !t.IsZero() {
		v.UpdatedAt = t.UTC().Format("2006-01-02")
	}
	return v
}

// PropertyPath is the site path of a detail page.
func PropertyPath(locale string, id int64) string {
	return "/" + locale + "/properties/" + strconv.FormatInt(id, 10)
}

// ParsePropertyID parses a path id; anything but a positive integer is
// not found.
func ParsePropertyID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: property %q", pkg.ErrNotFound, raw)
	}
	return id, nil
}
