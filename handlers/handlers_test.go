package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uyjoy/site/config"
	"github.com/uyjoy/site/models"
	"github.com/uyjoy/site/pkg"
	"github.com/uyjoy/site/pkg/i18n"
	"github.com/uyjoy/site/services"
	"github.com/uyjoy/site/static"
)

func TestMain(m *testing.M) {
	if err := i18n.LoadEmbedded(); err != nil {
		panic(err)
	}
	m.Run()
}

// stubSource is an in-memory property API.
type stubSource struct {
	props     []models.Property
	districts []models.District
	fail      bool
	cleared   int
}

func (s *stubSource) ListProperties(_ context.Context, f models.PropertyFilter) (models.PropertyList, error) {
	if s.fail {
		return models.PropertyList{}, fmt.Errorf("%w: api down", pkg.ErrUpstream)
	}
	var matched []models.Property
	for i := range s.props {
		if f.Matches(&s.props[i]) {
			matched = append(matched, s.props[i])
		}
	}
	start := (f.Page - 1) * f.PageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := min(start+f.PageSize, len(matched))
	return models.PropertyList{Count: len(matched), Results: matched[start:end]}, nil
}

func (s *stubSource) GetProperty(_ context.Context, id int64) (models.Property, error) {
	if s.fail {
		return models.Property{}, fmt.Errorf("%w: api down", pkg.ErrUpstream)
	}
	for _, p := range s.props {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Property{}, fmt.Errorf("%w: property %d", pkg.ErrNotFound, id)
}

func (s *stubSource) ListDistricts(context.Context) ([]models.District, error) {
	return s.districts, nil
}

func (s *stubSource) ListImages(context.Context, string) ([]string, error) {
	return nil, nil
}

func (s *stubSource) ClearCache() { s.cleared++ }

var chilonzor = &models.District{ID: 1, Slug: "chilonzor", Name: models.LocalizedText{"uz": "Chilonzor", "ru": "Чиланзар"}}

func newStubSource() *stubSource {
	ts := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	return &stubSource{
		props: []models.Property{
			{
				ID: 7, Title: models.LocalizedText{"uz": "2 xonali kvartira", "ru": "2-комнатная квартира"},
				Description: models.LocalizedText{"ru": "<p>Светлая квартира</p>"},
				Price:       62000, Currency: "USD", Deal: models.DealSale, Type: models.TypeApartment,
				Rooms: 2, Area: 54, District: chilonzor, IsFeatured: true,
				Images:    []string{"https://cdn.example.com/7/a.jpg"},
				UpdatedAt: ts,
			},
			{ID: 8, Price: 4000000, Currency: "UZS", Deal: models.DealRent, Rooms: 1, District: chilonzor, UpdatedAt: ts},
		},
		districts: []models.District{*chilonzor},
	}
}

// stubLeads records submissions.
type stubLeads struct {
	submitted []*models.CreateLeadRequest
	err       error
}

func (s *stubLeads) Submit(_ context.Context, req *models.CreateLeadRequest, _ string) (*models.Lead, error) {
	if s.err != nil {
		return nil, s.err
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", pkg.ErrBadRequest, err)
	}
	s.submitted = append(s.submitted, req)
	return &models.Lead{ID: "lead-1", Status: models.LeadDelivered}, nil
}

func (s *stubLeads) Retry(_ context.Context, id string) (*models.Lead, error) {
	if id != "lead-1" {
		return nil, fmt.Errorf("%w: lead", pkg.ErrNotFound)
	}
	return &models.Lead{ID: id, Status: models.LeadDelivered}, nil
}

func (s *stubLeads) RedeliverFailed(context.Context) (int, error) { return 0, nil }

func (s *stubLeads) List(_ context.Context, status models.LeadStatus, limit, offset int) (*models.LeadList, error) {
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status", pkg.ErrBadRequest)
	}
	return &models.LeadList{Items: []models.Lead{{ID: "lead-1"}}, Total: 1, Limit: 50}, nil
}

func (s *stubLeads) Attempts(context.Context, string) ([]models.LeadAttempt, error) {
	return []models.LeadAttempt{{ID: 1, LeadID: "lead-1", OK: true}}, nil
}

type testEnv struct {
	source *stubSource
	leads  *stubLeads
	pages  *PageHandler
	props  services.PropertyService
	seo    services.SEOService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	profile, err := config.LoadSiteProfile("")
	require.NoError(t, err)

	renderer, err := NewRenderer(static.Templates(), profile, zap.NewNop())
	require.NoError(t, err)

	src := newStubSource()
	props := services.NewPropertyService(src, zap.NewNop())
	seo := services.NewSEOService("https://uyjoy.uz", profile, zap.NewNop())
	leads := &stubLeads{}

	return &testEnv{
		source: src,
		leads:  leads,
		pages:  NewPageHandler(props, leads, seo, renderer, zap.NewNop()),
		props:  props,
		seo:    seo,
	}
}

// pageRequest builds a request as the locale middleware would pass it on.
func pageRequest(method, target, locale string, form url.Values) *http.Request {
	var r *http.Request
	if form != nil {
		r = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	return r.WithContext(WithLocale(r.Context(), locale))
}
