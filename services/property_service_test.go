package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uyjoy/site/models"
	"github.com/uyjoy/site/pkg"
	"github.com/uyjoy/site/pkg/i18n"
)

func TestMain(m *testing.M) {
	if err := i18n.LoadEmbedded(); err != nil {
		panic(err)
	}
	m.Run()
}

// fakeSource is an in-memory PropertySource.
type fakeSource struct {
	mu        sync.Mutex
	props     []models.Property
	districts []models.District
	dirs      map[string][]string
	listErr   error
	filters   []models.PropertyFilter
	cleared   int
}

func (f *fakeSource) ListProperties(_ context.Context, filter models.PropertyFilter) (models.PropertyList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if f.listErr != nil {
		return models.PropertyList{}, f.listErr
	}

	var matched []models.Property
	for i := range f.props {
		if filter.Matches(&f.props[i]) {
			matched = append(matched, f.props[i])
		}
	}
	start := (filter.Page - 1) * filter.PageSize
	if start > len(matched) {
		start = len(matched)
	}
	end := min(start+filter.PageSize, len(matched))
	return models.PropertyList{Count: len(matched), Results: matched[start:end]}, nil
}

func (f *fakeSource) GetProperty(_ context.Context, id int64) (models.Property, error) {
	for _, p := range f.props {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Property{}, pkg.ErrNotFound
}

func (f *fakeSource) ListDistricts(context.Context) ([]models.District, error) {
	return f.districts, nil
}

func (f *fakeSource) ListImages(_ context.Context, dir string) ([]string, error) {
	imgs, ok := f.dirs[dir]
	if !ok {
		return nil, errors.New("listing unavailable")
	}
	return imgs, nil
}

func (f *fakeSource) ClearCache() { f.cleared++ }

var (
	chilonzor = &models.District{ID: 1, Slug: "chilonzor", Name: models.LocalizedText{"uz": "Chilonzor", "ru": "Чиланзар"}}
	yunusobod = &models.District{ID: 2, Slug: "yunusobod", Name: models.LocalizedText{"uz": "Yunusobod", "ru": "Юнусабад"}}
)

func sampleProps() []models.Property {
	ts := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	return []models.Property{
		{
			ID: 1, Title: models.LocalizedText{"uz": "3 xonali kvartira", "ru": "3-комнатная квартира"},
			Description: models.LocalizedText{"ru": "<p>Светлая <b>квартира</b><script>x()</script></p>"},
			Price:       85000, Currency: "USD", Deal: models.DealSale, Type: models.TypeApartment,
			Rooms: 3, Area: 72.5, Floor: 4, TotalFloors: 9, District: chilonzor,
			Images: []string{"https://cdn.example.com/1/a.jpg"}, UpdatedAt: ts,
		},
		{ID: 2, Price: 5000000, Currency: "UZS", Deal: models.DealRent, Type: models.TypeApartment, Rooms: 2, District: chilonzor, IsFeatured: true, ImagesDir: "https://cdn.example.com/2/"},
		{ID: 3, Price: 90000, Currency: "USD", Deal: models.DealSale, District: chilonzor, ImagesDir: "https://cdn.example.com/broken/"},
		{ID: 4, Price: 120000, Currency: "USD", Deal: models.DealSale, District: yunusobod, IsFeatured: true},
		{ID: 5, Price: 70000, Currency: "USD", Deal: models.DealSale, District: chilonzor},
	}
}

func newPropertyTestService() (PropertyService, *fakeSource) {
	src := &fakeSource{
		props:     sampleProps(),
		districts: []models.District{*yunusobod, *chilonzor},
		dirs:      map[string][]string{"https://cdn.example.com/2/": {"https://cdn.example.com/2/1.jpg"}},
	}
	return NewPropertyService(src, zap.NewNop()), src
}

func TestPropertyService_List(t *testing.T) {
	svc, src := newPropertyTestService()

	page, err := svc.List(context.Background(), "ru", models.PropertyFilter{Deal: models.DealSale, PageSize: 2})
	require.NoError(t, err)

	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 2, page.Pages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, 1, src.filters[0].Page, "filter is normalized before the call")

	v := page.Items[0]
	assert.Equal(t, "3-комнатная квартира", v.Title)
	assert.Equal(t, "/ru/properties/1", v.URL)
	assert.Equal(t, "$ 85,000", v.PriceLabel)
	assert.Equal(t, "Продажа", v.DealLabel)
	assert.Equal(t, "Чиланзар", v.DistrictName)
	assert.Equal(t, "https://cdn.example.com/1/a.jpg", v.Cover)
	assert.Equal(t, "2026-05-01", v.UpdatedAt)
	assert.NotContains(t, v.Description, "script")
	assert.Equal(t, "Светлая квартира", v.Summary)
}

func TestPropertyService_ListEmpty(t *testing.T) {
	svc, _ := newPropertyTestService()

	page, err := svc.List(context.Background(), "uz", models.PropertyFilter{District: "nowhere"})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.NotNil(t, page.Items)
	assert.Equal(t, 1, page.Pages)
}

func TestPropertyService_ListUpstreamError(t *testing.T) {
	svc, src := newPropertyTestService()
	src.listErr = pkg.ErrUpstream

	_, err := svc.List(context.Background(), "uz", models.PropertyFilter{})
	assert.ErrorIs(t, err, pkg.ErrUpstream)
}

func TestPropertyService_Get(t *testing.T) {
	svc, _ := newPropertyTestService()

	d, err := svc.Get(context.Background(), "en", 1)
	require.NoError(t, err)

	assert.Equal(t, "3 xonali kvartira", d.Property.Title, "falls back to uz")
	assert.Equal(t, "Floor 4 of 9", d.Property.FloorLabel)
	assert.Equal(t, "3 rooms", d.Property.RoomsLabel)
	assert.Equal(t, "72.5 m²", d.Property.AreaLabel)

	ids := make([]int64, 0, len(d.Similar))
	for _, s := range d.Similar {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []int64{3, 5}, ids, "same district and deal, self excluded")

	_, err = svc.Get(context.Background(), "en", 99)
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestPropertyService_GalleryFromDirectory(t *testing.T) {
	svc, _ := newPropertyTestService()

	d, err := svc.Get(context.Background(), "uz", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.example.com/2/1.jpg"}, d.Property.Images)
	assert.Equal(t, "https://cdn.example.com/2/1.jpg", d.Property.Cover)
	assert.Contains(t, d.Property.PriceLabel, "5 000 000 so'm")
	assert.Equal(t, "Listing #2", ToView(&models.Property{ID: 2}, i18n.NewLocalizer("en")).Title)

	imgs, err := svc.Images(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, imgs, "broken listing yields an empty gallery")
}

func TestPropertyService_Featured(t *testing.T) {
	svc, _ := newPropertyTestService()

	views, err := svc.Featured(context.Background(), "uz", 3)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, int64(2), views[0].ID)
	assert.Equal(t, int64(4), views[1].ID)
	assert.Equal(t, int64(1), views[2].ID)
}

func TestPropertyService_Districts(t *testing.T) {
	svc, _ := newPropertyTestService()

	ds, err := svc.Districts(context.Background(), "ru")
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, "Чиланзар", ds[0].Name)
	assert.Equal(t, "Юнусабад", ds[1].Name)
}

func TestPropertyService_All(t *testing.T) {
	svc, src := newPropertyTestService()

	all, err := svc.All(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	all, err = svc.All(context.Background(), 100)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	svc.ClearCache()
	assert.Equal(t, 1, src.cleared)
}

func TestParsePropertyID(t *testing.T) {
	id, err := ParsePropertyID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"0", "-1", "abc", ""} {
		_, err := ParsePropertyID(raw)
		assert.ErrorIs(t, err, pkg.ErrNotFound, raw)
	}
}
