package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uyjoy/site/config"
	"github.com/uyjoy/site/services"
)

func TestSEOHandler(t *testing.T) {
	env := newTestEnv(t)
	profile, err := config.LoadSiteProfile("")
	require.NoError(t, err)
	h := NewSEOHandler(services.NewSitemapService(env.props, env.seo, profile, zap.NewNop()), zap.NewNop())

	rec := httptest.NewRecorder()
	h.Sitemap(rec, httptest.NewRequest(http.MethodGet, "/sitemap.xml", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<loc>https://uyjoy.uz/ru/properties/7</loc>")

	rec = httptest.NewRecorder()
	h.Robots(rec, httptest.NewRequest(http.MethodGet, "/robots.txt", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sitemap: https://uyjoy.uz/sitemap.xml")

	rec = httptest.NewRecorder()
	h.Manifest(rec, httptest.NewRequest(http.MethodGet, "/manifest.webmanifest", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/manifest+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"start_url": "/uz/"`)
}
