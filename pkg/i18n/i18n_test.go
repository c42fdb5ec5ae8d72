package i18n

import (
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadEmbedded(t *testing.T) {
	t.Helper()
	sub, err := fs.Sub(EmbeddedLocales, "locales")
	require.NoError(t, err)
	require.NoError(t, Load(sub))
}

func TestLoad_AllLocalesShareKeys(t *testing.T) {
	loadEmbedded(t)

	base := KeyCount(DefaultLocale)
	require.Greater(t, base, 50)
	for _, locale := range SupportedLocales {
		assert.Equal(t, base, KeyCount(locale), "locale %s has a different key set", locale)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	broken := fstest.MapFS{
		"uz.json": {Data: []byte(`{"a":"b"}`)},
	}
	err := Load(broken)
	assert.Error(t, err)

	// The previous dictionaries survive a failed reload.
	loadEmbedded(t)
}

func TestLocalizer_T(t *testing.T) {
	loadEmbedded(t)

	assert.Equal(t, "Каталог", NewLocalizer(Russian).T("nav.catalog"))
	assert.Equal(t, "Catalog", NewLocalizer(English).T("nav.catalog"))
	assert.Equal(t, "Бош саҳифа", NewLocalizer(UzbekCyrillic).T("nav.home"))

	// Unsupported locale falls back to uz.
	loc := NewLocalizer("de")
	assert.Equal(t, DefaultLocale, loc.Locale())
	assert.Equal(t, "Katalog", loc.T("nav.catalog"))

	// Unknown key returns the key.
	assert.Equal(t, "no.such.key", loc.T("no.such.key"))
}

func TestLocalizer_TWithParams(t *testing.T) {
	loadEmbedded(t)

	msg := NewLocalizer(English).TWithParams("catalog.found", map[string]string{"count": "12"})
	assert.Equal(t, "12 listings found", msg)
}

func TestDictionary(t *testing.T) {
	loadEmbedded(t)

	d, ok := Dictionary(Russian)
	require.True(t, ok)
	nav, ok := d["nav"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Главная", nav["home"])

	_, ok = Dictionary("fr")
	assert.False(t, ok)
}

func TestMatch(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", DefaultLocale},
		{"ru-RU,ru;q=0.9,en-US;q=0.8", Russian},
		{"en-US,en;q=0.9", English},
		{"uz", Uzbek},
		{"uz-Cyrl-UZ,uz;q=0.8", UzbekCyrillic},
		{"de-DE", DefaultLocale},
		{";;;", DefaultLocale},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.header))
		})
	}
}

func TestHrefLangAndOGLocale(t *testing.T) {
	assert.Equal(t, "uz-Cyrl", HrefLang(UzbekCyrillic))
	assert.Equal(t, "ru", HrefLang(Russian))
	assert.Equal(t, "en_US", OGLocale(English))
	assert.Equal(t, "uz_UZ", OGLocale(UzbekCyrillic))
	assert.True(t, IsSupported("uz-cy"))
	assert.False(t, IsSupported("uz_cy"))
}
