package models

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"+998 (90) 123-45-67", "+998901234567", true},
		{"90.123.45.67", "901234567", true},
		{"1234567", "1234567", true},
		{"123456", "", false},
		{"+1234567890123456", "", false},
		{"12+34567", "", false},
		{"call me", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizePhone(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateLeadRequest_Validate(t *testing.T) {
	valid := func() CreateLeadRequest {
		return CreateLeadRequest{Name: "  Aziz  ", Phone: "+998 90 123 45 67", Message: " hi "}
	}

	t.Run("normalizes", func(t *testing.T) {
		r := valid()
		r.PropertyID = -5
		require.NoError(t, r.Validate())
		assert.Equal(t, "Aziz", r.Name)
		assert.Equal(t, "+998901234567", r.Phone)
		assert.Equal(t, "hi", r.Message)
		assert.Zero(t, r.PropertyID)
	})

	tests := []struct {
		name  string
		edit  func(*CreateLeadRequest)
		field string
	}{
		{"short name", func(r *CreateLeadRequest) { r.Name = "A" }, "name"},
		{"long name", func(r *CreateLeadRequest) { r.Name = strings.Repeat("я", 101) }, "name"},
		{"bad phone", func(r *CreateLeadRequest) { r.Phone = "12-34" }, "phone"},
		{"long message", func(r *CreateLeadRequest) { r.Message = strings.Repeat("x", 1001) }, "message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.edit(&r)
			err := r.Validate()
			var fe *FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.field, fe.Field)
		})
	}

	t.Run("long page url is cut on a rune boundary", func(t *testing.T) {
		r := valid()
		r.PageURL = "/" + strings.Repeat("a", 2046) + "я"
		require.NoError(t, r.Validate())
		assert.True(t, utf8.ValidString(r.PageURL))
		assert.Len(t, r.PageURL, 2047)
	})

	t.Run("cyrillic name counts runes", func(t *testing.T) {
		r := valid()
		r.Name = "Ян"
		assert.NoError(t, r.Validate())
	})
}

func TestCreateLeadRequest_IsSpam(t *testing.T) {
	assert.False(t, (&CreateLeadRequest{}).IsSpam())
	assert.True(t, (&CreateLeadRequest{Website: "http://spam"}).IsSpam())
}

func TestLocalizedText_In(t *testing.T) {
	txt := LocalizedText{"ru": "Квартира", "en": "Flat"}

	assert.Equal(t, "Flat", txt.In("en"))
	assert.Equal(t, "Квартира", txt.In("uz-cy"), "falls back through uz to ru")
	assert.Equal(t, "only", LocalizedText{"de": "only"}.In("uz"))

	odd := LocalizedText{"kk": "kazakh", "de": "german", "tr": "turkish", "fr": ""}
	for range 20 {
		assert.Equal(t, "german", odd.In("uz"), "first non-empty key in sorted order")
	}
	assert.Equal(t, "", LocalizedText{}.In("uz"))
}

func TestNewPropertyPage(t *testing.T) {
	p := NewPropertyPage(nil, 25, 2, 12)
	assert.Equal(t, 3, p.Pages)
	assert.NotNil(t, p.Items)
	assert.True(t, p.HasPrev())
	assert.True(t, p.HasNext())

	empty := NewPropertyPage(nil, 0, 1, 12)
	assert.Equal(t, 1, empty.Pages)
	assert.False(t, empty.HasNext())
}
