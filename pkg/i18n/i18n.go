// Package i18n provides the site dictionaries and locale helpers.
//
// Every page and API response is rendered for one of four locales:
// uz (default), ru, en and uz-cy (Uzbek in Cyrillic script). Dictionaries
// are nested JSON files; they are flattened into dot keys for lookups and
// kept nested for the client-side dictionary endpoint.
//
// Usage:
//
//	loc := i18n.NewLocalizer("ru")
//	loc.T("nav.catalog") // "Каталог"
package i18n

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

// Locale codes.
const (
	Uzbek         = "uz"
	Russian       = "ru"
	English       = "en"
	UzbekCyrillic = "uz-cy"
)

// DefaultLocale is used when nothing better is known.
const DefaultLocale = Uzbek

// SupportedLocales in URL/navigation order.
var SupportedLocales = []string{Uzbek, Russian, English, UzbekCyrillic}

// localeTags maps our URL codes to BCP 47 tags. The first entry is the
// matcher fallback.
var localeTags = []language.Tag{
	language.MustParse("uz-Latn"),
	language.Russian,
	language.English,
	language.MustParse("uz-Cyrl"),
}

var matcher = language.NewMatcher(localeTags)

var (
	mu           sync.RWMutex
	translations map[string]map[string]string
	dictionaries map[string]map[string]any
)

// Load reads <locale>.json for every supported locale from localesFS.
// A missing or malformed file is an error. Calling Load again replaces the
// previous set.
func Load(localesFS fs.FS) error {
	flatAll := make(map[string]map[string]string, len(SupportedLocales))
	nestedAll := make(map[string]map[string]any, len(SupportedLocales))

	for _, locale := range SupportedLocales {
		fileName := locale + ".json"

		data, err := fs.ReadFile(localesFS, fileName)
		if err != nil {
			return fmt.Errorf("failed to read dictionary %s: %w", fileName, err)
		}

		var nested map[string]any
		if err := json.Unmarshal(data, &nested); err != nil {
			return fmt.Errorf("failed to parse dictionary %s: %w", fileName, err)
		}

		flat := make(map[string]string)
		flattenMap("", nested, flat)

		flatAll[locale] = flat
		nestedAll[locale] = nested
	}

	mu.Lock()
	translations = flatAll
	dictionaries = nestedAll
	mu.Unlock()

	return nil
}

// KeyCount returns how many keys the locale's dictionary has.
func KeyCount(locale string) int {
	mu.RLock()
	defer mu.RUnlock()
	return len(translations[locale])
}

// Dictionary returns the nested dictionary for a locale, as served to
// client widgets. ok is false for unsupported locales.
func Dictionary(locale string) (map[string]any, bool) {
	mu.RLock()
	defer mu.RUnlock()

	d, ok := dictionaries[locale]
	return d, ok
}

// Localizer translates keys for a single locale.
type Localizer struct {
	locale string
}

// NewLocalizer returns a localizer; unsupported locales fall back to the default.
func NewLocalizer(locale string) *Localizer {
	if !IsSupported(locale) {
		locale = DefaultLocale
	}
	return &Localizer{locale: locale}
}

// Locale returns the localizer's locale code.
func (l *Localizer) Locale() string {
	return l.locale
}

// T returns the text for key. Missing keys fall back to the default locale,
// then to the key itself.
func (l *Localizer) T(key string) string {
	mu.RLock()
	defer mu.RUnlock()

	if msg, ok := translations[l.locale][key]; ok {
		return msg
	}
	if msg, ok := translations[DefaultLocale][key]; ok {
		return msg
	}
	return key
}

// TWithParams replaces {{name}} placeholders in the translated text.
//
//	loc.TWithParams("catalog.found", map[string]string{"count": "12"})
func (l *Localizer) TWithParams(key string, params map[string]string) string {
	msg := l.T(key)
	for k, v := range params {
		msg = strings.ReplaceAll(msg, "{{"+k+"}}", v)
	}
	return msg
}

// IsSupported reports whether locale is one of the URL locale codes.
func IsSupported(locale string) bool {
	for _, l := range SupportedLocales {
		if l == locale {
			return true
		}
	}
	return false
}

// Match picks the best supported locale for an Accept-Language header.
// "uz-Cyrl-UZ" resolves to uz-cy, plain "uz" to uz. Empty or unparsable
// headers yield the default locale.
func Match(acceptLanguage string) string {
	if strings.TrimSpace(acceptLanguage) == "" {
		return DefaultLocale
	}

	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return DefaultLocale
	}

	_, index, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return DefaultLocale
	}
	return SupportedLocales[index]
}

// Tag returns the BCP 47 tag for a locale code.
func Tag(locale string) language.Tag {
	for i, l := range SupportedLocales {
		if l == locale {
			return localeTags[i]
		}
	}
	return localeTags[0]
}

// HrefLang returns the hreflang attribute value for a locale.
func HrefLang(locale string) string {
	switch locale {
	case UzbekCyrillic:
		return "uz-Cyrl"
	case Uzbek, Russian, English:
		return locale
	default:
		return DefaultLocale
	}
}

// OGLocale returns the Open Graph locale for a locale code.
func OGLocale(locale string) string {
	switch locale {
	case Russian:
		return "ru_RU"
	case English:
		return "en_US"
	default:
		return "uz_UZ"
	}
}

// flattenMap turns nested JSON into dot keys:
// {"nav": {"home": "Bosh sahifa"}} → {"nav.home": "Bosh sahifa"}
func flattenMap(prefix string, src map[string]any, dst map[string]string) {
	for k, v := range src {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		switch val := v.(type) {
		case string:
			dst[key] = val
		case map[string]any:
			flattenMap(key, val, dst)
		}
	}
}
