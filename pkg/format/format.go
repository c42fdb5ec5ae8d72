// Package format turns raw listing values into display strings: prices,
// areas, plain-text summaries and sanitized description HTML.
package format

import (
	"html"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/uyjoy/site/pkg/i18n"
)

// Policies are safe for concurrent use once built.
var (
	ugcPolicy    = bluemonday.UGCPolicy()
	strictPolicy = bluemonday.StrictPolicy()
	enPrinter    = message.NewPrinter(language.English)
)

// Price renders an amount in the listing currency. USD prints as
// "$ 85,000"; UZS prints as "85 000 000 so'm" with suffix taken from the
// caller's dictionary. Unknown currencies keep their code as a suffix.
func Price(amount float64, currency, uzsSuffix string) string {
	n := int64(math.Round(amount))
	grouped := enPrinter.Sprintf("%d", n)

	switch strings.ToUpper(currency) {
	case "USD", "":
		return "$ " + grouped
	case "UZS":
		if uzsSuffix == "" {
			uzsSuffix = "so'm"
		}
		return strings.ReplaceAll(grouped, ",", " ") + " " + uzsSuffix
	default:
		return grouped + " " + strings.ToUpper(currency)
	}
}

// Area renders a floor area with at most one fraction digit in the
// locale's number format, followed by unit ("m²").
func Area(locale string, area float64, unit string) string {
	p := message.NewPrinter(i18n.Tag(locale))
	return p.Sprint(number.Decimal(area, number.MaxFractionDigits(1))) + " " + unit
}

// Truncate cuts s to at most max runes, preferring the last word boundary,
// and appends "…" when anything was removed.
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}

	runes := []rune(s)
	cut := runes[:max-1]
	if i := lastSpace(cut); i > max/2 {
		cut = cut[:i]
	}
	return strings.TrimRightFunc(string(cut), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}) + "…"
}

func lastSpace(rs []rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if unicode.IsSpace(rs[i]) {
			return i
		}
	}
	return -1
}

// SanitizeHTML makes remote description HTML safe to render. Plain text
// keeps its line breaks.
func SanitizeHTML(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "<") {
		escaped := html.EscapeString(raw)
		escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
		return strings.ReplaceAll(escaped, "\n", "<br>")
	}
	return ugcPolicy.Sanitize(raw)
}

// PlainText strips all markup and collapses whitespace.
func PlainText(raw string) string {
	text := html.UnescapeString(strictPolicy.Sanitize(raw))
	return strings.Join(strings.Fields(text), " ")
}
