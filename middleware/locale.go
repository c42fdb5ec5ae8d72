// Package middleware holds the layers wrapped around the HTTP handlers.
//
// A middleware is a function:
//
//	func(next http.Handler) http.Handler
//
// "next" is the following handler in the chain. The middleware does its
// own part (detect a locale, check a token) and then calls next. When it
// answers by itself (a redirect, a 401) it does not call next and the
// request stops there.
//
// The chain, outermost first (see init_routes.go):
//
//	client IP → AccessLog → Recover → mux
//	                                   ├─ /api/*       CORS → [AdminAuth] → handler
//	                                   └─ /{locale}/*  Locale → page handler
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/uyjoy/site/handlers"
	"github.com/uyjoy/site/pkg/i18n"
)

// LocaleCookie remembers the last locale a visitor picked.
const LocaleCookie = "locale"

const localeCookieMaxAge = 365 * 24 * time.Hour

// localeExempt paths are served without a locale prefix.
var localeExempt = []string{
	"/api/",
	"/assets/",
	"/sitemap.xml",
	"/robots.txt",
	"/manifest.webmanifest",
	"/favicon.ico",
}

// LocaleMiddleware resolves the locale from the first path segment.
type LocaleMiddleware struct {
	secureCookie bool
}

// NewLocaleMiddleware is the constructor. secureCookie marks the cookie
// Secure, set when the site is served over https.
func NewLocaleMiddleware(secureCookie bool) *LocaleMiddleware {
	return &LocaleMiddleware{secureCookie: secureCookie}
}

// Handle puts the path locale into the request context. Requests without a
// locale prefix are redirected (302) to the detected locale: cookie first,
// then Accept-Language, then the default.
func (m *LocaleMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if isLocaleExempt(path) {
			next.ServeHTTP(w, r)
			return
		}

		segment, _, hasSlash := strings.Cut(strings.TrimPrefix(path, "/"), "/")
		if i18n.IsSupported(segment) {
			if !hasSlash {
				// "/ru" → "/ru/"
				redirect(w, r, "/"+segment+"/")
				return
			}
			m.remember(w, r, segment)
			next.ServeHTTP(w, r.WithContext(handlers.WithLocale(r.Context(), segment)))
			return
		}

		redirect(w, r, "/"+m.detect(r)+r.URL.EscapedPath())
	})
}

func (m *LocaleMiddleware) detect(r *http.Request) string {
	if c, err := r.Cookie(LocaleCookie); err == nil && i18n.IsSupported(c.Value) {
		return c.Value
	}
	return i18n.Match(r.Header.Get("Accept-Language"))
}

func (m *LocaleMiddleware) remember(w http.ResponseWriter, r *http.Request, locale string) {
	if c, err := r.Cookie(LocaleCookie); err == nil && c.Value == locale {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     LocaleCookie,
		Value:    locale,
		Path:     "/",
		MaxAge:   int(localeCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func redirect(w http.ResponseWriter, r *http.Request, target string) {
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	w.Header().Set("Vary", "Accept-Language, Cookie")
	http.Redirect(w, r, target, http.StatusFound)
}

func isLocaleExempt(path string) bool {
	for _, p := range localeExempt {
		if strings.HasSuffix(p, "/") {
			if strings.HasPrefix(path, p) || path+"/" == p {
				return true
			}
			continue
		}
		if path == p {
			return true
		}
	}
	return false
}
