// Package handlers turns HTTP requests into service calls.
//
// A handler does three things and nothing more:
//  1. parse the request (path values, query, JSON or form body)
//  2. call a service
//  3. write the response
//
// Business rules (validation, rate limits, caching) live in services;
// handlers never touch SQL or the remote API directly.
//
// There are two kinds of handler:
//
//	JSON handlers  → /api/*, answer with the pkg envelope:
//	                 { "success": true, "data": ... } or
//	                 { "success": false, "error": "..." }
//	page handlers  → /{locale}/*, render html/template pages from the
//	                 static bundle through Renderer
//
// Domain errors map to status codes in one place (pkg.StatusFor), so a
// handler just passes the error on: pkg.Error(w, err) for JSON and
// renderError for pages.
//
// Request-scoped values (locale, admin claims) travel in the context under
// the keys declared here. Middleware writes them, handlers read them.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/uyjoy/site/models"
	"github.com/uyjoy/site/pkg/i18n"
)

type contextKey string

// LocaleContextKey carries the active locale, set by the locale middleware.
const LocaleContextKey contextKey = "locale"

// AdminContextKey carries *models.AdminClaims on admin routes.
const AdminContextKey contextKey = "admin"

// WithLocale returns ctx carrying locale.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, LocaleContextKey, locale)
}

// LocaleFrom returns the request locale, or the default one.
func LocaleFrom(ctx context.Context) string {
	if l, ok := ctx.Value(LocaleContextKey).(string); ok && i18n.IsSupported(l) {
		return l
	}
	return i18n.DefaultLocale
}

// AdminFrom returns the admin claims placed by the auth middleware.
func AdminFrom(ctx context.Context) (*models.AdminClaims, bool) {
	c, ok := ctx.Value(AdminContextKey).(*models.AdminClaims)
	return c, ok
}

// requestLocale is LocaleFrom with a path fallback, for handlers that run
// outside the locale middleware (panic recovery).
func requestLocale(r *http.Request) string {
	if l, ok := r.Context().Value(LocaleContextKey).(string); ok && i18n.IsSupported(l) {
		return l
	}
	segment, _, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if i18n.IsSupported(segment) {
		return segment
	}
	return i18n.DefaultLocale
}
