package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/uyjoy/site/handlers"
	"github.com/uyjoy/site/pkg"
	"github.com/uyjoy/site/services"
)

// AdminAuthMiddleware guards the admin API with a bearer token.
type AdminAuthMiddleware struct {
	adminService services.AdminService
}

// NewAdminAuthMiddleware, constructor.
func NewAdminAuthMiddleware(adminService services.AdminService) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{adminService: adminService}
}

// Require rejects requests without a valid "Authorization: Bearer <token>"
// header and stores the claims in the request context otherwise.
//
// Steps:
//  1. read the Authorization header
//  2. strip the "Bearer " prefix
//  3. AdminService.ValidateToken checks signature, issuer, subject and expiry
//  4. valid → claims go into the context under AdminContextKey, next runs
//  5. invalid → 401, next is NOT called
func (m *AdminAuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "authorization header required")
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "invalid authorization format, use: Bearer <token>")
			return
		}

		claims, err := m.adminService.ValidateToken(tokenString)
		if err != nil {
			pkg.Error(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), handlers.AdminContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
