package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/uyjoy/site/pkg"
)

// Recover turns a handler panic into a 500. API paths get the JSON
// envelope; pages go to fallback, normally the localized error page.
func Recover(log *zap.Logger, fallback http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				log.Error("panic recovered",
					zap.Any("panic", v),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Stack("stack"),
				)

				if rec.written() {
					return
				}
				switch {
				case strings.HasPrefix(r.URL.Path, "/api/"):
					pkg.ErrorWithMessage(w, http.StatusInternalServerError, pkg.ErrInternal.Error())
				case fallback != nil:
					fallback(w, r)
				default:
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
