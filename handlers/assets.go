package handlers

import (
	"io/fs"
	"net/http"
	"strings"
)

const assetCacheControl = "public, max-age=86400"

// Assets serves the embedded bundle under /assets/. Directory listings
// are not exposed.
func Assets(assets fs.FS) http.Handler {
	files := http.StripPrefix("/assets/", http.FileServerFS(assets))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", assetCacheControl)
		files.ServeHTTP(w, r)
	})
}

// Favicon answers /favicon.ico with the bundled icon.
func Favicon(assets fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", assetCacheControl)
		http.ServeFileFS(w, r, assets, "img/favicon.png")
	}
}
