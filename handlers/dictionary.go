package handlers

import (
	"fmt"
	"net/http"

	"github.com/uyjoy/site/pkg"
	"github.com/uyjoy/site/pkg/i18n"
)

// DictionaryHandler exposes the UI dictionaries to client scripts.
type DictionaryHandler struct{}

// NewDictionaryHandler is the constructor. The dictionaries are loaded once
// at startup (i18n.LoadEmbedded), so the handler holds no state.
func NewDictionaryHandler() *DictionaryHandler {
	return &DictionaryHandler{}
}

// Get godoc
// GET /api/dictionary/{locale}
// Unknown locales are 404 rather than a silent fallback.
func (h *DictionaryHandler) Get(w http.ResponseWriter, r *http.Request) {
	locale := r.PathValue("locale")
	dict, ok := i18n.Dictionary(locale)
	if !ok {
		pkg.Error(w, fmt.Errorf("%w: locale %q", pkg.ErrNotFound, locale))
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	pkg.JSON(w, http.StatusOK, dict)
}
