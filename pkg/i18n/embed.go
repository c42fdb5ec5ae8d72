package i18n

import (
	"embed"
	"io/fs"
)

// EmbeddedLocales holds locales/*.json.
// Use fs.Sub(EmbeddedLocales, "locales") to reach the files.
//
//go:embed locales/*.json
var EmbeddedLocales embed.FS

// LoadEmbedded loads the dictionaries compiled into the binary.
func LoadEmbedded() error {
	sub, err := fs.Sub(EmbeddedLocales, "locales")
	if err != nil {
		return err
	}
	return Load(sub)
}
