package database

import (
	"embed"
	"io/fs"
)

// EmbeddedMigrations holds migrations/*.sql so the binary needs no files
// next to it.
//
//go:embed migrations/*.sql
var EmbeddedMigrations embed.FS

// Migrations returns the embedded migrations rooted at the directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(EmbeddedMigrations, "migrations")
	if err != nil {
		// The pattern above guarantees the directory exists.
		panic(err)
	}
	return sub
}
