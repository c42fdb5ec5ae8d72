package main

import (
	"database/sql"

	"github.com/uyjoy/site/repository"
)

// Repositories holds every repository instance.
type Repositories struct {
	Lead repository.LeadRepository
}

// initRepositories builds the SQLite repositories. A nil encryptionKey
// stores lead phones in plaintext.
func initRepositories(db *sql.DB, encryptionKey []byte) *Repositories {
	return &Repositories{
		Lead: repository.NewSQLiteLeadRepo(db, encryptionKey),
	}
}
