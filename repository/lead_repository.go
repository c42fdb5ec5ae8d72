// Package repository hides SQL behind interfaces so services can be tested
// with fakes and the store can change without touching them.
package repository

import (
	"context"
	"time"

	"github.com/uyjoy/site/models"
)

// LeadRepository persists contact-form leads and their relay attempts.
type LeadRepository interface {
	// Create inserts a new lead. ID and CreatedAt must be set.
	Create(ctx context.Context, lead *models.Lead) error

	// GetByID returns pkg.ErrNotFound for unknown ids.
	GetByID(ctx context.Context, id string) (*models.Lead, error)

	// List returns leads newest first. Empty status = all.
	List(ctx context.Context, status models.LeadStatus, limit, offset int) ([]models.Lead, error)

	// Count counts leads with status. Empty status = all.
	Count(ctx context.Context, status models.LeadStatus) (int, error)

	// MarkDelivered sets status delivered and records a successful attempt.
	MarkDelivered(ctx context.Context, id string, at time.Time) error

	// MarkFailed sets status failed, stores errText and records a failed
	// attempt. attempts is incremented.
	MarkFailed(ctx context.Context, id string, errText string, at time.Time) error

	// ListRetryable returns failed leads with fewer than maxAttempts
	// attempts, oldest first.
	ListRetryable(ctx context.Context, maxAttempts, limit int) ([]models.Lead, error)

	// ListAttempts returns a lead's relay history, oldest first.
	ListAttempts(ctx context.Context, leadID string) ([]models.LeadAttempt, error)
}
