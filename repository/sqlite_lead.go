package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uyjoy/site/database"
	"github.com/uyjoy/site/models"
	"github.com/uyjoy/site/pkg"
	"github.com/uyjoy/site/pkg/crypto"
)

// encPrefix marks an encrypted phone column. Rows written before a key was
// configured stay readable as plaintext.
const encPrefix = "enc:"

const leadColumns = `id, name, phone, message, property_id, locale, page_url, ip,
	status, attempts, last_error, created_at, delivered_at`

type sqliteLeadRepo struct {
	db  *sql.DB
	key []byte // nil = phones stored as plaintext
}

// NewSQLiteLeadRepo returns the SQLite lead store. A non-nil key encrypts
// phone numbers with AES-256-GCM.
func NewSQLiteLeadRepo(db *sql.DB, key []byte) LeadRepository {
	return &sqliteLeadRepo{db: db, key: key}
}

func (r *sqliteLeadRepo) Create(ctx context.Context, lead *models.Lead) error {
	phone, err := r.sealPhone(lead.Phone)
	if err != nil {
		return err
	}
	if lead.Status == "" {
		lead.Status = models.LeadPending
	}

	query := `INSERT INTO leads (` + leadColumns + `)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		lead.ID, lead.Name, phone, lead.Message, lead.PropertyID, lead.Locale,
		lead.PageURL, lead.IP, lead.Status, lead.Attempts, lead.LastError,
		lead.CreatedAt.UTC(), utcPtr(lead.DeliveredAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: lead %s", pkg.ErrAlreadyExists, lead.ID)
		}
		return fmt.Errorf("failed to create lead: %w", err)
	}
	return nil
}

func (r *sqliteLeadRepo) GetByID(ctx context.Context, id string) (*models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = ?`

	lead, err := r.scanLead(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return lead, nil
}

func (r *sqliteLeadRepo) List(ctx context.Context, status models.LeadStatus, limit, offset int) ([]models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads
	          WHERE (? = '' OR status = ?)
	          ORDER BY created_at DESC, id
	          LIMIT ? OFFSET ?`

	return r.queryLeads(ctx, query, string(status), string(status), limit, offset)
}

func (r *sqliteLeadRepo) Count(ctx context.Context, status models.LeadStatus) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM leads WHERE (? = '' OR status = ?)`,
		string(status), string(status),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count leads: %w", err)
	}
	return n, nil
}

func (r *sqliteLeadRepo) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE leads SET status = ?, attempts = attempts + 1, last_error = '', delivered_at = ?
			 WHERE id = ?`,
			models.LeadDelivered, at.UTC(), id,
		)
		if err != nil {
			return fmt.Errorf("failed to mark lead delivered: %w", err)
		}
		if err := expectOneRow(res, id); err != nil {
			return err
		}
		return insertAttempt(ctx, tx, id, true, "", at)
	})
}

func (r *sqliteLeadRepo) MarkFailed(ctx context.Context, id string, errText string, at time.Time) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE leads SET status = ?, attempts = attempts + 1, last_error = ?
			 WHERE id = ?`,
			models.LeadFailed, errText, id,
		)
		if err != nil {
			return fmt.Errorf("failed to mark lead failed: %w", err)
		}
		if err := expectOneRow(res, id); err != nil {
			return err
		}
		return insertAttempt(ctx, tx, id, false, errText, at)
	})
}

func (r *sqliteLeadRepo) ListRetryable(ctx context.Context, maxAttempts, limit int) ([]models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads
	          WHERE status = ? AND attempts < ?
	          ORDER BY created_at ASC, id
	          LIMIT ?`

	return r.queryLeads(ctx, query, models.LeadFailed, maxAttempts, limit)
}

func (r *sqliteLeadRepo) ListAttempts(ctx context.Context, leadID string) ([]models.LeadAttempt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, lead_id, ok, error, created_at FROM lead_attempts
		 WHERE lead_id = ? ORDER BY created_at ASC, id ASC`,
		leadID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list lead attempts: %w", err)
	}
	defer rows.Close()

	attempts := []models.LeadAttempt{}
	for rows.Next() {
		var a models.LeadAttempt
		if err := rows.Scan(&a.ID, &a.LeadID, &a.OK, &a.Error, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lead attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lead attempts: %w", err)
	}
	return attempts, nil
}

func (r *sqliteLeadRepo) queryLeads(ctx context.Context, query string, args ...any) ([]models.Lead, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	leads := []models.Lead{}
	for rows.Next() {
		lead, err := r.scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, *lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leads: %w", err)
	}
	return leads, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *sqliteLeadRepo) scanLead(row rowScanner) (*models.Lead, error) {
	lead := &models.Lead{}
	var phone string
	err := row.Scan(
		&lead.ID, &lead.Name, &phone, &lead.Message, &lead.PropertyID,
		&lead.Locale, &lead.PageURL, &lead.IP, &lead.Status, &lead.Attempts,
		&lead.LastError, &lead.CreatedAt, &lead.DeliveredAt,
	)
	if err != nil {
		return nil, err
	}

	lead.Phone, err = r.openPhone(phone)
	if err != nil {
		return nil, err
	}
	return lead, nil
}

func (r *sqliteLeadRepo) sealPhone(phone string) (string, error) {
	if r.key == nil {
		return phone, nil
	}
	enc, err := crypto.Encrypt(phone, r.key)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt phone: %w", err)
	}
	return encPrefix + enc, nil
}

func (r *sqliteLeadRepo) openPhone(stored string) (string, error) {
	enc, ok := strings.CutPrefix(stored, encPrefix)
	if !ok {
		return stored, nil
	}
	if r.key == nil {
		return "", fmt.Errorf("phone is encrypted but no ENCRYPTION_KEY is configured")
	}
	phone, err := crypto.Decrypt(enc, r.key)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt phone: %w", err)
	}
	return phone, nil
}

func insertAttempt(ctx context.Context, q database.TxQuerier, leadID string, ok bool, errText string, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO lead_attempts (lead_id, ok, error, created_at) VALUES (?, ?, ?, ?)`,
		leadID, ok, errText, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record lead attempt: %w", err)
	}
	return nil
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: lead %s", pkg.ErrNotFound, id)
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
