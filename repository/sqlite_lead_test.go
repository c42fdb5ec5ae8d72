package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/uyjoy/site/database"
	"github.com/uyjoy/site/models"
	"github.com/uyjoy/site/pkg"
	"github.com/uyjoy/site/pkg/crypto"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "leads.db"), database.Migrations(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db.Conn
}

func newLead(name string, created time.Time) *models.Lead {
	return &models.Lead{
		ID:        uuid.New().String(),
		Name:      name,
		Phone:     "+998901234567",
		Locale:    "uz",
		CreatedAt: created,
	}
}

func TestLeadRepo_CreateAndGet(t *testing.T) {
	repo := NewSQLiteLeadRepo(openTestDB(t), nil)
	ctx := context.Background()

	pid := int64(12)
	lead := newLead("Aziz", time.Now())
	lead.PropertyID = &pid
	lead.Message = "Call after 6pm"
	require.NoError(t, repo.Create(ctx, lead))

	got, err := repo.GetByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "Aziz", got.Name)
	assert.Equal(t, "+998901234567", got.Phone)
	assert.Equal(t, models.LeadPending, got.Status)
	require.NotNil(t, got.PropertyID)
	assert.Equal(t, int64(12), *got.PropertyID)
	assert.Nil(t, got.DeliveredAt)
	assert.WithinDuration(t, lead.CreatedAt, got.CreatedAt, time.Second)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	assert.ErrorIs(t, repo.Create(ctx, lead), pkg.ErrAlreadyExists)
}

func TestLeadRepo_EncryptsPhone(t *testing.T) {
	conn := openTestDB(t)
	key, err := crypto.DeriveKey(testKey)
	require.NoError(t, err)
	repo := NewSQLiteLeadRepo(conn, key)
	ctx := context.Background()

	lead := newLead("Dilnoza", time.Now())
	require.NoError(t, repo.Create(ctx, lead))

	var stored string
	require.NoError(t, conn.QueryRow("SELECT phone FROM leads WHERE id = ?", lead.ID).Scan(&stored))
	assert.True(t, strings.HasPrefix(stored, encPrefix))
	assert.NotContains(t, stored, "998901234567")

	got, err := repo.GetByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "+998901234567", got.Phone)

	// Without the key the row cannot be read back.
	_, err = NewSQLiteLeadRepo(conn, nil).GetByID(ctx, lead.ID)
	assert.ErrorContains(t, err, "ENCRYPTION_KEY")
}

func TestLeadRepo_StatusTransitions(t *testing.T) {
	repo := NewSQLiteLeadRepo(openTestDB(t), nil)
	ctx := context.Background()
	now := time.Now()

	lead := newLead("Bekzod", now)
	require.NoError(t, repo.Create(ctx, lead))

	require.NoError(t, repo.MarkFailed(ctx, lead.ID, "telegram: timeout", now))
	got, err := repo.GetByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadFailed, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, "telegram: timeout", got.LastError)

	require.NoError(t, repo.MarkDelivered(ctx, lead.ID, now.Add(time.Minute)))
	got, err = repo.GetByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadDelivered, got.Status)
	assert.Equal(t, 2, got.Attempts)
	assert.Empty(t, got.LastError)
	require.NotNil(t, got.DeliveredAt)

	attempts, err := repo.ListAttempts(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.False(t, attempts[0].OK)
	assert.Equal(t, "telegram: timeout", attempts[0].Error)
	assert.True(t, attempts[1].OK)

	assert.ErrorIs(t, repo.MarkDelivered(ctx, "missing", now), pkg.ErrNotFound)
	assert.ErrorIs(t, repo.MarkFailed(ctx, "missing", "x", now), pkg.ErrNotFound)
}

func TestLeadRepo_ListCountRetryable(t *testing.T) {
	repo := NewSQLiteLeadRepo(openTestDB(t), nil)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	var ids []string
	for i, name := range []string{"A1", "B2", "C3", "D4"} {
		lead := newLead(name, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Create(ctx, lead))
		ids = append(ids, lead.ID)
	}

	require.NoError(t, repo.MarkDelivered(ctx, ids[0], base))
	require.NoError(t, repo.MarkFailed(ctx, ids[1], "e", base))
	require.NoError(t, repo.MarkFailed(ctx, ids[2], "e", base))
	for range 2 {
		require.NoError(t, repo.MarkFailed(ctx, ids[2], "e", base))
	}

	all, err := repo.List(ctx, "", 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "D4", all[0].Name, "newest first")

	page, err := repo.List(ctx, "", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "B2", page[0].Name)

	failed, err := repo.List(ctx, models.LeadFailed, 10, 0)
	require.NoError(t, err)
	assert.Len(t, failed, 2)

	n, err := repo.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	n, err = repo.Count(ctx, models.LeadPending)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	retry, err := repo.ListRetryable(ctx, 3, 20)
	require.NoError(t, err)
	require.Len(t, retry, 1, "C3 has used up its attempts")
	assert.Equal(t, ids[1], retry[0].ID)
}
