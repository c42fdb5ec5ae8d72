package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/uyjoy/site/database"
	"github.com/uyjoy/site/models"
	"github.com/uyjoy/site/pkg"
	"github.com/uyjoy/site/repository"
)

type fakeNotifier struct {
	name string

	mu    sync.Mutex
	fail  error
	sent  []string // lead ids
	links []string
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) NotifyLead(_ context.Context, lead *models.Lead, propertyURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, lead.ID)
	f.links = append(f.links, propertyURL)
	return nil
}

func (f *fakeNotifier) setFail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeLimiter struct {
	allowed map[string]int
	max     int
}

func (l *fakeLimiter) Allow(key string) bool {
	if l.allowed == nil {
		l.allowed = map[string]int{}
	}
	l.allowed[key]++
	return l.allowed[key] <= l.max
}

func (l *fakeLimiter) RetryAfterSeconds(string) int { return 540 }

func newLeadTestService(t *testing.T, notifiers ...LeadNotifier) (LeadService, repository.LeadRepository) {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "leads.db"), database.Migrations(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := repository.NewSQLiteLeadRepo(db.Conn, nil)
	svc := NewLeadService(repo, notifiers, &fakeLimiter{max: 3}, "https://uyjoy.uz/", 3, zap.NewNop())
	return svc, repo
}

func validRequest() *models.CreateLeadRequest {
	return &models.CreateLeadRequest{
		Name:       "Aziza",
		Phone:      "+998 90 123-45-67",
		Message:    "Is it still available?",
		PropertyID: 42,
		Locale:     "ru",
	}
}

func TestLeadService_SubmitDelivers(t *testing.T) {
	tg := &fakeNotifier{name: "telegram"}
	svc, repo := newLeadTestService(t, tg)

	lead, err := svc.Submit(context.Background(), validRequest(), "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, models.LeadDelivered, lead.Status)
	assert.Equal(t, "+998901234567", lead.Phone)
	assert.Equal(t, []string{"https://uyjoy.uz/ru/properties/42"}, tg.links)

	stored, err := repo.GetByID(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadDelivered, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.Equal(t, "10.0.0.1", stored.IP)
}

func TestLeadService_SubmitRelayFailureIsNotReturned(t *testing.T) {
	tg := &fakeNotifier{name: "telegram", fail: errors.New("timeout")}
	mail := &fakeNotifier{name: "email"}
	svc, repo := newLeadTestService(t, tg, mail)

	lead, err := svc.Submit(context.Background(), validRequest(), "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, models.LeadFailed, lead.Status)
	assert.Equal(t, 1, mail.count(), "other channels still get the lead")

	stored, err := repo.GetByID(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadFailed, stored.Status)
	assert.Equal(t, "telegram: timeout", stored.LastError)
}

func TestLeadService_SubmitValidation(t *testing.T) {
	svc, _ := newLeadTestService(t, &fakeNotifier{name: "telegram"})

	req := validRequest()
	req.Phone = "12"

	_, err := svc.Submit(context.Background(), req, "10.0.0.1")
	assert.ErrorIs(t, err, pkg.ErrBadRequest)

	var fe *models.FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "phone", fe.Field)
}

func TestLeadService_SubmitHoneypot(t *testing.T) {
	tg := &fakeNotifier{name: "telegram"}
	svc, repo := newLeadTestService(t, tg)

	req := validRequest()
	req.Website = "http://buy-now.example"

	lead, err := svc.Submit(context.Background(), req, "10.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, lead.ID)
	assert.Zero(t, tg.count())

	n, err := repo.Count(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLeadService_SubmitRateLimited(t *testing.T) {
	svc, _ := newLeadTestService(t, &fakeNotifier{name: "telegram"})

	for range 3 {
		_, err := svc.Submit(context.Background(), validRequest(), "10.0.0.9")
		require.NoError(t, err)
	}

	_, err := svc.Submit(context.Background(), validRequest(), "10.0.0.9")
	assert.ErrorIs(t, err, pkg.ErrTooManyRequests)
	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 540, rl.RetryAfter)

	_, err = svc.Submit(context.Background(), validRequest(), "10.0.0.10")
	assert.NoError(t, err)
}

func TestLeadService_UnsupportedLocaleDefaults(t *testing.T) {
	tg := &fakeNotifier{name: "telegram"}
	svc, _ := newLeadTestService(t, tg)

	req := validRequest()
	req.Locale = "de"
	req.PropertyID = 0

	lead, err := svc.Submit(context.Background(), req, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "uz", lead.Locale)
	assert.Nil(t, lead.PropertyID)
	assert.Equal(t, []string{""}, tg.links)
}

func TestLeadService_RedeliverFailed(t *testing.T) {
	tg := &fakeNotifier{name: "telegram", fail: errors.New("down")}
	svc, repo := newLeadTestService(t, tg)
	ctx := context.Background()

	lead, err := svc.Submit(ctx, validRequest(), "10.0.0.1")
	require.NoError(t, err)

	n, err := svc.RedeliverFailed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	tg.setFail(nil)
	n, err = svc.RedeliverFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stored, err := repo.GetByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadDelivered, stored.Status)
	assert.Equal(t, 3, stored.Attempts)

	attempts, err := svc.Attempts(ctx, lead.ID)
	require.NoError(t, err)
	assert.Len(t, attempts, 3)

	n, err = svc.RedeliverFailed(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "delivered leads are not retried")
}

func TestLeadService_RedeliverStopsAtMaxAttempts(t *testing.T) {
	tg := &fakeNotifier{name: "telegram", fail: errors.New("down")}
	svc, _ := newLeadTestService(t, tg)
	ctx := context.Background()

	_, err := svc.Submit(ctx, validRequest(), "10.0.0.1")
	require.NoError(t, err)

	for range 5 {
		_, err := svc.RedeliverFailed(ctx)
		require.NoError(t, err)
	}

	list, err := svc.List(ctx, models.LeadFailed, 10, 0)
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, 3, list.Items[0].Attempts)
}

func TestLeadService_Retry(t *testing.T) {
	tg := &fakeNotifier{name: "telegram", fail: errors.New("down")}
	svc, _ := newLeadTestService(t, tg)
	ctx := context.Background()

	lead, err := svc.Submit(ctx, validRequest(), "10.0.0.1")
	require.NoError(t, err)

	_, err = svc.Retry(ctx, lead.ID)
	assert.ErrorIs(t, err, pkg.ErrUpstream)

	tg.setFail(nil)
	got, err := svc.Retry(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadDelivered, got.Status)

	_, err = svc.Retry(ctx, "missing")
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestLeadService_NoChannels(t *testing.T) {
	svc, _ := newLeadTestService(t)

	lead, err := svc.Submit(context.Background(), validRequest(), "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, models.LeadFailed, lead.Status)
	assert.Contains(t, lead.LastError, "no lead channel")
}

func TestLeadService_ListValidation(t *testing.T) {
	svc, _ := newLeadTestService(t)

	_, err := svc.List(context.Background(), "archived", 10, 0)
	assert.ErrorIs(t, err, pkg.ErrBadRequest)

	list, err := svc.List(context.Background(), "", 0, -5)
	require.NoError(t, err)
	assert.Equal(t, 50, list.Limit)
	assert.Zero(t, list.Offset)
	assert.Empty(t, list.Items)
}

func TestLeadRedelivery_StartStop(t *testing.T) {
	tg := &fakeNotifier{name: "telegram", fail: errors.New("down")}
	svc, _ := newLeadTestService(t, tg)

	// The database pool's goroutines outlive the test body.
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	_, err := svc.Submit(context.Background(), validRequest(), "10.0.0.1")
	require.NoError(t, err)
	tg.setFail(nil)

	w := NewLeadRedelivery(svc, 20*time.Millisecond, zap.NewNop())
	w.Start()
	assert.Eventually(t, func() bool { return tg.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	w.Stop()
	w.Stop()
}

func TestNewLeadRedelivery_NonPositiveInterval(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		w := NewLeadRedelivery(nil, d, zap.NewNop()).(*leadRedelivery)
		assert.Equal(t, DefaultRedeliveryInterval, w.interval)
		assert.Equal(t, DefaultRedeliveryInterval, w.timeout)
	}
}
