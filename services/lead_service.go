package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uyjoy/site/models"
	"github.com/uyjoy/site/pkg"
	"github.com/uyjoy/site/pkg/i18n"
	"github.com/uyjoy/site/repository"
)

const (
	retryBatchSize = 20
	maxErrorText   = 500
)

// LeadNotifier is one delivery channel for leads (Telegram, e-mail).
type LeadNotifier interface {
	Name() string
	NotifyLead(ctx context.Context, lead *models.Lead, propertyURL string) error
}

// Limiter throttles submissions per key. *ratelimit.WindowLimiter
// implements it.
type Limiter interface {
	Allow(key string) bool
	RetryAfterSeconds(key string) int
}

// RateLimitError is returned by Submit when the IP is over its limit.
type RateLimitError struct {
	RetryAfter int // seconds
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: retry after %d seconds", pkg.ErrTooManyRequests, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return pkg.ErrTooManyRequests }

// LeadService stores contact-form leads and relays them to the sales team.
type LeadService interface {
	// Submit validates, stores and relays a lead. Relay failures are logged
	// and left for redelivery; they are not returned. A filled honeypot
	// returns a lead that was neither stored nor relayed.
	Submit(ctx context.Context, req *models.CreateLeadRequest, ip string) (*models.Lead, error)

	// Retry relays one stored lead again, whatever its status.
	Retry(ctx context.Context, id string) (*models.Lead, error)

	// RedeliverFailed retries up to one batch of failed leads that still
	// have attempts left. It returns how many were delivered.
	RedeliverFailed(ctx context.Context) (int, error)

	// List returns one admin page of leads.
	List(ctx context.Context, status models.LeadStatus, limit, offset int) (*models.LeadList, error)

	// Attempts returns the relay history of a lead.
	Attempts(ctx context.Context, id string) ([]models.LeadAttempt, error)
}

type leadService struct {
	repo        repository.LeadRepository
	notifiers   []LeadNotifier
	limiter     Limiter
	siteURL     string
	maxAttempts int
	log         *zap.Logger
	now         func() time.Time
}

// NewLeadService is the constructor. notifiers may be empty, in which case
// leads are stored as failed until a channel is configured.
func NewLeadService(
	repo repository.LeadRepository,
	notifiers []LeadNotifier,
	limiter Limiter,
	siteURL string,
	maxAttempts int,
	log *zap.Logger,
) LeadService {
	return &leadService{
		repo:        repo,
		notifiers:   notifiers,
		limiter:     limiter,
		siteURL:     strings.TrimRight(siteURL, "/"),
		maxAttempts: maxAttempts,
		log:         log,
		now:         time.Now,
	}
}

// Submit steps:
// 1. honeypot → accept silently
// 2. per-IP rate limit
// 3. validation
// 4. store as pending
// 5. relay and record the outcome
func (s *leadService) Submit(ctx context.Context, req *models.CreateLeadRequest, ip string) (*models.Lead, error) {
	if req.IsSpam() {
		s.log.Info("honeypot triggered, lead dropped", zap.String("ip", ip))
		return &models.Lead{ID: uuid.New().String(), Status: models.LeadDelivered, CreatedAt: s.now()}, nil
	}

	if s.limiter != nil && !s.limiter.Allow(ip) {
		return nil, &RateLimitError{RetryAfter: s.limiter.RetryAfterSeconds(ip)}
	}

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", pkg.ErrBadRequest, err)
	}

	locale := req.Locale
	if !i18n.IsSupported(locale) {
		locale = i18n.DefaultLocale
	}

	lead := &models.Lead{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Phone:     req.Phone,
		Message:   req.Message,
		Locale:    locale,
		PageURL:   req.PageURL,
		IP:        ip,
		Status:    models.LeadPending,
		CreatedAt: s.now().UTC(),
	}
	if req.PropertyID > 0 {
		id := req.PropertyID
		lead.PropertyID = &id
	}

	if err := s.repo.Create(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to store lead: %w", err)
	}
	s.log.Info("lead received", zap.String("lead_id", lead.ID), zap.String("locale", lead.Locale))

	// The visitor already got through; relay problems are ours to fix.
	if err := s.deliver(ctx, lead); err != nil {
		s.log.Warn("lead relay failed, queued for redelivery", zap.String("lead_id", lead.ID), zap.Error(err))
	}
	return lead, nil
}

func (s *leadService) Retry(ctx context.Context, id string) (*models.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.deliver(ctx, lead); err != nil {
		return lead, fmt.Errorf("%w: %v", pkg.ErrUpstream, err)
	}
	return lead, nil
}

func (s *leadService) RedeliverFailed(ctx context.Context) (int, error) {
	leads, err := s.repo.ListRetryable(ctx, s.maxAttempts, retryBatchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for i := range leads {
		if ctx.Err() != nil {
			break
		}
		if err := s.deliver(ctx, &leads[i]); err != nil {
			s.log.Warn("lead redelivery failed",
				zap.String("lead_id", leads[i].ID),
				zap.Int("attempts", leads[i].Attempts),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}
	return delivered, nil
}

func (s *leadService) List(ctx context.Context, status models.LeadStatus, limit, offset int) (*models.LeadList, error) {
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", pkg.ErrBadRequest, status)
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.repo.List(ctx, status, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.Count(ctx, status)
	if err != nil {
		return nil, err
	}
	return &models.LeadList{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *leadService) Attempts(ctx context.Context, id string) ([]models.LeadAttempt, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListAttempts(ctx, id)
}

// deliver fans out to every notifier and records the outcome on the lead,
// updating the passed struct to match the stored row.
func (s *leadService) deliver(ctx context.Context, lead *models.Lead) error {
	var errs []error
	if len(s.notifiers) == 0 {
		errs = append(errs, errors.New("no lead channel configured"))
	}

	propertyURL := ""
	if lead.PropertyID != nil {
		propertyURL = s.siteURL + PropertyPath(lead.Locale, *lead.PropertyID)
	}

	for _, n := range s.notifiers {
		if err := n.NotifyLead(ctx, lead, propertyURL); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}

	now := s.now().UTC()
	// Recording the outcome must not be cut short by a caller that is
	// already gone.
	recordCtx := context.WithoutCancel(ctx)

	if len(errs) == 0 {
		if err := s.repo.MarkDelivered(recordCtx, lead.ID, now); err != nil {
			return fmt.Errorf("failed to record delivery: %w", err)
		}
		lead.Status = models.LeadDelivered
		lead.Attempts++
		lead.LastError = ""
		lead.DeliveredAt = &now
		return nil
	}

	relayErr := errors.Join(errs...)
	errText := truncateError(relayErr.Error())
	if err := s.repo.MarkFailed(recordCtx, lead.ID, errText, now); err != nil {
		return errors.Join(relayErr, fmt.Errorf("failed to record failure: %w", err))
	}
	lead.Status = models.LeadFailed
	lead.Attempts++
	lead.LastError = errText
	return relayErr
}

func truncateError(s string) string {
	s = strings.ReplaceAll(s, "\n", "; ")
	if len(s) <= maxErrorText {
		return s
	}
	return strings.ToValidUTF8(s[:maxErrorText], "")
}
