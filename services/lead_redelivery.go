package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LeadRedelivery periodically retries failed leads in the background.
type LeadRedelivery interface {
	// Start launches the worker goroutine. The first pass runs at once.
	Start()

	// Stop ends the worker and waits for an in-flight pass to finish.
	Stop()
}

type leadRedelivery struct {
	leads    LeadService
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger

	stopCh   chan struct{}
	doneCh   chan struct{}
	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
}

// DefaultRedeliveryInterval replaces a non-positive interval, which
// time.NewTicker would panic on.
const DefaultRedeliveryInterval = time.Minute

// NewLeadRedelivery is the constructor. Each pass is bounded by interval so
// a hanging channel cannot stack passes.
func NewLeadRedelivery(leads LeadService, interval time.Duration, log *zap.Logger) LeadRedelivery {
	if interval <= 0 {
		interval = DefaultRedeliveryInterval
	}
	return &leadRedelivery{
		leads:    leads,
		interval: interval,
		timeout:  interval,
		log:      log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (w *leadRedelivery) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true

	w.log.Info("starting", zap.Duration("interval", w.interval))

	go func() {
		defer close(w.doneCh)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-w.stopCh:
				cancel()
			case <-ctx.Done():
			}
		}()

		w.runOnce(ctx)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				w.runOnce(ctx)
			case <-w.stopCh:
				w.log.Info("stopped")
				return
			}
		}
	}()
}

func (w *leadRedelivery) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })

	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.doneCh
	}
}

func (w *leadRedelivery) runOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	n, err := w.leads.RedeliverFailed(ctx)
	if err != nil {
		w.log.Error("redelivery pass failed", zap.Error(err))
		return
	}
	if n > 0 {
		w.log.Info("redelivered leads", zap.Int("count", n))
	}
}
