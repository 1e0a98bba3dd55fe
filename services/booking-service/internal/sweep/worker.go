// Package sweep moves appointments from scheduled to completed once their
// start time is far enough in the past. Keeps the books tidy without the
// admin having to close every appointment by hand.
package sweep

import (
	"context"
	"log/slog"
	"time"
)

type Store interface {
	CompleteDue(ctx context.Context, cutoff time.Time) (int64, error)
}

type Worker struct {
	store  Store
	logger *slog.Logger
	grace  time.Duration
	every  time.Duration
	now    func() time.Time
}

type Config struct {
	// Grace is how long after its start time an appointment stays
	// scheduled before the sweep completes it.
	Grace time.Duration
	// Every is the polling interval.
	Every time.Duration
}

func New(store Store, logger *slog.Logger, cfg Config) *Worker {
	if cfg.Grace <= 0 {
		cfg.Grace = 30 * time.Minute
	}
	if cfg.Every <= 0 {
		cfg.Every = time.Minute
	}
	return &Worker{store: store, logger: logger, grace: cfg.Grace, every: cfg.Every, now: time.Now}
}

// Run sweeps until ctx is done. A failed sweep is logged and retried on the
// next tick; it never stops the worker.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

func (w *Worker) Sweep(ctx context.Context) {
	cutoff := w.now().Add(-w.grace)
	n, err := w.store.CompleteDue(ctx, cutoff)
	if err != nil {
		w.logger.Error("completion sweep failed", "err", err)
		return
	}
	if n > 0 {
		w.logger.Info("completion sweep", "completed", n)
	}
}
