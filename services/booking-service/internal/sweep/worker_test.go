package sweep

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

type fakeStore struct {
	cutoffs []time.Time
	n       int64
	err     error
}

func (f *fakeStore) CompleteDue(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.n, f.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweep_CutoffIsNowMinusGrace(t *testing.T) {
	store := &fakeStore{n: 2}
	w := New(store, discard(), Config{Grace: 30 * time.Minute})
	now := time.Date(2024, 6, 13, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	w.Sweep(context.Background())

	if len(store.cutoffs) != 1 {
		t.Fatalf("expected 1 call, got %d", len(store.cutoffs))
	}
	want := time.Date(2024, 6, 13, 11, 30, 0, 0, time.UTC)
	if !store.cutoffs[0].Equal(want) {
		t.Fatalf("expected cutoff %v, got %v", want, store.cutoffs[0])
	}
}

func TestSweep_ErrorDoesNotPanic(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	w := New(store, discard(), Config{})
	w.Sweep(context.Background())
	// Next tick sweeps again.
	w.Sweep(context.Background())
	if len(store.cutoffs) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(store.cutoffs))
	}
}

// statefulStore actually transitions rows so repeated sweeps see the
// effect of earlier ones.
type statefulStore struct {
	startsAt  []time.Time
	completed []bool
	counts    []int64
}

func (f *statefulStore) CompleteDue(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for i := range f.startsAt {
		if !f.completed[i] && !f.startsAt[i].After(cutoff) {
			f.completed[i] = true
			n++
		}
	}
	f.counts = append(f.counts, n)
	return n, nil
}

func TestSweep_SecondPassIsNoOp(t *testing.T) {
	now := time.Date(2024, 6, 13, 12, 0, 0, 0, time.UTC)
	store := &statefulStore{
		startsAt: []time.Time{
			now.Add(-2 * time.Hour),    // due
			now.Add(-45 * time.Minute), // due
			now.Add(-10 * time.Minute), // inside the grace window
		},
		completed: make([]bool, 3),
	}
	w := New(store, discard(), Config{Grace: 30 * time.Minute})
	w.now = func() time.Time { return now }

	w.Sweep(context.Background())
	w.Sweep(context.Background())

	if len(store.counts) != 2 {
		t.Fatalf("expected 2 passes, got %d", len(store.counts))
	}
	if store.counts[0] != 2 {
		t.Fatalf("first pass should complete 2 rows, got %d", store.counts[0])
	}
	if store.counts[1] != 0 {
		t.Fatalf("second pass must be a no-op, completed %d", store.counts[1])
	}
	if store.completed[2] {
		t.Fatal("row inside the grace window must stay scheduled")
	}
}

func TestConfigDefaults(t *testing.T) {
	w := New(&fakeStore{}, discard(), Config{})
	if w.grace != 30*time.Minute {
		t.Fatalf("expected 30m default grace, got %v", w.grace)
	}
	if w.every != time.Minute {
		t.Fatalf("expected 1m default interval, got %v", w.every)
	}
}
