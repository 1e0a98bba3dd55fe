// Package lockout throttles brute-force login attempts: five consecutive
// failures lock the account for thirty minutes. The check runs before
// password verification, so a locked account rejects even the correct
// password until the lock expires.
package lockout

import (
	"context"
	"fmt"
	"time"
)

type State struct {
	Failures    int
	LastFailure time.Time
	LockedUntil time.Time
}

type Store interface {
	Get(ctx context.Context, email string) (State, error)
	Put(ctx context.Context, email string, st State) error
	Clear(ctx context.Context, email string) error
}

// LockedError carries when the account unlocks so the handler can tell the
// user.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked until %s", e.Until.Format(time.RFC3339))
}

type Guard struct {
	store       Store
	maxFailures int
	lockFor     time.Duration
	now         func() time.Time
}

type Config struct {
	MaxFailures int
	LockFor     time.Duration
}

func New(store Store, cfg Config) *Guard {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.LockFor <= 0 {
		cfg.LockFor = 30 * time.Minute
	}
	return &Guard{store: store, maxFailures: cfg.MaxFailures, lockFor: cfg.LockFor, now: time.Now}
}

// Check returns a LockedError while the account is locked. Call it before
// looking at the password.
func (g *Guard) Check(ctx context.Context, email string) error {
	st, err := g.store.Get(ctx, email)
	if err != nil {
		return err
	}
	if g.now().Before(st.LockedUntil) {
		return &LockedError{Until: st.LockedUntil}
	}
	return nil
}

// Failure records a failed attempt and locks the account when it is the
// maxFailures-th in a row. A failure after a stale streak (older than the
// lock duration) starts a fresh count.
func (g *Guard) Failure(ctx context.Context, email string) error {
	st, err := g.store.Get(ctx, email)
	if err != nil {
		return err
	}
	now := g.now()
	if !st.LastFailure.IsZero() && now.Sub(st.LastFailure) > g.lockFor {
		st.Failures = 0
	}
	st.Failures++
	st.LastFailure = now
	if st.Failures >= g.maxFailures {
		st.LockedUntil = now.Add(g.lockFor)
		st.Failures = 0
	}
	return g.store.Put(ctx, email, st)
}

// Success clears the streak. A correct password before the fifth failure
// resets the count to zero.
func (g *Guard) Success(ctx context.Context, email string) error {
	return g.store.Clear(ctx, email)
}
