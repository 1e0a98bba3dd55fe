package lockout

import (
	"context"
	"errors"
	"testing"
	"time"
)

type memStore struct {
	states map[string]State
}

func newMemStore() *memStore { return &memStore{states: make(map[string]State)} }

func (m *memStore) Get(_ context.Context, email string) (State, error) {
	return m.states[email], nil
}

func (m *memStore) Put(_ context.Context, email string, st State) error {
	m.states[email] = st
	return nil
}

func (m *memStore) Clear(_ context.Context, email string) error {
	delete(m.states, email)
	return nil
}

func newGuard(store Store) (*Guard, *time.Time) {
	g := New(store, Config{})
	now := time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	return g, &now
}

const email = "maria@example.com"

func fail(t *testing.T, g *Guard, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := g.Failure(context.Background(), email); err != nil {
			t.Fatalf("Failure: %v", err)
		}
	}
}

func TestFifthFailureLocks(t *testing.T) {
	g, now := newGuard(newMemStore())

	fail(t, g, 4)
	if err := g.Check(context.Background(), email); err != nil {
		t.Fatalf("four failures must not lock: %v", err)
	}

	fail(t, g, 1)
	err := g.Check(context.Background(), email)
	var le *LockedError
	if !errors.As(err, &le) {
		t.Fatalf("expected LockedError after fifth failure, got %v", err)
	}
	if want := now.Add(30 * time.Minute); !le.Until.Equal(want) {
		t.Fatalf("expected lock until %v, got %v", want, le.Until)
	}
}

func TestLockExpires(t *testing.T) {
	g, now := newGuard(newMemStore())
	fail(t, g, 5)

	*now = now.Add(29 * time.Minute)
	if err := g.Check(context.Background(), email); err == nil {
		t.Fatal("lock should still hold at 29 minutes")
	}

	*now = now.Add(2 * time.Minute)
	if err := g.Check(context.Background(), email); err != nil {
		t.Fatalf("lock should have expired: %v", err)
	}
}

func TestSuccessResetsStreak(t *testing.T) {
	g, _ := newGuard(newMemStore())
	fail(t, g, 4)
	if err := g.Success(context.Background(), email); err != nil {
		t.Fatalf("Success: %v", err)
	}

	// Four more failures after the reset still do not lock.
	fail(t, g, 4)
	if err := g.Check(context.Background(), email); err != nil {
		t.Fatalf("streak should have been reset: %v", err)
	}
}

func TestStaleStreakStartsFresh(t *testing.T) {
	g, now := newGuard(newMemStore())
	fail(t, g, 4)

	// A failure long after the last one starts a new count.
	*now = now.Add(31 * time.Minute)
	fail(t, g, 1)
	if err := g.Check(context.Background(), email); err != nil {
		t.Fatalf("stale streak must not carry over: %v", err)
	}
}

func TestOtherAccountsUnaffected(t *testing.T) {
	g, _ := newGuard(newMemStore())
	fail(t, g, 5)
	if err := g.Check(context.Background(), "outra@example.com"); err != nil {
		t.Fatalf("lock must be per account: %v", err)
	}
}
