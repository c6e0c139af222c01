package leaselock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// memLocks mimics the app_locks upsert semantics closely enough for tests.
type memLocks struct {
	mu    sync.Mutex
	owner map[string]string
}

type memRow struct {
	key string
	err error
}

func (r memRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.key
	return nil
}

func (m *memLocks) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, token := args[0].(string), args[1].(string)
	switch sql {
	case tryAcquireSQL:
		if cur, ok := m.owner[key]; ok && cur != token {
			return memRow{err: pgx.ErrNoRows}
		}
		m.owner[key] = token
		return memRow{key: key}
	case renewSQL:
		if m.owner[key] != token {
			return memRow{err: pgx.ErrNoRows}
		}
		return memRow{key: key}
	}
	return memRow{err: errors.New("unexpected query")}
}

func (m *memLocks) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, token := args[0].(string), args[1].(string)
	if sql == releaseSQL && m.owner[key] == token {
		delete(m.owner, key)
	}
	return pgconn.CommandTag{}, nil
}

func TestAcquireIsExclusive(t *testing.T) {
	c := New(&memLocks{owner: map[string]string{}})
	key := UserKey("documents", "u1")

	first, err := c.Acquire(context.Background(), key, Options{TTL: time.Minute})
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := c.Acquire(context.Background(), key, Options{TTL: time.Minute}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if err := first.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if first.Context.Err() == nil {
		t.Fatal("lease context should be cancelled after release")
	}

	second, err := c.Acquire(context.Background(), key, Options{TTL: time.Minute})
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	_ = second.Release(context.Background())
}

func TestWithLeaseReleases(t *testing.T) {
	locks := &memLocks{owner: map[string]string{}}
	c := New(locks)
	ran := false
	err := c.WithLease(context.Background(), "k", Options{}, func(ctx context.Context) error {
		ran = true
		if ctx.Err() != nil {
			t.Fatalf("lease context cancelled while held: %v", ctx.Err())
		}
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("WithLease: ran=%v err=%v", ran, err)
	}
	if len(locks.owner) != 0 {
		t.Fatalf("lock not released: %v", locks.owner)
	}
}

func TestWaitGivesUpOnContext(t *testing.T) {
	c := New(&memLocks{owner: map[string]string{"k": "someone-else"}})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.Acquire(ctx, "k", Options{Wait: true, WaitInterval: 5 * time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestOptionsNormalize(t *testing.T) {
	o := Options{TTL: 10 * time.Second, RenewEvery: time.Minute, WaitJitter: -1}.normalize()
	if o.RenewEvery != 5*time.Second {
		t.Fatalf("RenewEvery = %v, want 5s", o.RenewEvery)
	}
	if o.WaitInterval != 250*time.Millisecond {
		t.Fatalf("WaitInterval = %v", o.WaitInterval)
	}
	if o.WaitJitter != 0 {
		t.Fatalf("WaitJitter = %v", o.WaitJitter)
	}
	if d := (Options{}).normalize(); d.TTL != 5*time.Minute {
		t.Fatalf("default TTL = %v", d.TTL)
	}
}

func TestUserKey(t *testing.T) {
	if got := UserKey("documents", "u1"); got != "kgops:documents:u1" {
		t.Fatalf("UserKey = %q", got)
	}
	if got := UserKey("documents", ""); got != "kgops:documents:*" {
		t.Fatalf("UserKey = %q", got)
	}
}
