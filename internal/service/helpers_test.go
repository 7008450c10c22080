package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap/zaptest"

	"github.com/unclebandit/notification-engine/internal/catalog"
	"github.com/unclebandit/notification-engine/internal/db"
	"github.com/unclebandit/notification-engine/internal/repository"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t.UTC()
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	clock    *fakeClock
	resolver *ConfigResolver
	queue    *DeliveryQueue
	svc      *NotificationService
}

// newTestEnv wires the services over a private in-memory sqlite database.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	if err := db.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	clock := &fakeClock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	logger := zaptest.NewLogger(t)

	resolver := NewConfigResolver(repository.NewConfigRepository(conn, db.SQLite), catalog.Default(), logger)
	resolver.Now = clock.Now

	q := NewDeliveryQueue(repository.NewQueueRepository(conn, db.SQLite), resolver, RetryPolicy{
		MaxAttempts: 3,
		Backoff:     ExponentialBackoff(time.Minute, time.Hour),
	}, logger)
	q.Now = clock.Now

	return &testEnv{
		clock:    clock,
		resolver: resolver,
		queue:    q,
		svc:      NewNotificationService(resolver, q, logger),
	}
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }

func strsPtr(s ...string) *[]string { return &s }
