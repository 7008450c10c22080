package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/unclebandit/notification-engine/internal/errors"
	"github.com/unclebandit/notification-engine/internal/model"
	"github.com/unclebandit/notification-engine/internal/queue"
)

func enqueue(t *testing.T, env *testEnv, company string) *model.QueueItem {
	t.Helper()
	item, err := env.queue.Enqueue(context.Background(), company, "ORDER_CREATED", []string{"buyer@acme.test"}, json.RawMessage(`{"orderId":"PO-1"}`))
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return item
}

func TestEnqueueCopiesConfigSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.resolver.Upsert(ctx, "ACME", model.ConfigPatch{
		BrandName: strPtr("Acme"),
		CCEmails:  strsPtr("ops@acme.test"),
		BCCEmails: strsPtr("audit@acme.test"),
	}, "alice"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	item := enqueue(t, env, "ACME")
	if item.Status != model.StatusPending || item.Attempts != 0 || item.LastError != nil {
		t.Errorf("unexpected initial state: %+v", item)
	}
	if !item.ScheduledFor.Equal(env.clock.Now()) {
		t.Errorf("expected immediate schedule, got %v", item.ScheduledFor)
	}
	if item.Branding.BrandName != "Acme" || len(item.Recipients.CC) != 1 || len(item.Recipients.BCC) != 1 {
		t.Errorf("config not snapshotted: %+v", item)
	}

	// later config edits do not touch queued items
	if _, err := env.resolver.Upsert(ctx, "ACME", model.ConfigPatch{BrandName: strPtr("Renamed")}, "bob"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	stored, err := env.queue.Get(ctx, item.QueueID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Branding.BrandName != "Acme" {
		t.Errorf("queued branding changed to %q", stored.Branding.BrandName)
	}
}

func TestEnqueueValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		company string
		to      []string
		payload json.RawMessage
	}{
		{"missing company", "", []string{"a@b.test"}, nil},
		{"bad recipient", "ACME", []string{"nope"}, nil},
		{"no recipients at all", "ACME", nil, nil},
		{"bad payload", "ACME", []string{"a@b.test"}, json.RawMessage(`{`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.queue.Enqueue(ctx, tc.company, "ORDER_CREATED", tc.to, tc.payload)
			if !appErrors.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestEnqueuePublishesWakeUp(t *testing.T) {
	env := newTestEnv(t)
	bus := queue.NewInMemoryQueue(zap.NewNop())
	wake, err := queue.WakeChannel(bus, queue.DispatchTopic, zap.NewNop())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	env.queue.Publisher = bus

	enqueue(t, env, "ACME")
	select {
	case <-wake:
	case <-time.After(2 * time.Second):
		t.Fatal("no wake-up published")
	}
}

func TestClaimNextSkipsFutureItems(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.resolver.Upsert(ctx, "NIGHT", model.ConfigPatch{
		QuietHoursEnabled:  boolPtr(true),
		QuietHoursStart:    strPtr("08:00"),
		QuietHoursEnd:      strPtr("10:00"),
		QuietHoursTimezone: strPtr("UTC"),
	}, "alice"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	deferred := enqueue(t, env, "NIGHT")
	if !deferred.ScheduledFor.Equal(time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected deferral to 10:00 UTC, got %v", deferred.ScheduledFor)
	}

	got, err := env.queue.ClaimNext(ctx, "w1", env.clock.Now())
	if err != nil || got != nil {
		t.Fatalf("expected nothing due, got %+v %v", got, err)
	}

	env.clock.Advance(time.Hour)
	got, err = env.queue.ClaimNext(ctx, "w1", env.clock.Now())
	if err != nil || got == nil || got.QueueID != deferred.QueueID {
		t.Fatalf("expected deferred item claimed, got %+v %v", got, err)
	}
	if got.Status != model.StatusProcessing || got.Attempts != 1 {
		t.Errorf("unexpected claimed state: %+v", got)
	}
}

func TestConcurrentClaimHasSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	enqueue(t, env, "ACME")

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			item, err := env.queue.ClaimNext(context.Background(), fmt.Sprintf("w%d", i), env.clock.Now())
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if item != nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}
}

func TestReportSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := enqueue(t, env, "ACME")

	if _, err := env.queue.ClaimNext(ctx, "w1", env.clock.Now()); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := env.queue.ReportSuccess(ctx, item.QueueID); err != nil {
		t.Fatalf("report success: %v", err)
	}
	got, _ := env.queue.Get(ctx, item.QueueID)
	if got.Status != model.StatusSent || got.LastError != nil {
		t.Errorf("expected SENT without error, got %+v", got)
	}

	// reporting again is a no-op
	if err := env.queue.ReportSuccess(ctx, item.QueueID); err != nil {
		t.Fatalf("second report: %v", err)
	}
	if err := env.queue.ReportSuccess(ctx, "missing"); !appErrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReportFailureRetriesThenFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := enqueue(t, env, "ACME")

	var lastDelay time.Duration
	for attempt := 1; attempt <= 3; attempt++ {
		claimed, err := env.queue.ClaimNext(ctx, "w1", env.clock.Now())
		if err != nil || claimed == nil {
			t.Fatalf("attempt %d: claim = %+v, %v", attempt, claimed, err)
		}
		if claimed.Attempts != attempt {
			t.Fatalf("attempt %d: attempts = %d", attempt, claimed.Attempts)
		}

		status, err := env.queue.ReportFailure(ctx, item.QueueID, "smtp timeout", RetryPolicy{})
		if err != nil {
			t.Fatalf("attempt %d: report failure: %v", attempt, err)
		}
		got, _ := env.queue.Get(ctx, item.QueueID)
		if got.LastError == nil || *got.LastError != "smtp timeout" {
			t.Errorf("attempt %d: lastError = %v", attempt, got.LastError)
		}

		if attempt < 3 {
			if status != model.StatusPending || got.Status != model.StatusPending {
				t.Fatalf("attempt %d: expected PENDING, got %s", attempt, got.Status)
			}
			delay := got.ScheduledFor.Sub(env.clock.Now())
			if delay <= lastDelay {
				t.Errorf("attempt %d: delay %v not greater than %v", attempt, delay, lastDelay)
			}
			lastDelay = delay

			// not claimable before the retry time
			if early, _ := env.queue.ClaimNext(ctx, "w1", env.clock.Now()); early != nil {
				t.Fatalf("attempt %d: claimed before backoff elapsed", attempt)
			}
			env.clock.Advance(delay)
			continue
		}

		if status != model.StatusFailed || got.Status != model.StatusFailed || got.Attempts != 3 {
			t.Fatalf("expected FAILED after 3 attempts, got %s attempts=%d", got.Status, got.Attempts)
		}
	}
}

func TestReportFailureIgnoresTerminalItems(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	item := enqueue(t, env, "ACME")

	if _, err := env.queue.ClaimNext(ctx, "w1", env.clock.Now()); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := env.queue.Cancel(ctx, CancelFilter{QueueID: item.QueueID}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	status, err := env.queue.ReportFailure(ctx, item.QueueID, "late failure", RetryPolicy{})
	if err != nil {
		t.Fatalf("report failure: %v", err)
	}
	if status != model.StatusCancelled {
		t.Fatalf("expected CANCELLED to stick, got %s", status)
	}
	got, _ := env.queue.Get(ctx, item.QueueID)
	if got.LastError == nil || *got.LastError != model.ManualCancelReason {
		t.Errorf("cancel reason overwritten: %v", got.LastError)
	}
}

func TestListPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		enqueue(t, env, "ACME")
		env.clock.Advance(time.Second)
	}
	enqueue(t, env, "OTHER")

	items, page, err := env.queue.List(ctx, model.QueueFilter{CompanyID: "ACME"}, 2, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || page.TotalCount != 5 || page.TotalPages != 3 || !page.HasNext || !page.HasPrev {
		t.Errorf("unexpected page: %d items, %+v", len(items), page)
	}
	if !items[0].ScheduledFor.Before(items[1].ScheduledFor) {
		t.Errorf("expected ascending scheduledFor")
	}

	_, page, err = env.queue.List(ctx, model.QueueFilter{}, 0, 500)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Page != 1 || page.PageSize != MaxPageSize || page.TotalCount != 6 || page.HasNext || page.HasPrev {
		t.Errorf("clamping failed: %+v", page)
	}

	_, page, _ = env.queue.List(ctx, model.QueueFilter{}, 1, 0)
	if page.PageSize != DefaultPageSize {
		t.Errorf("expected default page size, got %d", page.PageSize)
	}
}

func TestListHugePageIsEmpty(t *testing.T) {
	env := newTestEnv(t)
	enqueue(t, env, "ACME")

	items, page, err := env.queue.List(context.Background(), model.QueueFilter{}, math.MaxInt64/10, 20)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no items past the last page, got %d", len(items))
	}
	if page.Page != MaxPage || page.HasNext || !page.HasPrev || page.TotalCount != 1 {
		t.Errorf("unexpected pagination: %+v", page)
	}
}

func TestCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.queue.Cancel(ctx, CancelFilter{}); !appErrors.IsValidation(err) {
		t.Fatalf("expected validation error for empty filter, got %v", err)
	}

	sent := enqueue(t, env, "ACME")
	if _, err := env.queue.ClaimNext(ctx, "w1", env.clock.Now()); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := env.queue.ReportSuccess(ctx, sent.QueueID); err != nil {
		t.Fatalf("success: %v", err)
	}
	enqueue(t, env, "ACME")
	enqueue(t, env, "ACME")
	enqueue(t, env, "OTHER")

	n, err := env.queue.Cancel(ctx, CancelFilter{QueueID: sent.QueueID})
	if err != nil || n != 0 {
		t.Fatalf("cancel SENT item = %d, %v", n, err)
	}

	n, err = env.queue.Cancel(ctx, CancelFilter{CompanyID: "ACME"})
	if err != nil || n != 2 {
		t.Fatalf("cancel ACME = %d, %v", n, err)
	}
	n, err = env.queue.Cancel(ctx, CancelFilter{CompanyID: "ACME"})
	if err != nil || n != 0 {
		t.Fatalf("repeat cancel = %d, %v", n, err)
	}

	n, err = env.queue.Cancel(ctx, CancelFilter{Status: model.StatusPending})
	if err != nil || n != 1 {
		t.Fatalf("cancel by status = %d, %v", n, err)
	}

	got, _ := env.queue.Get(ctx, sent.QueueID)
	if got.Status != model.StatusSent {
		t.Errorf("SENT item changed to %s", got.Status)
	}
}

func TestGetUnknownItem(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.queue.Get(context.Background(), "missing"); !appErrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
