package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/unclebandit/notification-engine/internal/db"
	"github.com/unclebandit/notification-engine/internal/model"
)

var base = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func newItem(id, company, event string, scheduled, created time.Time) *model.QueueItem {
	return &model.QueueItem{
		QueueID:      id,
		CompanyID:    company,
		EventCode:    event,
		Payload:      json.RawMessage(`{"orderId":"PO-1"}`),
		Recipients:   model.Recipients{To: []string{"buyer@acme.test"}},
		Branding:     model.Branding{BrandName: "Acme"},
		Status:       model.StatusPending,
		ScheduledFor: scheduled,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func mustCreate(t *testing.T, repo *QueueRepository, items ...*model.QueueItem) {
	t.Helper()
	for _, it := range items {
		if err := repo.Create(context.Background(), it); err != nil {
			t.Fatalf("create %s: %v", it.QueueID, err)
		}
	}
}

func TestQueueRepositoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewQueueRepository(newTestDB(t), db.SQLite)
	mustCreate(t, repo, newItem("q1", "T1", "ORDER_CREATED", base, base))

	got, err := repo.GetByID(ctx, "q1")
	if err != nil || got == nil {
		t.Fatalf("get: item=%v err=%v", got, err)
	}
	if got.Status != model.StatusPending || got.LastError != nil {
		t.Errorf("unexpected state: %+v", got)
	}
	if string(got.Payload) != `{"orderId":"PO-1"}` || got.Recipients.To[0] != "buyer@acme.test" {
		t.Errorf("payload/recipients mismatch: %s %+v", got.Payload, got.Recipients)
	}
	if !got.ScheduledFor.Equal(base) {
		t.Errorf("scheduledFor mismatch: %s", got.ScheduledFor)
	}

	missing, err := repo.GetByID(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("expected (nil, nil) for missing id, got (%v, %v)", missing, err)
	}
}

func TestQueueRepositoryClaimOrderAndDueness(t *testing.T) {
	ctx := context.Background()
	repo := NewQueueRepository(newTestDB(t), db.SQLite)
	mustCreate(t, repo,
		newItem("later", "T1", "ORDER_CREATED", base.Add(time.Hour), base),
		newItem("second", "T1", "ORDER_CREATED", base, base.Add(2*time.Second)),
		newItem("first", "T1", "ORDER_CREATED", base, base.Add(time.Second)),
	)

	for _, want := range []string{"first", "second"} {
		got, err := repo.ClaimNext(ctx, base)
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if got == nil || got.QueueID != want {
			t.Fatalf("expected %s, got %+v", want, got)
		}
		if got.Status != model.StatusProcessing || got.Attempts != 1 {
			t.Errorf("claimed item not transitioned: %+v", got)
		}
	}

	got, err := repo.ClaimNext(ctx, base)
	if err != nil || got != nil {
		t.Fatalf("future item must not be claimable yet: %+v %v", got, err)
	}
	got, err = repo.ClaimNext(ctx, base.Add(time.Hour))
	if err != nil || got == nil || got.QueueID != "later" {
		t.Fatalf("expected later once due: %+v %v", got, err)
	}
}

func TestQueueRepositoryConcurrentClaimSingleWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewQueueRepository(newTestDB(t), db.SQLite)
	mustCreate(t, repo, newItem("only", "T1", "ORDER_CREATED", base, base))

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed []string
		errs    []error
	)
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			item, err := repo.ClaimNext(ctx, base)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if item != nil {
				claimed = append(claimed, item.QueueID)
			}
		}()
	}
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(claimed) != 1 {
		t.Fatalf("expected exactly 1 claim, got %d (%v)", len(claimed), claimed)
	}
	got, _ := repo.GetByID(ctx, "only")
	if got.Attempts != 1 {
		t.Errorf("expected attempts=1, got %d", got.Attempts)
	}
}

func TestQueueRepositoryConditionalTransitions(t *testing.T) {
	ctx := context.Background()
	repo := NewQueueRepository(newTestDB(t), db.SQLite)
	mustCreate(t, repo, newItem("q1", "T1", "ORDER_CREATED", base, base))

	if ok, _ := repo.MarkSent(ctx, "q1", base); ok {
		t.Fatal("PENDING item must not be marked sent")
	}

	claimed, _ := repo.ClaimNext(ctx, base)
	if claimed == nil {
		t.Fatal("expected claim")
	}

	if ok, _ := repo.Reschedule(ctx, "q1", 5, "boom", base.Add(time.Minute), base); ok {
		t.Fatal("reschedule with stale attempts must not apply")
	}
	ok, err := repo.Reschedule(ctx, "q1", 1, "boom", base.Add(time.Minute), base)
	if err != nil || !ok {
		t.Fatalf("reschedule: ok=%v err=%v", ok, err)
	}
	got, _ := repo.GetByID(ctx, "q1")
	if got.Status != model.StatusPending || got.LastError == nil || *got.LastError != "boom" {
		t.Errorf("unexpected after reschedule: %+v", got)
	}

	claimed, _ = repo.ClaimNext(ctx, base.Add(time.Minute))
	if claimed == nil || claimed.Attempts != 2 {
		t.Fatalf("expected second claim with attempts=2, got %+v", claimed)
	}
	if ok, _ := repo.MarkFailed(ctx, "q1", 2, "boom again", base); !ok {
		t.Fatal("expected failed transition")
	}
	if ok, _ := repo.MarkSent(ctx, "q1", base); ok {
		t.Fatal("FAILED item must not be marked sent")
	}
	got, _ = repo.GetByID(ctx, "q1")
	if got.Status != model.StatusFailed || got.Attempts != 2 {
		t.Errorf("unexpected final state: %+v", got)
	}
}

func TestQueueRepositoryListFiltersAndOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewQueueRepository(newTestDB(t), db.SQLite)
	mustCreate(t, repo,
		newItem("a", "T1", "ORDER_CREATED", base, base),
		newItem("b", "T1", "ORDER_CREATED", base, base.Add(time.Second)),
		newItem("c", "T1", "INVOICE_APPROVED", base.Add(-time.Minute), base),
		newItem("d", "T2", "ORDER_CREATED", base, base),
	)

	items, total, err := repo.List(ctx, model.QueueFilter{CompanyID: "T1"}, 0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
	var order []string
	for _, it := range items {
		order = append(order, it.QueueID)
	}
	// scheduledFor asc, then createdAt desc
	if fmt.Sprint(order) != "[c b a]" {
		t.Errorf("unexpected order: %v", order)
	}

	items, total, _ = repo.List(ctx, model.QueueFilter{CompanyID: "T1", EventCode: "ORDER_CREATED"}, 1, 1)
	if total != 2 || len(items) != 1 || items[0].QueueID != "a" {
		t.Errorf("unexpected page: total=%d items=%v", total, items)
	}
}

func TestQueueRepositoryCancelOnlyActive(t *testing.T) {
	ctx := context.Background()
	repo := NewQueueRepository(newTestDB(t), db.SQLite)
	mustCreate(t, repo,
		newItem("p1", "T1", "ORDER_CREATED", base, base),
		newItem("p2", "T1", "ORDER_CREATED", base.Add(time.Hour), base.Add(time.Second)),
		newItem("other", "T2", "ORDER_CREATED", base, base),
	)
	claimed, _ := repo.ClaimNext(ctx, base)
	if claimed == nil || claimed.QueueID != "p1" {
		t.Fatalf("expected p1 claimed, got %+v", claimed)
	}
	if ok, _ := repo.MarkSent(ctx, "p1", base); !ok {
		t.Fatal("expected p1 sent")
	}

	n, err := repo.Cancel(ctx, model.QueueFilter{CompanyID: "T1"}, base)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 cancelled, got %d (%v)", n, err)
	}
	got, _ := repo.GetByID(ctx, "p2")
	if got.Status != model.StatusCancelled || got.LastError == nil || *got.LastError != model.ManualCancelReason {
		t.Errorf("unexpected cancelled item: %+v", got)
	}
	sent, _ := repo.GetByID(ctx, "p1")
	if sent.Status != model.StatusSent {
		t.Errorf("sent item must stay sent, got %s", sent.Status)
	}

	n, _ = repo.Cancel(ctx, model.QueueFilter{CompanyID: "T1"}, base)
	if n != 0 {
		t.Errorf("second cancel should be a no-op, got %d", n)
	}
	n, _ = repo.Cancel(ctx, model.QueueFilter{Status: model.StatusSent}, base)
	if n != 0 {
		t.Errorf("cancelling SENT must match nothing, got %d", n)
	}
	if got, _ := repo.ClaimNext(ctx, base.Add(2*time.Hour)); got != nil && got.QueueID == "p2" {
		t.Errorf("cancelled item was reclaimed")
	}
}
