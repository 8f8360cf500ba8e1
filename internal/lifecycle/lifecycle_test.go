package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chrisdamba/menuflow/internal/events"
	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/chrisdamba/menuflow/internal/printing"
	"github.com/chrisdamba/menuflow/internal/repositories/docstore"
	"github.com/chrisdamba/menuflow/internal/store"
	"github.com/pkg/errors"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrints struct {
	mu     sync.Mutex
	orders []models.Order
}

func (f *fakePrints) Enqueue(order models.Order) printing.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, order)
	return printing.Job{OrderID: order.ID}
}

func (f *fakePrints) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakePublisher) Publish(_ context.Context, e events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

type fixture struct {
	orders    *docstore.OrderRepository
	board     *Board
	prints    *fakePrints
	publisher *fakePublisher
}

func newFixture(t *testing.T, orders ...models.Order) *fixture {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	repo := docstore.NewOrderRepository(store.NewMemory(log), "t1", log)
	for i := range orders {
		require.NoError(t, repo.Create(context.Background(), &orders[i]))
	}
	prints := &fakePrints{}
	pub := &fakePublisher{}
	return &fixture{
		orders:    repo,
		board:     NewBoard(repo, prints, pub, models.DefaultPrinterSettings(), log),
		prints:    prints,
		publisher: pub,
	}
}

func TestNextStatus(t *testing.T) {
	tests := []struct {
		from models.OrderStatus
		typ  models.OrderType
		want models.OrderStatus
		ok   bool
	}{
		{models.OrderStatusPending, models.OrderTypeTakeout, models.OrderStatusPreparing, true},
		{models.OrderStatusPreparing, models.OrderTypeTakeout, models.OrderStatusReady, true},
		{models.OrderStatusReady, models.OrderTypeDelivery, models.OrderStatusDelivering, true},
		{models.OrderStatusReady, models.OrderTypeDineIn, models.OrderStatusCompleted, true},
		{models.OrderStatusReady, models.OrderTypeTakeout, models.OrderStatusCompleted, true},
		{models.OrderStatusDelivering, models.OrderTypeDelivery, models.OrderStatusCompleted, true},
		{models.OrderStatusCompleted, models.OrderTypeDelivery, "", false},
		{models.OrderStatusCancelled, models.OrderTypeDelivery, "", false},
	}
	for _, tt := range tests {
		got, ok := NextStatus(tt.from, tt.typ)
		assert.Equal(t, tt.ok, ok, "%s/%s", tt.from, tt.typ)
		assert.Equal(t, tt.want, got, "%s/%s", tt.from, tt.typ)
	}

	assert.True(t, CanTransition(models.OrderStatusReady, models.OrderStatusCancelled, models.OrderTypeTakeout))
	assert.False(t, CanTransition(models.OrderStatusCompleted, models.OrderStatusCancelled, models.OrderTypeTakeout))
	assert.False(t, CanTransition(models.OrderStatusPending, models.OrderStatusReady, models.OrderTypeTakeout))
}

func TestScenarioDeliveryOrderLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, models.Order{ID: "o1", Status: models.OrderStatusPending, Type: models.OrderTypeDelivery})

	steps := []struct {
		expected models.OrderStatus
		next     models.OrderStatus
	}{
		{models.OrderStatusPending, models.OrderStatusPreparing},
		{models.OrderStatusPreparing, models.OrderStatusReady},
		{models.OrderStatusReady, models.OrderStatusDelivering},
		{models.OrderStatusDelivering, models.OrderStatusCompleted},
	}
	for _, step := range steps {
		applied, err := f.board.Advance(ctx, "o1", step.expected)
		require.NoError(t, err)
		require.True(t, applied, "advance from %s", step.expected)

		o, ok := f.board.Order("o1")
		require.True(t, ok)
		assert.Equal(t, step.next, o.Status)

		if step.next == models.OrderStatusPreparing {
			assert.Equal(t, 1, f.prints.count(), "entering PREPARING queues a print")
		}
	}

	applied, err := f.board.Advance(ctx, "o1", models.OrderStatusCompleted)
	require.NoError(t, err)
	assert.False(t, applied, "completed is terminal")

	stored, err := f.orders.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, stored.Status)
	assert.Equal(t, 1, f.prints.count(), "print fires exactly once")
	assert.Len(t, f.publisher.events, 4, "one status event per applied transition")
}

func TestAdvanceWithStaleExpectationIsNoop(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, models.Order{ID: "o1", Status: models.OrderStatusPending, Type: models.OrderTypeTakeout})

	applied, err := f.board.Advance(ctx, "o1", models.OrderStatusPending)
	require.NoError(t, err)
	require.True(t, applied)

	// A second click carrying the old status does nothing.
	applied, err = f.board.Advance(ctx, "o1", models.OrderStatusPending)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 1, f.prints.count())

	o, _ := f.board.Order("o1")
	assert.Equal(t, models.OrderStatusPreparing, o.Status)
}

func TestAdvanceLosingCompareAndSetIsDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, models.Order{ID: "o1", Status: models.OrderStatusPending, Type: models.OrderTypeTakeout})
	_, ok := f.board.Order("o1")
	require.False(t, ok)
	require.NoError(t, f.board.ensure(ctx, "o1"))

	// Another terminal advances the order behind this board's back.
	_, err := f.orders.UpdateStatus(ctx, "o1", models.OrderStatusPending, models.OrderStatusPreparing, time.Now())
	require.NoError(t, err)

	applied, err := f.board.Advance(ctx, "o1", models.OrderStatusPending)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 0, f.prints.count())
	assert.Empty(t, f.publisher.events)

	o, _ := f.board.Order("o1")
	assert.Equal(t, models.OrderStatusPending, o.Status, "pending command rolled back until the push arrives")
}

func TestConcurrentAdvanceAppliesOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, models.Order{ID: "o1", Status: models.OrderStatusPending, Type: models.OrderTypeTakeout})

	var wg sync.WaitGroup
	var mu sync.Mutex
	appliedCount := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			applied, err := f.board.Advance(ctx, "o1", models.OrderStatusPending)
			assert.NoError(t, err)
			if applied {
				mu.Lock()
				appliedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, appliedCount)
	assert.Equal(t, 1, f.prints.count())
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, models.Order{ID: "o1", Status: models.OrderStatusReady, Type: models.OrderTypeDelivery})

	applied, err := f.board.Cancel(ctx, "o1", models.OrderStatusReady)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = f.board.Advance(ctx, "o1", models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = f.board.Cancel(ctx, "o1", models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 0, f.prints.count())
}

func TestAdvanceUnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.board.Advance(context.Background(), "nope", models.OrderStatusPending)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestReconcileLastConfirmedWins(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	f.board.now = func() time.Time { return base.Add(time.Minute) }
	order := models.Order{ID: "o1", Status: models.OrderStatusPending, Type: models.OrderTypeTakeout, UpdatedAt: base}
	f.board.Reconcile(order)

	// Simulate an in-flight local advance.
	f.board.mu.Lock()
	f.board.views["o1"].pending = &command{from: models.OrderStatusPending, to: models.OrderStatusPreparing}
	f.board.mu.Unlock()

	same := order
	same.UpdatedAt = base.Add(time.Second)
	f.board.Reconcile(same)
	o, _ := f.board.Order("o1")
	assert.Equal(t, models.OrderStatusPreparing, o.Status, "pending survives while confirmed status is its prior state")

	cancelled := order
	cancelled.Status = models.OrderStatusCancelled
	cancelled.UpdatedAt = base.Add(2 * time.Second)
	f.board.Reconcile(cancelled)
	o, _ = f.board.Order("o1")
	assert.Equal(t, models.OrderStatusCancelled, o.Status, "confirmed state replaces the pending one")

	stale := order
	stale.UpdatedAt = base
	f.board.Reconcile(stale)
	o, _ = f.board.Order("o1")
	assert.Equal(t, models.OrderStatusCancelled, o.Status, "older confirmations are ignored")

	assert.Empty(t, f.board.Orders(false))
	assert.Len(t, f.board.Orders(true), 1)
}

func TestBoardDropsExpiredTerminalOrders(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	f.board.now = func() time.Time { return now }

	f.board.Reconcile(models.Order{ID: "done", Status: models.OrderStatusCompleted, UpdatedAt: base})
	f.board.Reconcile(models.Order{ID: "open", Status: models.OrderStatusPending, UpdatedAt: base})
	f.board.Reconcile(models.Order{ID: "ancient", Status: models.OrderStatusCancelled, UpdatedAt: base.Add(-48 * time.Hour)})
	_, ok := f.board.Order("ancient")
	assert.False(t, ok, "expired terminal orders are never added")
	assert.Len(t, f.board.Orders(true), 2)

	now = base.Add(terminalRetention + time.Hour)
	f.board.Reconcile(models.Order{ID: "fresh", Status: models.OrderStatusPending, UpdatedAt: now})

	_, ok = f.board.Order("done")
	assert.False(t, ok, "completed order pruned after retention")
	_, ok = f.board.Order("open")
	assert.True(t, ok, "open orders are never pruned")
	assert.Len(t, f.board.Orders(true), 2)
}

func TestAdvanceLoadsOldTerminalOrderAsNoop(t *testing.T) {
	old := time.Now().Add(-30 * 24 * time.Hour)
	f := newFixture(t, models.Order{ID: "o1", Status: models.OrderStatusCompleted, Type: models.OrderTypeTakeout, UpdatedAt: old})

	applied, err := f.board.Advance(context.Background(), "o1", models.OrderStatusCompleted)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestWatchReconcilesStorePushes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t, models.Order{ID: "o1", Status: models.OrderStatusPending, Type: models.OrderTypeTakeout})

	go func() { _ = f.board.Watch(ctx) }()
	require.Eventually(t, func() bool {
		_, ok := f.board.Order("o1")
		return ok
	}, time.Second, 10*time.Millisecond)

	_, err := f.orders.UpdateStatus(ctx, "o1", models.OrderStatusPending, models.OrderStatusPreparing, time.Now())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		o, _ := f.board.Order("o1")
		return o.Status == models.OrderStatusPreparing
	}, time.Second, 10*time.Millisecond)
}

func TestTrackerIsPassive(t *testing.T) {
	f := newFixture(t, models.Order{ID: "o1", Status: models.OrderStatusPending, Type: models.OrderTypeTakeout})
	log, _ := logtest.NewNullLogger()
	tracker := NewTracker(f.orders, f.publisher, log)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := tracker.Track(ctx, "o1")
	require.NoError(t, err)
	first := <-stream
	assert.Equal(t, models.OrderStatusPending, first.Status)

	_, err = f.board.Advance(context.Background(), "o1", models.OrderStatusPending)
	require.NoError(t, err)
	second := <-stream
	assert.Equal(t, models.OrderStatusPreparing, second.Status)

	cancel()
	stored, err := f.orders.GetByID(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPreparing, stored.Status)
}

func TestAttachFeedback(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t,
		models.Order{ID: "done", Status: models.OrderStatusCompleted, Type: models.OrderTypeTakeout},
		models.Order{ID: "open", Status: models.OrderStatusReady, Type: models.OrderTypeTakeout},
	)
	log, _ := logtest.NewNullLogger()
	tracker := NewTracker(f.orders, f.publisher, log)

	_, err := tracker.AttachFeedback(ctx, "done", 0, "")
	assert.Equal(t, ErrInvalidRating, err)
	_, err = tracker.AttachFeedback(ctx, "done", 6, "")
	assert.Equal(t, ErrInvalidRating, err)

	order, err := tracker.AttachFeedback(ctx, "done", 4, "tasty")
	require.NoError(t, err)
	require.NotNil(t, order.Feedback)
	assert.Equal(t, "tasty", order.Feedback.Comment)

	_, err = tracker.AttachFeedback(ctx, "done", 1, "changed my mind")
	assert.Equal(t, ErrFeedbackExists, err)

	_, err = tracker.AttachFeedback(ctx, "open", 5, "")
	assert.Equal(t, ErrNotCompleted, err)

	stored, err := f.orders.GetByID(ctx, "done")
	require.NoError(t, err)
	assert.Equal(t, 4, stored.Feedback.Rating)
}
