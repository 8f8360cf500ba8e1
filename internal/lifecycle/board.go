package lifecycle

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chrisdamba/menuflow/internal/events"
	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/chrisdamba/menuflow/internal/printing"
	"github.com/chrisdamba/menuflow/internal/repositories"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// terminalRetention is how long completed and cancelled orders stay on
	// the board after their last change.
	terminalRetention = 6 * time.Hour
	pruneInterval     = time.Minute
)

// PrintQueue accepts orders for kitchen printing.
type PrintQueue interface {
	Enqueue(order models.Order) printing.Job
}

type command struct {
	from models.OrderStatus
	to   models.OrderStatus
}

type view struct {
	confirmed models.Order
	pending   *command
}

func (v *view) current() models.Order {
	o := v.confirmed
	if v.pending != nil {
		o.Status = v.pending.to
	}
	return o
}

// Board is the staff view of live orders. Transitions are applied to the
// local view first and then written to the store with a compare-and-set on
// the prior status. Confirmed states pushed by the store always win.
type Board struct {
	orders    repositories.OrderRepository
	prints    PrintQueue
	publisher events.Publisher
	printing  models.PrinterSettings
	log       logrus.FieldLogger
	now       func() time.Time

	mu        sync.Mutex
	views     map[string]*view
	retention time.Duration
	lastPrune time.Time
}

func NewBoard(orders repositories.OrderRepository, prints PrintQueue, publisher events.Publisher, printerSettings models.PrinterSettings, log logrus.FieldLogger) *Board {
	return &Board{
		orders:    orders,
		prints:    prints,
		publisher: publisher,
		printing:  printerSettings,
		log:       log,
		now:       time.Now,
		views:     make(map[string]*view),
		retention: terminalRetention,
	}
}

// Advance moves the order one step forward if the board still shows it in
// the expected status. It reports whether the transition was applied. A
// stale expectation or a lost compare-and-set is not an error.
func (b *Board) Advance(ctx context.Context, id string, expected models.OrderStatus) (bool, error) {
	return b.transition(ctx, id, expected, func(o models.Order) (models.OrderStatus, bool) {
		return NextStatus(o.Status, o.Type)
	})
}

// Cancel moves a non-terminal order to CANCELLED under the same rules as
// Advance.
func (b *Board) Cancel(ctx context.Context, id string, expected models.OrderStatus) (bool, error) {
	return b.transition(ctx, id, expected, func(o models.Order) (models.OrderStatus, bool) {
		if o.Status.IsTerminal() {
			return "", false
		}
		return models.OrderStatusCancelled, true
	})
}

func (b *Board) transition(ctx context.Context, id string, expected models.OrderStatus, next func(models.Order) (models.OrderStatus, bool)) (bool, error) {
	if err := b.ensure(ctx, id); err != nil {
		return false, err
	}

	logger := b.log.WithFields(logrus.Fields{"order_id": id, "expected": expected})

	b.mu.Lock()
	v, ok := b.views[id]
	if !ok {
		b.mu.Unlock()
		logger.Debug("order left the board, nothing to do")
		return false, nil
	}
	current := v.current()
	if current.Status != expected {
		b.mu.Unlock()
		logger.WithField("actual", current.Status).Info("status transition conflict, ignoring")
		return false, nil
	}
	to, ok := next(current)
	if !ok {
		b.mu.Unlock()
		logger.Debug("order is terminal, nothing to do")
		return false, nil
	}
	cmd := &command{from: current.Status, to: to}
	v.pending = cmd
	b.mu.Unlock()

	updated, err := b.orders.UpdateStatus(ctx, id, cmd.from, cmd.to, b.now())
	if err != nil {
		b.mu.Lock()
		if v.pending == cmd {
			v.pending = nil
		}
		b.mu.Unlock()
		if errors.Is(err, repositories.ErrConflict) {
			logger.Info("order changed concurrently, transition dropped")
			return false, nil
		}
		return false, errors.Wrapf(err, "advance order %s", id)
	}

	b.Reconcile(*updated)
	logger.WithFields(logrus.Fields{"from": cmd.from, "to": cmd.to}).Info("order status changed")
	b.afterTransition(ctx, *updated, cmd.from)
	return true, nil
}

func (b *Board) afterTransition(ctx context.Context, order models.Order, from models.OrderStatus) {
	if order.Status == models.OrderStatusPreparing && b.printing.Enabled && b.prints != nil {
		b.prints.Enqueue(order)
	}
	if b.publisher != nil {
		if err := b.publisher.Publish(ctx, events.NewOrderStatus(order, from, b.now())); err != nil {
			b.log.WithError(err).WithField("order_id", order.ID).Warn("failed to publish status event")
		}
	}
}

// ensure loads an order the board has not seen yet.
func (b *Board) ensure(ctx context.Context, id string) error {
	b.mu.Lock()
	_, ok := b.views[id]
	b.mu.Unlock()
	if ok {
		return nil
	}
	order, err := b.orders.GetByID(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "load order %s", id)
	}
	b.mu.Lock()
	b.merge(*order)
	b.mu.Unlock()
	return nil
}

// Reconcile merges a confirmed order state. The most recently confirmed
// state wins. A pending local transition is kept only while the confirmed
// status is still the status it started from. Terminal orders older than the
// retention window are dropped from the board.
func (b *Board) Reconcile(confirmed models.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if _, ok := b.views[confirmed.ID]; ok || !b.expired(confirmed, now) {
		b.merge(confirmed)
	}
	b.prune(now)
}

func (b *Board) merge(confirmed models.Order) {
	v, ok := b.views[confirmed.ID]
	if !ok {
		b.views[confirmed.ID] = &view{confirmed: confirmed}
		return
	}
	if confirmed.UpdatedAt.Before(v.confirmed.UpdatedAt) {
		return
	}
	v.confirmed = confirmed
	if v.pending != nil && confirmed.Status != v.pending.from {
		v.pending = nil
	}
}

func (b *Board) expired(o models.Order, now time.Time) bool {
	return o.Status.IsTerminal() && now.Sub(o.UpdatedAt) > b.retention
}

// prune drops expired terminal views, at most once per pruneInterval.
func (b *Board) prune(now time.Time) {
	if now.Sub(b.lastPrune) < pruneInterval {
		return
	}
	b.lastPrune = now
	for id, v := range b.views {
		if v.pending == nil && b.expired(v.confirmed, now) {
			delete(b.views, id)
		}
	}
}

// Order returns the board view of one order, including a pending transition.
func (b *Board) Order(id string) (models.Order, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.views[id]
	if !ok {
		return models.Order{}, false
	}
	return v.current(), true
}

// Orders returns the board view, oldest first. Terminal orders are included
// only when includeTerminal is set.
func (b *Board) Orders(includeTerminal bool) []models.Order {
	b.mu.Lock()
	out := make([]models.Order, 0, len(b.views))
	for _, v := range b.views {
		o := v.current()
		if o.Status.IsTerminal() && !includeTerminal {
			continue
		}
		out = append(out, o)
	}
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Watch reconciles every order pushed by the store until ctx is done.
func (b *Board) Watch(ctx context.Context) error {
	stream, err := b.orders.Subscribe(ctx)
	if err != nil {
		return errors.Wrap(err, "subscribe to orders")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case order, ok := <-stream:
			if !ok {
				return nil
			}
			b.Reconcile(order)
		}
	}
}
