package lifecycle

import (
	"context"
	"time"

	"github.com/chrisdamba/menuflow/internal/events"
	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/chrisdamba/menuflow/internal/repositories"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidRating  = errors.New("rating must be between 1 and 5")
	ErrNotCompleted   = errors.New("feedback is only accepted for completed orders")
	ErrFeedbackExists = errors.New("order already has feedback")
)

// Tracker is the customer view of one order. Tracking only observes: ending
// a stream has no effect on the order.
type Tracker struct {
	orders    repositories.OrderRepository
	publisher events.Publisher
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewTracker(orders repositories.OrderRepository, publisher events.Publisher, log logrus.FieldLogger) *Tracker {
	return &Tracker{orders: orders, publisher: publisher, log: log, now: time.Now}
}

// Track streams every confirmed state of order id until ctx is done.
func (t *Tracker) Track(ctx context.Context, id string) (<-chan models.Order, error) {
	stream, err := t.orders.SubscribeByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "track order %s", id)
	}
	return stream, nil
}

// AttachFeedback stores the one feedback a completed order accepts.
func (t *Tracker) AttachFeedback(ctx context.Context, id string, rating int, comment string) (*models.Order, error) {
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}
	fb := models.Feedback{Rating: rating, Comment: comment, CreatedAt: t.now()}

	order, err := t.orders.AttachFeedback(ctx, id, fb)
	if errors.Is(err, repositories.ErrConflict) {
		current, getErr := t.orders.GetByID(ctx, id)
		if getErr != nil {
			return nil, errors.Wrapf(getErr, "load order %s", id)
		}
		if current.Status != models.OrderStatusCompleted {
			return nil, ErrNotCompleted
		}
		return nil, ErrFeedbackExists
	}
	if err != nil {
		return nil, errors.Wrapf(err, "attach feedback to %s", id)
	}

	t.log.WithFields(logrus.Fields{"order_id": id, "rating": rating}).Info("feedback received")
	if t.publisher != nil {
		ev := events.OrderFeedbackEvent{
			BaseEvent: events.NewBase(events.TypeOrderFeedback, order.TenantID, "", fb.CreatedAt),
			OrderID:   id,
			Rating:    int32(rating),
			Comment:   comment,
		}
		if err := t.publisher.Publish(ctx, ev); err != nil {
			t.log.WithError(err).Warn("failed to publish feedback event")
		}
	}
	return order, nil
}
