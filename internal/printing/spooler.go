package printing

import (
	"context"
	"time"

	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/eapache/go-resiliency/retrier"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	batchSize      = 32
	backoffSteps   = 16
	attemptTimeout = 10 * time.Second
)

// PrintMarker records on the order that its ticket was delivered.
type PrintMarker interface {
	MarkPrinted(ctx context.Context, orderID string, at time.Time) error
}

type OrderLister interface {
	GetAll(ctx context.Context) ([]*models.Order, error)
}

// Spooler retries print jobs until the printer accepts them. Duplicates are
// possible, drops are not: delivered jobs are marked on the order and
// unmarked orders are queued again by Resume after a restart.
type Spooler struct {
	printer  Printer
	marker   PrintMarker
	settings models.PrinterSettings
	queue    *Queue
	backoff  []time.Duration
	now      func() time.Time
	log      logrus.FieldLogger
	wake     chan struct{}
}

// NewSpooler returns a spooler for printer. marker may be nil, in which case
// nothing survives a restart.
func NewSpooler(printer Printer, marker PrintMarker, settings models.PrinterSettings, log logrus.FieldLogger) *Spooler {
	defaults := models.DefaultPrinterSettings()
	if settings.InitialBackoff <= 0 {
		settings.InitialBackoff = defaults.InitialBackoff
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = defaults.PollInterval
	}
	return &Spooler{
		printer:  printer,
		marker:   marker,
		settings: settings,
		queue:    NewQueue(),
		backoff:  retrier.ExponentialBackoff(backoffSteps, settings.InitialBackoff),
		now:      time.Now,
		log:      log,
		wake:     make(chan struct{}, 1),
	}
}

// Enqueue schedules a print of order for immediate delivery.
func (s *Spooler) Enqueue(order models.Order) Job {
	job := NewJob(order, s.settings, s.now())
	s.queue.Enqueue(&attempt{Due: job.CreatedAt, Job: job})
	s.log.WithFields(logrus.Fields{"order_id": order.ID, "job_id": job.ID}).Info("print job queued")
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return job
}

// Resume queues every PREPARING order whose ticket was never marked as
// printed. It is meant to run once at startup, before Run.
func (s *Spooler) Resume(ctx context.Context, orders OrderLister) (int, error) {
	if !s.settings.Enabled {
		return 0, nil
	}
	all, err := orders.GetAll(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "list orders to resume printing")
	}
	resumed := 0
	for _, o := range all {
		if o.Status != models.OrderStatusPreparing || o.PrintedAt != nil {
			continue
		}
		s.Enqueue(*o)
		resumed++
	}
	if resumed > 0 {
		s.log.WithField("jobs", resumed).Info("resumed unprinted orders")
	}
	return resumed, nil
}

func (s *Spooler) Pending() int {
	return s.queue.Len()
}

// Run delivers due jobs until ctx is done.
func (s *Spooler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.settings.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if n := s.queue.Len(); n > 0 {
				s.log.WithField("pending", n).Warn("print spooler stopped with undelivered jobs, they resume on next start")
			}
			return nil
		case <-ticker.C:
		case <-s.wake:
		}
		s.Flush(ctx)
	}
}

// Flush attempts every job that is due now. Jobs rescheduled during the
// flush are left for a later one.
func (s *Spooler) Flush(ctx context.Context) {
	now := s.now()
	for {
		batch := s.queue.DequeueDue(now, batchSize)
		if len(batch) == 0 {
			return
		}
		for _, a := range batch {
			s.deliver(ctx, a)
		}
	}
}

func (s *Spooler) deliver(ctx context.Context, a *attempt) {
	attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
	err := s.printer.PrintOrder(attemptCtx, a.Job)
	cancel()

	logger := s.log.WithFields(logrus.Fields{
		"order_id": a.Job.OrderID,
		"job_id":   a.Job.ID,
		"attempt":  a.Attempts + 1,
	})
	if err == nil {
		logger.Info("print job delivered")
		if s.marker != nil {
			if err := s.marker.MarkPrinted(ctx, a.Job.OrderID, s.now()); err != nil {
				logger.WithError(err).Warn("failed to mark order as printed, it may print again after a restart")
			}
		}
		return
	}

	a.Attempts++
	a.LastErr = err.Error()
	delay := s.delay(a.Attempts)
	a.Due = s.now().Add(delay)
	s.queue.Enqueue(a)
	logger.WithError(err).WithField("retry_in", delay).Warn("print job failed, will retry")
}

func (s *Spooler) delay(attempts int) time.Duration {
	i := attempts - 1
	if i >= len(s.backoff) {
		i = len(s.backoff) - 1
	}
	d := s.backoff[i]
	if s.settings.MaxBackoff > 0 && d > s.settings.MaxBackoff {
		d = s.settings.MaxBackoff
	}
	return d
}
