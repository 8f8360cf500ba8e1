package printing

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/chrisdamba/menuflow/internal/repositories/docstore"
	"github.com/chrisdamba/menuflow/internal/store"
	"github.com/pkg/errors"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyPrinter struct {
	mu       sync.Mutex
	failures int
	calls    []Job
}

func (p *flakyPrinter) PrintOrder(_ context.Context, job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, job)
	if p.failures > 0 {
		p.failures--
		return errors.New("printer offline")
	}
	return nil
}

func (p *flakyPrinter) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSpooler(p Printer) (*Spooler, *clock) {
	log, _ := logtest.NewNullLogger()
	settings := models.DefaultPrinterSettings()
	settings.InitialBackoff = time.Second
	settings.MaxBackoff = 4 * time.Second
	s := NewSpooler(p, nil, settings, log)
	c := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	s.now = c.now
	return s, c
}

func TestSpoolerRetriesWithBackoffUntilAccepted(t *testing.T) {
	printer := &flakyPrinter{failures: 3}
	s, c := newTestSpooler(printer)
	ctx := context.Background()

	s.Enqueue(models.Order{ID: "o1"})
	s.Flush(ctx)
	assert.Equal(t, 1, printer.count())
	assert.Equal(t, 1, s.Pending())

	s.Flush(ctx)
	assert.Equal(t, 1, printer.count(), "not due yet")

	c.advance(time.Second)
	s.Flush(ctx)
	assert.Equal(t, 2, printer.count())

	c.advance(time.Second)
	s.Flush(ctx)
	assert.Equal(t, 2, printer.count(), "second retry waits twice as long")

	c.advance(time.Second)
	s.Flush(ctx)
	assert.Equal(t, 3, printer.count())

	c.advance(4 * time.Second)
	s.Flush(ctx)
	assert.Equal(t, 4, printer.count())
	assert.Equal(t, 0, s.Pending())

	for _, job := range printer.calls {
		assert.Equal(t, printer.calls[0].ID, job.ID, "retries reuse the job id")
	}
}

func TestSpoolerDelayIsCapped(t *testing.T) {
	s, _ := newTestSpooler(&flakyPrinter{})
	assert.Equal(t, time.Second, s.delay(1))
	assert.Equal(t, 2*time.Second, s.delay(2))
	assert.Equal(t, 4*time.Second, s.delay(3))
	assert.Equal(t, 4*time.Second, s.delay(40))
}

func TestSpoolerRunDeliversQueuedJobs(t *testing.T) {
	printer := &flakyPrinter{}
	log, _ := logtest.NewNullLogger()
	s := NewSpooler(printer, nil, models.DefaultPrinterSettings(), log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	s.Enqueue(models.Order{ID: "o1"})
	s.Enqueue(models.Order{ID: "o2"})
	require.Eventually(t, func() bool { return printer.count() == 2 }, time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestQueueOrdersByDueTime(t *testing.T) {
	q := NewQueue()
	base := time.Now()
	q.Enqueue(&attempt{Due: base.Add(2 * time.Second), Job: Job{ID: "late"}})
	q.Enqueue(&attempt{Due: base, Job: Job{ID: "early"}})
	q.Enqueue(&attempt{Due: base.Add(time.Second), Job: Job{ID: "middle"}})

	assert.Equal(t, "early", q.Peek().Job.ID)
	due := q.DequeueDue(base.Add(time.Second), 10)
	require.Len(t, due, 2)
	assert.Equal(t, "early", due[0].Job.ID)
	assert.Equal(t, "middle", due[1].Job.ID)
	assert.Equal(t, 1, q.Len())
}

type recordingWriter struct {
	topic, key string
	msg        []byte
}

func (w *recordingWriter) WriteKeyed(topic, key string, msg []byte) error {
	w.topic, w.key, w.msg = topic, key, msg
	return nil
}

func TestKafkaPrinterPublishesJob(t *testing.T) {
	w := &recordingWriter{}
	p := NewKafkaPrinter(w, "kitchen_print_jobs")
	job := NewJob(models.Order{ID: "o1", TenantID: "t1"}, models.DefaultPrinterSettings(), time.Now())

	require.NoError(t, p.PrintOrder(context.Background(), job))
	assert.Equal(t, "kitchen_print_jobs", w.topic)
	assert.Equal(t, "o1", w.key)

	var decoded Job
	require.NoError(t, json.Unmarshal(w.msg, &decoded))
	assert.Equal(t, job.ID, decoded.ID)
	assert.Equal(t, "kitchen", decoded.Mode)
}

func TestUnprintedOrdersSurviveRestart(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	ctx := context.Background()
	orders := docstore.NewOrderRepository(store.NewMemory(log), "t1", log)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for _, o := range []*models.Order{
		{ID: "cooking", Status: models.OrderStatusPreparing, CreatedAt: now},
		{ID: "waiting", Status: models.OrderStatusPending, CreatedAt: now},
		{ID: "done", Status: models.OrderStatusCompleted, CreatedAt: now},
	} {
		require.NoError(t, orders.Create(ctx, o))
	}

	offline := &flakyPrinter{failures: 100}
	first := NewSpooler(offline, orders, models.DefaultPrinterSettings(), log)
	cooking, err := orders.GetByID(ctx, "cooking")
	require.NoError(t, err)
	first.Enqueue(*cooking)
	first.Flush(ctx)
	stopped, cancel := context.WithCancel(ctx)
	cancel()
	require.NoError(t, first.Run(stopped))
	assert.Equal(t, 1, first.Pending(), "job still undelivered at shutdown")

	printer := &flakyPrinter{}
	second := NewSpooler(printer, orders, models.DefaultPrinterSettings(), log)
	resumed, err := second.Resume(ctx, orders)
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)
	second.Flush(ctx)
	require.Equal(t, 1, printer.count())
	assert.Equal(t, "cooking", printer.calls[0].OrderID)

	marked, err := orders.GetByID(ctx, "cooking")
	require.NoError(t, err)
	require.NotNil(t, marked.PrintedAt)

	third := NewSpooler(&flakyPrinter{}, orders, models.DefaultPrinterSettings(), log)
	resumed, err = third.Resume(ctx, orders)
	require.NoError(t, err)
	assert.Zero(t, resumed, "printed orders are not queued again")
}

func TestResumeIsOffWhenPrintingDisabled(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	ctx := context.Background()
	orders := docstore.NewOrderRepository(store.NewMemory(log), "t1", log)
	require.NoError(t, orders.Create(ctx, &models.Order{ID: "o1", Status: models.OrderStatusPreparing}))

	s := NewSpooler(&flakyPrinter{}, orders, models.PrinterSettings{}, log)
	resumed, err := s.Resume(ctx, orders)
	require.NoError(t, err)
	assert.Zero(t, resumed)
}
