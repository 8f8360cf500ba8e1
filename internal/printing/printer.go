// Package printing sends orders to the kitchen printers. Jobs are delivered
// at least once: a failed job is retried with exponential backoff until the
// printing service accepts it.
package printing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chrisdamba/menuflow/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Job struct {
	ID        string       `json:"jobId"`
	OrderID   string       `json:"orderId"`
	TenantID  string       `json:"tenantId"`
	Mode      string       `json:"mode"`
	Copies    int          `json:"copies"`
	Order     models.Order `json:"order"`
	CreatedAt time.Time    `json:"createdAt"`
}

func NewJob(order models.Order, settings models.PrinterSettings, at time.Time) Job {
	return Job{
		ID:        uuid.NewString(),
		OrderID:   order.ID,
		TenantID:  order.TenantID,
		Mode:      settings.Mode,
		Copies:    settings.Copies,
		Order:     order,
		CreatedAt: at,
	}
}

type Printer interface {
	PrintOrder(ctx context.Context, job Job) error
}

type KeyedWriter interface {
	WriteKeyed(topic, key string, msg []byte) error
}

// KafkaPrinter hands jobs to the print service through a Kafka topic, keyed
// by order id.
type KafkaPrinter struct {
	producer KeyedWriter
	topic    string
}

func NewKafkaPrinter(producer KeyedWriter, topic string) *KafkaPrinter {
	return &KafkaPrinter{producer: producer, topic: topic}
}

func (p *KafkaPrinter) PrintOrder(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "serialize print job")
	}
	return errors.Wrapf(p.producer.WriteKeyed(p.topic, job.OrderID, msg), "publish print job %s", job.ID)
}
