package events

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type OutputDestination interface {
	WriteMessage(topic string, msg []byte) error
	Close() error
}

// Bus serializes events to JSON and writes them to every destination. The
// topic is looked up by event type and defaults to the type itself.
type Bus struct {
	topics       map[string]string
	destinations []OutputDestination
	log          logrus.FieldLogger

	mu       sync.RWMutex
	handlers []func(Event)
}

func NewBus(topics map[string]string, log logrus.FieldLogger, destinations ...OutputDestination) *Bus {
	if topics == nil {
		topics = map[string]string{}
	}
	return &Bus{topics: topics, destinations: destinations, log: log}
}

// Subscribe registers an in-process handler called synchronously for every
// published event.
func (b *Bus) Subscribe(fn func(Event)) {
	b.mu.Lock()
	b.handlers = append(b.handlers, fn)
	b.mu.Unlock()
}

func (b *Bus) Topic(eventType string) string {
	if t, ok := b.topics[eventType]; ok && t != "" {
		return t
	}
	return eventType
}

func (b *Bus) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := json.Marshal(event)
	if err != nil {
		return errors.Wrapf(err, "serialize %s event", event.EventType())
	}

	topic := b.Topic(event.EventType())
	var firstErr error
	for _, d := range b.destinations {
		if err := d.WriteMessage(topic, msg); err != nil {
			b.log.WithError(err).WithField("topic", topic).Error("failed to write event")
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "write %s event", event.EventType())
			}
		}
	}

	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()
	for _, h := range handlers {
		h(event)
	}
	return firstErr
}

func (b *Bus) Close() error {
	var lastErr error
	for _, d := range b.destinations {
		if err := d.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
