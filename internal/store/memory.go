package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type memoryKey struct {
	collection string
	tenantID   string
	id         string
}

type memoryDoc struct {
	fields    map[string]interface{}
	updatedAt time.Time
}

// Memory is an in-process Store. Subscribers never block writers: each one
// has its own unbounded queue drained by a dedicated goroutine.
type Memory struct {
	log logrus.FieldLogger
	now func() time.Time

	mu          sync.Mutex
	docs        map[memoryKey]*memoryDoc
	subscribers map[*subscriber]struct{}
}

func NewMemory(log logrus.FieldLogger) *Memory {
	return &Memory{
		log:         log,
		now:         time.Now,
		docs:        make(map[memoryKey]*memoryDoc),
		subscribers: make(map[*subscriber]struct{}),
	}
}

func (m *Memory) Get(_ context.Context, collection, tenantID, id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[memoryKey{collection, tenantID, id}]
	if !ok {
		return Record{}, errors.Wrapf(ErrNotFound, "%s/%s", collection, id)
	}
	return toRecord(memoryKey{collection, tenantID, id}, doc)
}

func (m *Memory) List(_ context.Context, collection, tenantID string, filters ...Filter) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot(collection, tenantID, filters)
}

func (m *Memory) snapshot(collection, tenantID string, filters []Filter) ([]Record, error) {
	var out []Record
	for key, doc := range m.docs {
		if key.collection != collection || key.tenantID != tenantID || !matches(doc.fields, filters) {
			continue
		}
		rec, err := toRecord(key, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Write(_ context.Context, collection, tenantID, id string, patch Patch, preconditions ...Precondition) (Record, error) {
	key := memoryKey{collection, tenantID, id}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, exists := m.docs[key]
	var current map[string]interface{}
	if exists {
		current = doc.fields
	}
	for _, p := range preconditions {
		if !holds(p, current, exists) {
			return Record{}, errors.Wrapf(ErrPreconditionFailed, "%s/%s", collection, id)
		}
	}

	// Round-trip the patch so stored values are plain JSON types.
	raw, err := json.Marshal(patch)
	if err != nil {
		return Record{}, errors.Wrap(err, "marshal patch")
	}
	var normalized map[string]interface{}
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return Record{}, errors.Wrap(err, "normalize patch")
	}

	merged := make(map[string]interface{}, len(current)+len(normalized))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range normalized {
		merged[k] = v
	}
	next := &memoryDoc{fields: merged, updatedAt: m.now()}
	m.docs[key] = next

	rec, err := toRecord(key, next)
	if err != nil {
		return Record{}, err
	}
	for sub := range m.subscribers {
		if sub.collection == collection && sub.tenantID == tenantID && matches(merged, sub.filters) {
			sub.push(rec)
		}
	}
	return rec, nil
}

func (m *Memory) Subscribe(ctx context.Context, collection, tenantID string, filters ...Filter) (<-chan Record, error) {
	sub := newSubscriber(collection, tenantID, filters)

	m.mu.Lock()
	initial, err := m.snapshot(collection, tenantID, filters)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	for _, rec := range initial {
		sub.push(rec)
	}
	m.subscribers[sub] = struct{}{}
	m.mu.Unlock()

	go func() {
		sub.run(ctx)
		m.mu.Lock()
		delete(m.subscribers, sub)
		m.mu.Unlock()
		m.log.WithFields(logrus.Fields{"collection": collection, "tenant_id": tenantID}).Debug("subscription closed")
	}()
	return sub.out, nil
}

type subscriber struct {
	collection string
	tenantID   string
	filters    []Filter

	mu     sync.Mutex
	queue  []Record
	notify chan struct{}
	out    chan Record
}

func newSubscriber(collection, tenantID string, filters []Filter) *subscriber {
	return &subscriber{
		collection: collection,
		tenantID:   tenantID,
		filters:    filters,
		notify:     make(chan struct{}, 1),
		out:        make(chan Record),
	}
}

func (s *subscriber) push(rec Record) {
	s.mu.Lock()
	s.queue = append(s.queue, rec)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) run(ctx context.Context) {
	defer close(s.out)
	for {
		s.mu.Lock()
		pending := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, rec := range pending {
			select {
			case s.out <- rec:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-s.notify:
		case <-ctx.Done():
			return
		}
	}
}

func toRecord(key memoryKey, doc *memoryDoc) (Record, error) {
	raw, err := json.Marshal(doc.fields)
	if err != nil {
		return Record{}, errors.Wrap(err, "marshal record")
	}
	return Record{
		Collection: key.collection,
		TenantID:   key.tenantID,
		ID:         key.id,
		Data:       raw,
		UpdatedAt:  doc.updatedAt,
	}, nil
}

func matches(fields map[string]interface{}, filters []Filter) bool {
	for _, f := range filters {
		v, ok := fields[f.Field]
		if !ok || !jsonEqual(v, f.Value) {
			return false
		}
	}
	return true
}

func holds(p Precondition, fields map[string]interface{}, exists bool) bool {
	switch p.Kind {
	case Exists:
		return exists
	case NotExists:
		return !exists
	case FieldEquals:
		v, ok := fields[p.Field]
		return exists && ok && jsonEqual(v, p.Value)
	case FieldAbsent:
		v, ok := fields[p.Field]
		return !ok || v == nil
	}
	return false
}
