package store

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderDoc struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Type     string `json:"type"`
	Feedback *struct {
		Rating int `json:"rating"`
	} `json:"feedback,omitempty"`
}

func newMemory() *Memory {
	log, _ := logtest.NewNullLogger()
	return NewMemory(log)
}

func receive(t *testing.T, ch <-chan Record) Record {
	t.Helper()
	select {
	case rec, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return rec
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for record")
	}
	return Record{}
}

func TestMemoryWriteMergesPatch(t *testing.T) {
	ctx := context.Background()
	s := newMemory()

	_, err := s.Write(ctx, "orders", "t1", "o1", Patch{"id": "o1", "status": "PENDING", "type": "DELIVERY"})
	require.NoError(t, err)
	_, err = s.Write(ctx, "orders", "t1", "o1", Patch{"status": "PREPARING"})
	require.NoError(t, err)

	rec, err := s.Get(ctx, "orders", "t1", "o1")
	require.NoError(t, err)
	var doc orderDoc
	require.NoError(t, rec.Decode(&doc))
	assert.Equal(t, "PREPARING", doc.Status)
	assert.Equal(t, "DELIVERY", doc.Type)

	_, err = s.Get(ctx, "orders", "t2", "o1")
	assert.True(t, errors.Is(err, ErrNotFound), "tenants are isolated")
}

func TestMemoryPreconditions(t *testing.T) {
	ctx := context.Background()
	s := newMemory()

	_, err := s.Write(ctx, "orders", "t1", "o1", Patch{"status": "PENDING"}, IfNotExists())
	require.NoError(t, err)
	_, err = s.Write(ctx, "orders", "t1", "o1", Patch{"status": "PENDING"}, IfNotExists())
	assert.True(t, errors.Is(err, ErrPreconditionFailed))

	type status string
	_, err = s.Write(ctx, "orders", "t1", "o1", Patch{"status": "PREPARING"}, IfField("status", status("PENDING")))
	require.NoError(t, err)
	_, err = s.Write(ctx, "orders", "t1", "o1", Patch{"status": "PREPARING"}, IfField("status", "PENDING"))
	assert.True(t, errors.Is(err, ErrPreconditionFailed), "second compare-and-set loses")

	_, err = s.Write(ctx, "orders", "t1", "o1", Patch{"feedback": map[string]int{"rating": 5}}, IfAbsent("feedback"))
	require.NoError(t, err)
	_, err = s.Write(ctx, "orders", "t1", "o1", Patch{"feedback": map[string]int{"rating": 1}}, IfAbsent("feedback"))
	assert.True(t, errors.Is(err, ErrPreconditionFailed))

	_, err = s.Write(ctx, "orders", "t1", "missing", Patch{"status": "X"}, IfExists())
	assert.True(t, errors.Is(err, ErrPreconditionFailed))

	rec, err := s.Get(ctx, "orders", "t1", "o1")
	require.NoError(t, err)
	var doc orderDoc
	require.NoError(t, rec.Decode(&doc))
	require.NotNil(t, doc.Feedback)
	assert.Equal(t, 5, doc.Feedback.Rating)
}

func TestMemorySubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newMemory()

	_, err := s.Write(ctx, "orders", "t1", "o1", Patch{"status": "PENDING", "type": "TAKEOUT"})
	require.NoError(t, err)
	_, err = s.Write(ctx, "orders", "t1", "o2", Patch{"status": "PENDING", "type": "DELIVERY"})
	require.NoError(t, err)

	ch, err := s.Subscribe(ctx, "orders", "t1", Where("type", "DELIVERY"))
	require.NoError(t, err)

	first := receive(t, ch)
	assert.Equal(t, "o2", first.ID)

	_, err = s.Write(ctx, "orders", "t1", "o1", Patch{"status": "READY"})
	require.NoError(t, err)
	_, err = s.Write(ctx, "orders", "t2", "o2", Patch{"status": "READY", "type": "DELIVERY"})
	require.NoError(t, err)
	_, err = s.Write(ctx, "orders", "t1", "o2", Patch{"status": "PREPARING"})
	require.NoError(t, err)

	next := receive(t, ch)
	assert.Equal(t, "o2", next.ID)
	var doc orderDoc
	require.NoError(t, next.Decode(&doc))
	assert.Equal(t, "PREPARING", doc.Status)

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryWriterNeverBlocksOnSlowSubscriber(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newMemory()

	_, err := s.Subscribe(ctx, "carts", "t1")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			_, _ = s.Write(ctx, "carts", "t1", "c1", Patch{"n": i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writes blocked on an idle subscriber")
	}
}

func TestMemoryList(t *testing.T) {
	ctx := context.Background()
	s := newMemory()
	for _, id := range []string{"b", "a", "c"} {
		_, err := s.Write(ctx, "coupons", "t1", id, Patch{"code": id, "isActive": id != "c"})
		require.NoError(t, err)
	}

	all, err := s.List(ctx, "coupons", "t1")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ID)

	active, err := s.List(ctx, "coupons", "t1", Where("isActive", true))
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestPatchFrom(t *testing.T) {
	p, err := PatchFrom(orderDoc{ID: "o1", Status: "PENDING"})
	require.NoError(t, err)
	assert.Equal(t, "PENDING", p["status"])
	assert.NotContains(t, p, "feedback")

	_, err = PatchFrom([]string{"not", "an", "object"})
	assert.Error(t, err)
}
