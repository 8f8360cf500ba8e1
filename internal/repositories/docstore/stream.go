// Package docstore implements the repositories on top of the durable
// document store, one collection per aggregate.
package docstore

import (
	"context"

	"github.com/chrisdamba/menuflow/internal/store"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// decodeStream turns a record subscription into a typed one. Records that
// fail to decode are logged and skipped.
func decodeStream[T any](ctx context.Context, in <-chan store.Record, log logrus.FieldLogger) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for rec := range in {
			var v T
			if err := rec.Decode(&v); err != nil {
				log.WithError(err).WithField("id", rec.ID).Warn("skipping undecodable record")
				continue
			}
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func get[T any](ctx context.Context, s store.Store, collection, tenantID, id string) (*T, error) {
	rec, err := s.Get(ctx, collection, tenantID, id)
	if err != nil {
		return nil, err
	}
	var v T
	if err := rec.Decode(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

func list[T any](ctx context.Context, s store.Store, collection, tenantID string, filters ...store.Filter) ([]*T, error) {
	recs, err := s.List(ctx, collection, tenantID, filters...)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(recs))
	for _, rec := range recs {
		var v T
		if err := rec.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, nil
}

func put(ctx context.Context, s store.Store, collection, tenantID, id string, v interface{}, preconditions ...store.Precondition) (store.Record, error) {
	patch, err := store.PatchFrom(v)
	if err != nil {
		return store.Record{}, err
	}
	rec, err := s.Write(ctx, collection, tenantID, id, patch, preconditions...)
	return rec, errors.WithMessagef(err, "write %s", collection)
}
