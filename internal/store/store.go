// Package store defines the durable document store used by every other
// package. Documents live in named collections, are scoped to a tenant and
// are written as shallow JSON merge patches, optionally guarded by
// preconditions.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrPreconditionFailed = errors.New("precondition failed")
)

// Record is one stored document.
type Record struct {
	Collection string          `json:"collection"`
	TenantID   string          `json:"tenantId"`
	ID         string          `json:"id"`
	Data       json.RawMessage `json:"data"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

func (r Record) Decode(v interface{}) error {
	return errors.Wrapf(json.Unmarshal(r.Data, v), "decode %s/%s", r.Collection, r.ID)
}

// Patch is a shallow merge patch: each top-level key replaces the stored one.
type Patch map[string]interface{}

// PatchFrom converts a JSON-serializable value into a patch holding all of
// its top-level fields.
func PatchFrom(v interface{}) (Patch, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal patch")
	}
	var p Patch
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, errors.Wrap(err, "patch must be a JSON object")
	}
	return p, nil
}

// Filter restricts a subscription to documents whose top-level Field equals
// Value.
type Filter struct {
	Field string
	Value interface{}
}

func Where(field string, value interface{}) Filter {
	return Filter{Field: field, Value: value}
}

type PreconditionKind int

const (
	FieldEquals PreconditionKind = iota
	FieldAbsent
	Exists
	NotExists
)

// Precondition guards a write. A write whose preconditions do not all hold
// fails with ErrPreconditionFailed and changes nothing.
type Precondition struct {
	Kind  PreconditionKind
	Field string
	Value interface{}
}

// IfField requires the stored field to equal value. It is the
// compare-and-set primitive.
func IfField(field string, value interface{}) Precondition {
	return Precondition{Kind: FieldEquals, Field: field, Value: value}
}

// IfAbsent requires the stored field to be missing or null.
func IfAbsent(field string) Precondition {
	return Precondition{Kind: FieldAbsent, Field: field}
}

func IfExists() Precondition {
	return Precondition{Kind: Exists}
}

func IfNotExists() Precondition {
	return Precondition{Kind: NotExists}
}

// Store is the durable store contract.
type Store interface {
	// Subscribe emits every matching record currently stored and then every
	// matching record after each write, until ctx is done. The channel is
	// closed when the subscription ends.
	Subscribe(ctx context.Context, collection, tenantID string, filters ...Filter) (<-chan Record, error)
	Get(ctx context.Context, collection, tenantID, id string) (Record, error)
	List(ctx context.Context, collection, tenantID string, filters ...Filter) ([]Record, error)
	Write(ctx context.Context, collection, tenantID, id string, patch Patch, preconditions ...Precondition) (Record, error)
}

// jsonEqual compares two values by their JSON encoding, so that typed
// strings and decoded strings compare equal.
func jsonEqual(a, b interface{}) bool {
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ra, rb)
}
