package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const notifyChannel = "menuflow_records"

type notification struct {
	Collection string `json:"collection"`
	TenantID   string `json:"tenantId"`
	ID         string `json:"id"`
}

// Postgres stores every document in a single JSONB table. Writes publish the
// document key with pg_notify and subscriptions LISTEN on a dedicated
// connection.
type Postgres struct {
	pool *pgxpool.Pool
	log  logrus.FieldLogger
}

func NewPostgres(ctx context.Context, dsn string, log logrus.FieldLogger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "unable to reach database")
	}
	return &Postgres{pool: pool, log: log}, nil
}

func NewPostgresFromPool(pool *pgxpool.Pool, log logrus.FieldLogger) *Postgres {
	return &Postgres{pool: pool, log: log}
}

func (s *Postgres) Close() {
	s.pool.Close()
}

func (s *Postgres) Get(ctx context.Context, collection, tenantID, id string) (Record, error) {
	query := `
        SELECT data, updated_at
        FROM records
        WHERE collection = $1 AND tenant_id = $2 AND id = $3
    `
	rec := Record{Collection: collection, TenantID: tenantID, ID: id}
	var data []byte
	err := s.pool.QueryRow(ctx, query, collection, tenantID, id).Scan(&data, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, errors.Wrapf(ErrNotFound, "%s/%s", collection, id)
	}
	if err != nil {
		return Record{}, errors.Wrapf(err, "get %s/%s", collection, id)
	}
	rec.Data = data
	return rec, nil
}

func (s *Postgres) List(ctx context.Context, collection, tenantID string, filters ...Filter) ([]Record, error) {
	containment, err := filterDocument(filters)
	if err != nil {
		return nil, err
	}
	query := `
        SELECT id, data, updated_at
        FROM records
        WHERE collection = $1 AND tenant_id = $2 AND data @> $3::jsonb
        ORDER BY id
    `
	rows, err := s.pool.Query(ctx, query, collection, tenantID, containment)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", collection)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec := Record{Collection: collection, TenantID: tenantID}
		var data []byte
		if err := rows.Scan(&rec.ID, &data, &rec.UpdatedAt); err != nil {
			return nil, errors.Wrapf(err, "scan %s", collection)
		}
		rec.Data = data
		out = append(out, rec)
	}
	return out, errors.Wrapf(rows.Err(), "list %s", collection)
}

func (s *Postgres) Write(ctx context.Context, collection, tenantID, id string, patch Patch, preconditions ...Precondition) (Record, error) {
	raw, err := json.Marshal(patch)
	if err != nil {
		return Record{}, errors.Wrap(err, "marshal patch")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Record{}, errors.Wrap(err, "begin write")
	}
	defer tx.Rollback(ctx)

	query, args := writeQuery(collection, tenantID, id, string(raw), preconditions)
	rec := Record{Collection: collection, TenantID: tenantID, ID: id}
	var data []byte
	err = tx.QueryRow(ctx, query, args...).Scan(&data, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, errors.Wrapf(ErrPreconditionFailed, "%s/%s", collection, id)
	}
	if err != nil {
		return Record{}, errors.Wrapf(err, "write %s/%s", collection, id)
	}
	rec.Data = data

	payload, err := json.Marshal(notification{Collection: collection, TenantID: tenantID, ID: id})
	if err != nil {
		return Record{}, errors.Wrap(err, "marshal notification")
	}
	if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", notifyChannel, string(payload)); err != nil {
		return Record{}, errors.Wrap(err, "notify write")
	}
	if err := tx.Commit(ctx); err != nil {
		return Record{}, errors.Wrapf(err, "commit %s/%s", collection, id)
	}
	return rec, nil
}

// writeQuery builds the statement for a patch write. Without preconditions it
// upserts. NotExists turns it into a plain insert. Any other precondition
// turns it into a guarded update of an existing row.
func writeQuery(collection, tenantID, id, patch string, preconditions []Precondition) (string, []interface{}) {
	args := []interface{}{collection, tenantID, id, patch}

	if len(preconditions) == 0 {
		return `
            INSERT INTO records (collection, tenant_id, id, data, updated_at)
            VALUES ($1, $2, $3, $4::jsonb, now())
            ON CONFLICT (collection, tenant_id, id)
            DO UPDATE SET data = records.data || EXCLUDED.data, updated_at = now()
            RETURNING data, updated_at
        `, args
	}

	for _, p := range preconditions {
		if p.Kind == NotExists {
			return `
                INSERT INTO records (collection, tenant_id, id, data, updated_at)
                VALUES ($1, $2, $3, $4::jsonb, now())
                ON CONFLICT (collection, tenant_id, id) DO NOTHING
                RETURNING data, updated_at
            `, args
		}
	}

	var conds []string
	for _, p := range preconditions {
		switch p.Kind {
		case FieldEquals:
			value, err := json.Marshal(p.Value)
			if err != nil {
				// An unencodable value can never match.
				conds = append(conds, "false")
				continue
			}
			args = append(args, p.Field, string(value))
			conds = append(conds, fmt.Sprintf("data -> $%d = $%d::jsonb", len(args)-1, len(args)))
		case FieldAbsent:
			args = append(args, p.Field)
			conds = append(conds, fmt.Sprintf("(data -> $%d IS NULL OR data -> $%d = 'null'::jsonb)", len(args), len(args)))
		}
	}

	query := `
        UPDATE records
        SET data = data || $4::jsonb, updated_at = now()
        WHERE collection = $1 AND tenant_id = $2 AND id = $3`
	if len(conds) > 0 {
		query += "\n          AND " + strings.Join(conds, "\n          AND ")
	}
	return query + "\n        RETURNING data, updated_at", args
}

func filterDocument(filters []Filter) (string, error) {
	doc := make(map[string]interface{}, len(filters))
	for _, f := range filters {
		doc[f.Field] = f.Value
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, "marshal filters")
	}
	return string(raw), nil
}

func (s *Postgres) Subscribe(ctx context.Context, collection, tenantID string, filters ...Filter) (<-chan Record, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "acquire listen connection")
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, errors.Wrap(err, "listen")
	}

	// LISTEN first so no write between the snapshot and the first wait is lost.
	initial, err := s.List(ctx, collection, tenantID, filters...)
	if err != nil {
		conn.Release()
		return nil, err
	}

	out := make(chan Record)
	logger := s.log.WithFields(logrus.Fields{"collection": collection, "tenant_id": tenantID})
	go func() {
		defer close(out)
		defer func() {
			unlistenCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_, _ = conn.Exec(unlistenCtx, "UNLISTEN "+notifyChannel)
			conn.Release()
		}()

		for _, rec := range initial {
			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}
		}

		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.WithError(err).Error("subscription stopped")
				}
				return
			}
			var key notification
			if err := json.Unmarshal([]byte(n.Payload), &key); err != nil {
				logger.WithError(err).Warn("ignoring malformed notification")
				continue
			}
			if key.Collection != collection || key.TenantID != tenantID {
				continue
			}
			rec, err := s.Get(ctx, collection, tenantID, key.ID)
			if err != nil {
				logger.WithError(err).WithField("id", key.ID).Warn("unable to load notified record")
				continue
			}
			if len(filters) > 0 {
				var fields map[string]interface{}
				if err := json.Unmarshal(rec.Data, &fields); err != nil || !matches(fields, filters) {
					continue
				}
			}
			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
