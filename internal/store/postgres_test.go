package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteQueryUpsertWithoutPreconditions(t *testing.T) {
	query, args := writeQuery("orders", "t1", "o1", `{"a":1}`, nil)
	assert.Contains(t, query, "ON CONFLICT (collection, tenant_id, id)")
	assert.Contains(t, query, "records.data || EXCLUDED.data")
	assert.Len(t, args, 4)
}

func TestWriteQueryInsertOnly(t *testing.T) {
	query, _ := writeQuery("orders", "t1", "o1", `{}`, []Precondition{IfNotExists()})
	assert.Contains(t, query, "DO NOTHING")
	assert.NotContains(t, query, "UPDATE records")
}

func TestWriteQueryCompareAndSet(t *testing.T) {
	query, args := writeQuery("orders", "t1", "o1", `{"status":"READY"}`, []Precondition{
		IfField("status", "PREPARING"),
		IfAbsent("feedback"),
	})
	assert.Contains(t, query, "UPDATE records")
	assert.Contains(t, query, "data -> $5 = $6::jsonb")
	assert.Contains(t, query, "data -> $7 IS NULL")
	assert.Equal(t, []interface{}{"orders", "t1", "o1", `{"status":"READY"}`, "status", `"PREPARING"`, "feedback"}, args)
}

func TestFilterDocument(t *testing.T) {
	doc, err := filterDocument([]Filter{Where("status", "PENDING")})
	assert.NoError(t, err)
	assert.JSONEq(t, `{"status":"PENDING"}`, doc)

	doc, err = filterDocument(nil)
	assert.NoError(t, err)
	assert.Equal(t, "{}", doc)
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h:5432/db?sslmode=disable", migrateURL("postgres://u:p@h:5432/db?sslmode=disable"))
	assert.Equal(t, "pgx5://h/db", migrateURL("postgresql://h/db"))
}
