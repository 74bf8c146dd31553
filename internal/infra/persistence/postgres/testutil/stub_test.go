package testutil

import (
	"context"
	"database/sql/driver"
	"io"
	"testing"
)

const upsert = "INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload"

func TestStubStateTable(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	if _, err := conn.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS state (\n\t\tbucket TEXT PRIMARY KEY,\n\t\tpayload JSONB NOT NULL\n\t)", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, payload := range []string{"[]", `[{"id":"a"}]`} {
		if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: "samples"}, {Value: []byte(payload)}}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: "settings"}, {Value: []byte(`{}`)}}); err != nil {
		t.Fatalf("upsert settings: %v", err)
	}
	if got := string(conn.State["samples"]); got != `[{"id":"a"}]` {
		t.Fatalf("upsert must replace payload, got %s", got)
	}

	rows, err := conn.QueryContext(ctx, "SELECT bucket, payload FROM state", nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	dest := make([]driver.Value, 2)
	var seen []string
	for rows.Next(dest) != io.EOF {
		seen = append(seen, dest[0].(string))
	}
	if len(seen) != 2 || seen[0] != "samples" || seen[1] != "settings" {
		t.Fatalf("unexpected buckets %v", seen)
	}

	res, err := conn.ExecContext(ctx, "DELETE FROM state WHERE bucket = $1", []driver.NamedValue{{Value: "samples"}})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		t.Fatalf("expected one row deleted, got %d", n)
	}
	res, _ = conn.ExecContext(ctx, "DELETE FROM state WHERE bucket = $1", []driver.NamedValue{{Value: "samples"}})
	if n, _ := res.RowsAffected(); n != 0 {
		t.Fatalf("second delete should affect nothing, got %d", n)
	}
	if b := conn.Buckets(); len(b) != 1 || b[0] != "settings" {
		t.Fatalf("unexpected buckets after delete %v", b)
	}
	if len(conn.Execs) != 6 {
		t.Fatalf("expected 6 recorded statements, got %d", len(conn.Execs))
	}
}

func TestStubFailureToggles(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()
	conn.FailPing = true
	if err := conn.Ping(ctx); err == nil {
		t.Fatalf("expected ping failure")
	}
	conn.FailBegin = true
	if _, err := conn.BeginTx(ctx, driver.TxOptions{}); err == nil {
		t.Fatalf("expected begin failure")
	}
	conn.FailQuery = true
	if _, err := conn.QueryContext(ctx, "SELECT bucket, payload FROM state", nil); err == nil {
		t.Fatalf("expected query failure")
	}
	if _, err := conn.QueryContext(ctx, "UPDATE state", nil); err == nil {
		t.Fatalf("expected unsupported query")
	}
	if _, err := conn.ExecContext(ctx, "TRUNCATE state", nil); err == nil {
		t.Fatalf("expected unsupported statement")
	}
	if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: "x"}}); err == nil {
		t.Fatalf("expected arg count error")
	}
}
