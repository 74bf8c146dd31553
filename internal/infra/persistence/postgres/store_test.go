package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"curetrack/internal/infra/persistence"
	"curetrack/internal/infra/persistence/postgres/testutil"
	"curetrack/pkg/domain"
)

func openStub(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(driverName, _ string) (*sql.DB, error) {
		if driverName != defaultDriver {
			t.Fatalf("unexpected driver %s", driverName)
		}
		return db, nil
	})
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, conn
}

func TestPostgresStoreWritesThroughAndHydrates(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)
	docs := persistence.NewDocuments(store)

	samples := []domain.Sample{{ID: "a", Name: "Beam-A", CureDays: 7, ReminderIDs: []string{}}}
	if err := docs.SaveSamples(ctx, samples); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := docs.SaveSamples(ctx, samples); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if b := conn.Buckets(); len(b) != 1 || b[0] != domain.StorageKeySamples {
		t.Fatalf("expected one upserted row, got %v", b)
	}

	// a second store over the same connection hydrates from the table
	db := store.DB()
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	reopened, err := NewStore(ctx, "postgres://example")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := persistence.NewDocuments(reopened).LoadSamples(ctx)
	if err != nil || len(got) != 1 || got[0].Name != "Beam-A" {
		t.Fatalf("unexpected hydrated samples %+v %v", got, err)
	}

	if err := docs.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if b := conn.Buckets(); len(b) != 0 {
		t.Fatalf("expected rows deleted, got %v", b)
	}
}

func TestPostgresStoreFailedWriteKeepsCache(t *testing.T) {
	ctx := context.Background()
	store, conn := openStub(t)
	if err := store.Write(ctx, "k", []byte(`"v1"`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.FailCommit = true
	if err := store.Write(ctx, "k", []byte(`"v2"`)); err == nil {
		t.Fatalf("expected commit failure")
	}
	if conn.Rollbacks == 0 {
		t.Fatalf("expected rollback after failed commit")
	}
	got, _ := store.Read(ctx, "k")
	if string(got) != `"v1"` {
		t.Fatalf("cache must keep last committed value, got %s", got)
	}
}

func TestPostgresStoreOpenErrors(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("dial") })
	if _, err := NewStore(context.Background(), ""); err == nil {
		t.Fatalf("expected open error")
	}
	restore()

	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore = OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), ""); err == nil {
		t.Fatalf("expected ping error")
	}
	conn.FailPing = false
	conn.FailExec = true
	if _, err := NewStore(context.Background(), ""); err == nil {
		t.Fatalf("expected ddl error")
	}
}
