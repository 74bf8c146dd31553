package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"curetrack/internal/infra/persistence"
	"curetrack/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store, err := NewStore(path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	docs := persistence.NewDocuments(store)
	if err := docs.SaveSamples(ctx, []domain.Sample{{ID: "a", Name: "Persist", CureDays: 28}}); err != nil {
		t.Fatalf("save samples: %v", err)
	}
	if err := docs.SaveSettings(ctx, domain.Settings{DefaultCureDays: 14}); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	if err := docs.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	docs = persistence.NewDocuments(reloaded)
	samples, err := docs.LoadSamples(ctx)
	if err != nil || len(samples) != 1 || samples[0].Name != "Persist" {
		t.Fatalf("unexpected samples %+v %v", samples, err)
	}
	settings, err := docs.LoadSettings(ctx)
	if err != nil || settings.DefaultCureDays != 14 {
		t.Fatalf("unexpected settings %+v %v", settings, err)
	}
	if reloaded.Path() != path {
		t.Fatalf("unexpected path %s", reloaded.Path())
	}
}

func TestSQLiteStoreRemove(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Write(ctx, "a", []byte(`1`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Remove(ctx, "a", "missing"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	var n int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&n); err != nil || n != 0 {
		t.Fatalf("expected empty table, got %d %v", n, err)
	}
	if got, _ := store.Read(ctx, "a"); got != nil {
		t.Fatalf("cache not cleared: %s", got)
	}
}

func TestSQLiteStoreWriteFailureKeepsCache(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if err := store.Write(ctx, "a", []byte(`1`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = store.Close()
	if err := store.Write(ctx, "a", []byte(`2`)); err == nil {
		t.Fatalf("expected write on closed db to fail")
	}
	if got, _ := store.Read(ctx, "a"); string(got) != "1" {
		t.Fatalf("cache must keep the committed value, got %s", got)
	}
}
