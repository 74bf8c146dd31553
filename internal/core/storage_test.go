package core

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"curetrack/internal/infra/persistence/kv"
	"curetrack/internal/infra/persistence/memory"
	"curetrack/internal/infra/persistence/sqlite"
	"curetrack/pkg/domain"
)

func TestOpenSampleStoreDrivers(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cases := []struct {
		cfg   StorageConfig
		check func(any) bool
	}{
		{StorageConfig{Driver: StorageMemory}, func(b any) bool { _, ok := b.(*memory.Store); return ok }},
		{StorageConfig{SQLitePath: filepath.Join(dir, "c.db")}, func(b any) bool { _, ok := b.(*sqlite.Store); return ok }},
		{StorageConfig{Driver: StorageKV, KVPath: filepath.Join(dir, "kv")}, func(b any) bool { _, ok := b.(*kv.Store); return ok }},
	}
	for _, tc := range cases {
		docs, err := OpenSampleStore(ctx, tc.cfg)
		if err != nil {
			t.Fatalf("open %+v: %v", tc.cfg, err)
		}
		if !tc.check(docs.Backend()) {
			t.Fatalf("unexpected backend %T for %+v", docs.Backend(), tc.cfg)
		}
		svc := NewService(docs)
		if _, _, err := svc.Create(ctx, Input{Name: "Column", CureDays: 7}); err != nil {
			t.Fatalf("create on %T: %v", docs.Backend(), err)
		}
		list, err := svc.List(ctx)
		if err != nil || len(list) != 1 || list[0].Name != "Column" {
			t.Fatalf("list on %T: %+v %v", docs.Backend(), list, err)
		}
		if err := docs.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
}

func TestOpenSampleStoreSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "curetrack.db")
	docs, err := OpenSampleStore(ctx, StorageConfig{Driver: StorageSQLite, SQLitePath: path})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := docs.SaveSamples(ctx, []domain.Sample{{ID: "a", Name: "A", CureDays: 1}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = docs.Close()

	reopened, err := OpenSampleStore(ctx, StorageConfig{Driver: StorageSQLite, SQLitePath: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	got, err := reopened.LoadSamples(ctx)
	if err != nil || len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("unexpected reload %+v %v", got, err)
	}
}

func TestOpenSampleStoreUnknownDriver(t *testing.T) {
	_, err := OpenSampleStore(context.Background(), StorageConfig{Driver: "mongo"})
	if err == nil || !strings.Contains(err.Error(), "unknown storage driver") {
		t.Fatalf("expected unknown driver error, got %v", err)
	}
}
