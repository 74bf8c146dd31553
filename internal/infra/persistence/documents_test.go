package persistence_test

import (
	"context"
	"errors"
	"testing"

	"curetrack/internal/infra/persistence"
	"curetrack/internal/infra/persistence/memory"
	"curetrack/pkg/domain"
)

type failingBuckets struct{ *memory.Store }

func (failingBuckets) Write(context.Context, string, []byte) error { return errors.New("disk full") }
func (failingBuckets) Remove(context.Context, ...string) error     { return errors.New("disk full") }

func TestDocumentsEmptyStore(t *testing.T) {
	ctx := context.Background()
	docs := persistence.NewDocuments(memory.NewStore())
	samples, err := docs.LoadSamples(ctx)
	if err != nil || samples == nil || len(samples) != 0 {
		t.Fatalf("expected empty list, got %#v %v", samples, err)
	}
	settings, err := docs.LoadSettings(ctx)
	if err != nil || settings != domain.DefaultSettings() {
		t.Fatalf("expected defaults, got %+v %v", settings, err)
	}
}

func TestDocumentsCorruptSamples(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	_ = mem.Write(ctx, domain.StorageKeySamples, []byte("{not json"))
	_, err := persistence.NewDocuments(mem).LoadSamples(ctx)
	if !errors.Is(err, domain.ErrCorruptDocument) {
		t.Fatalf("expected ErrCorruptDocument, got %v", err)
	}
}

func TestDocumentsSaveClear(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	docs := persistence.NewDocuments(mem)
	if err := docs.SaveSamples(ctx, []domain.Sample{{ID: "b"}, {ID: "a"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _ := docs.LoadSamples(ctx)
	if len(got) != 2 || got[0].ID != "b" {
		t.Fatalf("order must be preserved, got %+v", got)
	}
	if err := docs.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if payload, _ := mem.Read(ctx, domain.StorageKeySamples); payload != nil {
		t.Fatalf("expected samples bucket removed")
	}
	if docs.Backend() != mem || docs.Close() != nil {
		t.Fatalf("unexpected backend/close behaviour")
	}
}

func TestDocumentsWriteErrors(t *testing.T) {
	ctx := context.Background()
	docs := persistence.NewDocuments(failingBuckets{memory.NewStore()})
	if err := docs.SaveSamples(ctx, nil); err == nil {
		t.Fatalf("expected save error")
	}
	if err := docs.SaveSettings(ctx, domain.DefaultSettings()); err == nil {
		t.Fatalf("expected settings error")
	}
	if err := docs.Clear(ctx); err == nil {
		t.Fatalf("expected clear error")
	}
}
