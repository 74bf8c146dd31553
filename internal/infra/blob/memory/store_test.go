package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"curetrack/internal/blob/core"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	md := map[string]string{"sample": "s1"}
	info, err := s.Put(ctx, "photos/s1/a.jpg", bytes.NewReader([]byte("abc")), core.PutOptions{ContentType: "image/jpeg", Metadata: md})
	if err != nil || info.Size != 3 || info.ETag == "" {
		t.Fatalf("put: %+v %v", info, err)
	}
	md["sample"] = "mutated"
	if _, err := s.Put(ctx, "photos/s1/a.jpg", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	head, err := s.Head(ctx, "photos/s1/a.jpg")
	if err != nil || head.Metadata["sample"] != "s1" {
		t.Fatalf("metadata must be copied on put: %+v %v", head, err)
	}
	_, rc, err := s.Get(ctx, "photos/s1/a.jpg")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	if string(b) != "abc" {
		t.Fatalf("unexpected body %q", b)
	}
	if u, err := s.PresignURL(ctx, "photos/s1/a.jpg", core.SignedURLOptions{}); err != nil || u != "memory://photos/s1/a.jpg" {
		t.Fatalf("presign: %q %v", u, err)
	}
	if list, _ := s.List(ctx, "photos/"); len(list) != 1 {
		t.Fatalf("unexpected list %+v", list)
	}
	if ok, err := s.Delete(ctx, "photos/s1/a.jpg"); !ok || err != nil {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if _, err := s.Head(ctx, "photos/s1/a.jpg"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.PresignURL(ctx, "photos/s1/a.jpg", core.SignedURLOptions{}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from presign, got %v", err)
	}
}

func TestMemoryStoreFailDelete(t *testing.T) {
	s := New()
	s.FailDelete = true
	if _, err := s.Delete(context.Background(), "x"); err == nil {
		t.Fatalf("expected injected failure")
	}
	if _, err := s.Put(context.Background(), " ", bytes.NewReader(nil), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key rejection")
	}
}
