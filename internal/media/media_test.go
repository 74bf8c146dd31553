package media

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"curetrack/internal/blob"
)

// smallest valid PNG header is enough for content sniffing
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

func fixedIDs(ids ...string) func() string {
	i := 0
	return func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
}

func TestCaptureStoresImage(t *testing.T) {
	store := blob.NewMemory()
	lib := New(store, WithIDGenerator(fixedIDs("p1")))
	out := lib.Capture(context.Background(), bytes.NewReader(pngBytes), "/tmp/slab.png")
	got, ok := out.(Captured)
	if !ok {
		t.Fatalf("expected Captured, got %#v", out)
	}
	if got.URI != "photos/p1.png" || got.Size != int64(len(pngBytes)) || got.ContentType != "image/png" {
		t.Fatalf("unexpected capture %+v", got)
	}
	info, err := store.Head(context.Background(), got.URI)
	if err != nil || info.Metadata["original-name"] != "slab.png" {
		t.Fatalf("unexpected stored info %+v %v", info, err)
	}
}

func TestCaptureCancellations(t *testing.T) {
	lib := New(blob.NewMemory(), WithMaxBytes(16))
	cases := []struct {
		name   string
		data   []byte
		reason string
	}{
		{"empty", nil, ReasonEmpty},
		{"text", []byte("hello"), ReasonUnsupportedType},
		{"too large", pngBytes, ReasonTooLarge},
	}
	for _, tc := range cases {
		out := lib.Capture(context.Background(), bytes.NewReader(tc.data), "x")
		c, ok := out.(Cancelled)
		if !ok || c.Reason != tc.reason {
			t.Fatalf("%s: expected %s, got %#v", tc.name, tc.reason, out)
		}
	}
}

func TestPick(t *testing.T) {
	dir := t.TempDir()
	lib := New(blob.NewMemory())
	if c, ok := lib.Pick(context.Background(), filepath.Join(dir, "missing.jpg")).(Cancelled); !ok || c.Reason != ReasonNotFound {
		t.Fatalf("expected not_found cancellation")
	}
	if c, ok := lib.Pick(context.Background(), dir).(Cancelled); !ok || c.Reason != ReasonUnsupportedType {
		t.Fatalf("expected directory to be rejected")
	}
	path := filepath.Join(dir, "beam.png")
	if err := os.WriteFile(path, pngBytes, 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	got, ok := lib.Pick(context.Background(), path).(Captured)
	if !ok || !strings.HasPrefix(got.URI, KeyPrefix) || !strings.HasSuffix(got.URI, ".png") {
		t.Fatalf("unexpected pick outcome %#v", got)
	}
}

func TestDeleteAndOrphans(t *testing.T) {
	ctx := context.Background()
	lib := New(blob.NewMemory(), WithIDGenerator(fixedIDs("a", "b")))
	a := lib.Capture(ctx, bytes.NewReader(pngBytes), "a").(Captured)
	b := lib.Capture(ctx, bytes.NewReader(pngBytes), "b").(Captured)

	orphans, err := lib.Orphans(ctx, map[string]bool{a.URI: true})
	if err != nil || len(orphans) != 1 || orphans[0].Key != b.URI {
		t.Fatalf("unexpected orphans %+v %v", orphans, err)
	}
	if err := lib.Delete(ctx, b.URI); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := lib.Delete(ctx, b.URI); err != nil {
		t.Fatalf("repeat delete should succeed: %v", err)
	}
	if err := lib.Delete(ctx, ""); err != nil {
		t.Fatalf("empty uri: %v", err)
	}
	if err := lib.Delete(ctx, "file:///etc/passwd"); err == nil {
		t.Fatalf("foreign uri must be refused")
	}
	if u, err := lib.URL(ctx, a.URI, 0); err != nil || u == "" {
		t.Fatalf("url: %q %v", u, err)
	}
	_, rc, err := lib.Open(ctx, a.URI)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = rc.Close()
	if _, _, err := lib.Open(ctx, b.URI); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
