// Package media stores sample photos in a blob store and reports the result
// of a capture or pick as a tagged Outcome.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"curetrack/internal/blob"
	"curetrack/internal/logging"
)

// Cancellation reasons.
const (
	ReasonEmpty            = "empty"
	ReasonNotFound         = "not_found"
	ReasonPermissionDenied = "permission_denied"
	ReasonUnsupportedType  = "unsupported_type"
	ReasonTooLarge         = "too_large"
	ReasonStorage          = "storage_error"
)

// KeyPrefix namespaces photo keys inside the blob store.
const KeyPrefix = "photos/"

// DefaultMaxBytes caps a single photo.
const DefaultMaxBytes = 20 << 20

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Outcome is either Cancelled or Captured.
type Outcome interface {
	outcome()
}

// Cancelled reports that no photo was stored.
type Cancelled struct {
	Reason string
	Err    error
}

// Captured reports a stored photo.
type Captured struct {
	URI         string
	Size        int64
	ContentType string
}

func (Cancelled) outcome() {}
func (Captured) outcome()  {}

// Library owns photo blobs.
type Library struct {
	store    blob.Store
	logger   logging.Logger
	maxBytes int64
	newID    func() string
}

// Option configures a Library.
type Option func(*Library)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(lib *Library) { lib.logger = logging.OrNoop(l) }
}

// WithMaxBytes overrides the per-photo size cap.
func WithMaxBytes(n int64) Option {
	return func(lib *Library) {
		if n > 0 {
			lib.maxBytes = n
		}
	}
}

// WithIDGenerator overrides the key generator.
func WithIDGenerator(fn func() string) Option {
	return func(lib *Library) {
		if fn != nil {
			lib.newID = fn
		}
	}
}

// New returns a library over store.
func New(store blob.Store, opts ...Option) *Library {
	lib := &Library{store: store, logger: logging.Noop(), maxBytes: DefaultMaxBytes, newID: uuid.NewString}
	for _, opt := range opts {
		opt(lib)
	}
	return lib
}

// Store returns the backing blob store.
func (l *Library) Store() blob.Store { return l.store }

// Capture stores the image read from r. name is kept as metadata only.
func (l *Library) Capture(ctx context.Context, r io.Reader, name string) Outcome {
	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return Cancelled{Reason: ReasonStorage, Err: fmt.Errorf("read photo: %w", err)}
	}
	if len(data) == 0 {
		return Cancelled{Reason: ReasonEmpty}
	}
	if int64(len(data)) > l.maxBytes {
		return Cancelled{Reason: ReasonTooLarge}
	}
	contentType := http.DetectContentType(data)
	ext, ok := extensions[contentType]
	if !ok {
		return Cancelled{Reason: ReasonUnsupportedType, Err: fmt.Errorf("content type %s", contentType)}
	}
	key := KeyPrefix + l.newID() + ext
	info, err := l.store.Put(ctx, key, bytes.NewReader(data), blob.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"original-name": path.Base(filepath.ToSlash(name)),
			"captured-at":   time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		l.logger.Error("photo store failed", "key", key, "err", err)
		return Cancelled{Reason: ReasonStorage, Err: err}
	}
	return Captured{URI: info.Key, Size: info.Size, ContentType: contentType}
}

// Pick imports an existing image file.
func (l *Library) Pick(ctx context.Context, filePath string) Outcome {
	f, err := os.Open(filePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Cancelled{Reason: ReasonNotFound, Err: err}
	case errors.Is(err, fs.ErrPermission):
		return Cancelled{Reason: ReasonPermissionDenied, Err: err}
	case err != nil:
		return Cancelled{Reason: ReasonStorage, Err: err}
	}
	defer func() { _ = f.Close() }()
	if st, err := f.Stat(); err == nil && st.IsDir() {
		return Cancelled{Reason: ReasonUnsupportedType, Err: fmt.Errorf("%s is a directory", filePath)}
	}
	return l.Capture(ctx, f, filePath)
}

// Delete releases the photo at uri. Deleting an unknown photo succeeds.
func (l *Library) Delete(ctx context.Context, uri string) error {
	if uri == "" {
		return nil
	}
	if !strings.HasPrefix(uri, KeyPrefix) {
		return fmt.Errorf("photo %s is not owned by this library", uri)
	}
	if _, err := l.store.Delete(ctx, uri); err != nil {
		return fmt.Errorf("delete photo %s: %w", uri, err)
	}
	return nil
}

// URL returns a time-limited link to the photo.
func (l *Library) URL(ctx context.Context, uri string, expiry time.Duration) (string, error) {
	return l.store.PresignURL(ctx, uri, blob.SignedURLOptions{Method: http.MethodGet, Expiry: expiry})
}

// Open streams the photo contents.
func (l *Library) Open(ctx context.Context, uri string) (blob.Info, io.ReadCloser, error) {
	return l.store.Get(ctx, uri)
}

// Orphans lists stored photos that no known URI references.
func (l *Library) Orphans(ctx context.Context, referenced map[string]bool) ([]blob.Info, error) {
	all, err := l.store.List(ctx, KeyPrefix)
	if err != nil {
		return nil, err
	}
	var out []blob.Info
	for _, info := range all {
		if !referenced[info.Key] {
			out = append(out, info)
		}
	}
	return out, nil
}
