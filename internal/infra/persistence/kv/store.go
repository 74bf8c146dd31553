// Package kv persists bucket documents as files in a diskv directory, one
// file per bucket.
package kv

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/peterbourgon/diskv/v3"

	"curetrack/internal/infra/persistence"
)

// Compile-time contract assertion.
var _ persistence.Buckets = (*Store)(nil)

// Store is a diskv-backed bucket store.
type Store struct {
	d        *diskv.Diskv
	basePath string
}

// NewStore opens the store rooted at basePath.
func NewStore(basePath string) (*Store, error) {
	if basePath == "" {
		return nil, errors.New("kv: base path required")
	}
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("kv: create base path: %w", err)
	}
	return &Store{
		d: diskv.New(diskv.Options{
			BasePath:     basePath,
			CacheSizeMax: 1024 * 1024, // 1MB
		}),
		basePath: basePath,
	}, nil
}

// BasePath returns the directory holding the bucket files.
func (s *Store) BasePath() string { return s.basePath }

func (s *Store) Read(_ context.Context, bucket string) ([]byte, error) {
	if !s.d.Has(bucket) {
		return nil, nil
	}
	val, err := s.d.Read(bucket)
	if err != nil {
		return nil, fmt.Errorf("kv read %s: %w", bucket, err)
	}
	return val, nil
}

func (s *Store) Write(_ context.Context, bucket string, payload []byte) error {
	if err := s.d.Write(bucket, payload); err != nil {
		return fmt.Errorf("kv write %s: %w", bucket, err)
	}
	return nil
}

func (s *Store) Remove(_ context.Context, buckets ...string) error {
	for _, bucket := range buckets {
		if !s.d.Has(bucket) {
			continue
		}
		if err := s.d.Erase(bucket); err != nil {
			return fmt.Errorf("kv erase %s: %w", bucket, err)
		}
	}
	return nil
}
