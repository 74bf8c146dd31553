// Package persistence implements domain.SampleStore on top of a bucketed
// document backend. Each storage key holds one JSON document; concrete
// backends (memory, sqlite, postgres, kv) only move opaque payloads.
package persistence

import (
	"context"
	"fmt"

	"curetrack/pkg/domain"
)

// Buckets is the minimal contract a storage backend fulfils. Read returns
// (nil, nil) when the bucket has never been written.
type Buckets interface {
	Read(ctx context.Context, bucket string) ([]byte, error)
	Write(ctx context.Context, bucket string, payload []byte) error
	Remove(ctx context.Context, buckets ...string) error
}

// Compile-time contract assertion.
var _ domain.SampleStore = (*Documents)(nil)

// Documents stores the sample list and settings as two documents.
type Documents struct {
	backend Buckets
}

// NewDocuments wraps backend as a domain.SampleStore.
func NewDocuments(backend Buckets) *Documents {
	return &Documents{backend: backend}
}

// Backend returns the wrapped bucket store.
func (d *Documents) Backend() Buckets { return d.backend }

// LoadSamples decodes the sample document. A missing document is an empty list;
// a malformed one yields domain.ErrCorruptDocument.
func (d *Documents) LoadSamples(ctx context.Context) ([]domain.Sample, error) {
	payload, err := d.backend.Read(ctx, domain.StorageKeySamples)
	if err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}
	return domain.DecodeSamples(payload)
}

// SaveSamples replaces the sample document in full.
func (d *Documents) SaveSamples(ctx context.Context, samples []domain.Sample) error {
	payload, err := domain.EncodeSamples(samples)
	if err != nil {
		return err
	}
	if err := d.backend.Write(ctx, domain.StorageKeySamples, payload); err != nil {
		return fmt.Errorf("write samples: %w", err)
	}
	return nil
}

func (d *Documents) LoadSettings(ctx context.Context) (domain.Settings, error) {
	payload, err := d.backend.Read(ctx, domain.StorageKeySettings)
	if err != nil {
		return domain.DefaultSettings(), fmt.Errorf("read settings: %w", err)
	}
	return domain.DecodeSettings(payload)
}

func (d *Documents) SaveSettings(ctx context.Context, settings domain.Settings) error {
	payload, err := domain.EncodeSettings(settings)
	if err != nil {
		return err
	}
	if err := d.backend.Write(ctx, domain.StorageKeySettings, payload); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Clear removes both documents.
func (d *Documents) Clear(ctx context.Context) error {
	if err := d.backend.Remove(ctx, domain.StorageKeySamples, domain.StorageKeySettings); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}

// Close releases the backend when it holds resources.
func (d *Documents) Close() error {
	if c, ok := d.backend.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
