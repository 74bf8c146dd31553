package core

import (
	"context"
	"fmt"

	"curetrack/internal/infra/persistence"
	"curetrack/internal/infra/persistence/kv"
	"curetrack/internal/infra/persistence/memory"
	"curetrack/internal/infra/persistence/postgres"
	"curetrack/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageKV       StorageDriver = "kv"       // one file per document on disk
)

// StorageConfig selects and configures the document backend.
type StorageConfig struct {
	Driver      StorageDriver `mapstructure:"driver"`
	SQLitePath  string        `mapstructure:"sqlite_path"`
	PostgresDSN string        `mapstructure:"postgres_dsn"`
	KVPath      string        `mapstructure:"kv_path"`
}

// DefaultKVPath is used when the kv driver has no path configured.
const DefaultKVPath = "curetrack-data"

// OpenSampleStore builds the sample store named by cfg.Driver, defaulting to
// sqlite. Callers Close the result to release database handles.
func OpenSampleStore(ctx context.Context, cfg StorageConfig) (*persistence.Documents, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return persistence.NewDocuments(memory.NewStore()), nil
	case StorageSQLite:
		st, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return persistence.NewDocuments(st), nil
	case StoragePostgres:
		st, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return persistence.NewDocuments(st), nil
	case StorageKV:
		path := cfg.KVPath
		if path == "" {
			path = DefaultKVPath
		}
		st, err := kv.NewStore(path)
		if err != nil {
			return nil, err
		}
		return persistence.NewDocuments(st), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
