// Package config loads curetrack settings from .curetrack.yaml and CURETRACK_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"curetrack/internal/blob"
	"curetrack/internal/core"
)

// EnvPrefix namespaces environment overrides, e.g. CURETRACK_STORAGE_DRIVER.
const EnvPrefix = "CURETRACK"

// FileName is the config file name without extension.
const FileName = ".curetrack"

// DefaultDataDir holds every local artefact unless overridden.
const DefaultDataDir = "~/.curetrack"

// Config is the resolved application configuration.
type Config struct {
	DataDir   string             `mapstructure:"data_dir"`
	Location  string             `mapstructure:"location"`
	Storage   core.StorageConfig `mapstructure:"storage"`
	Blob      BlobConfig         `mapstructure:"blob"`
	Calendar  CalendarConfig     `mapstructure:"calendar"`
	Reminders RemindersConfig    `mapstructure:"reminders"`
	Log       LogConfig          `mapstructure:"log"`
	Server    ServerConfig       `mapstructure:"server"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// BlobConfig selects the photo store.
type BlobConfig struct {
	Driver blob.Driver   `mapstructure:"driver"`
	FSRoot string        `mapstructure:"fs_root"`
	S3     blob.S3Config `mapstructure:"s3"`
	// URLExpiry bounds links returned by "photo url".
	URLExpiry time.Duration `mapstructure:"url_expiry"`
}

// CalendarDriver selects the calendar provider.
type CalendarDriver string

const (
	CalendarSQLite CalendarDriver = "sqlite" // local calendar database (default)
	CalendarMemory CalendarDriver = "memory" // process memory, lost on exit
)

// CalendarConfig configures the calendar provider.
type CalendarConfig struct {
	Enabled bool           `mapstructure:"enabled"`
	Driver  CalendarDriver `mapstructure:"driver"`
	Path    string `mapstructure:"path"`
	// Permission simulates the device permission answer.
	Permission bool `mapstructure:"permission"`
}

// ReminderDriver selects where scheduled reminders live.
type ReminderDriver string

const (
	ReminderSpool  ReminderDriver = "spool"  // durable on-disk queue (default)
	ReminderMemory ReminderDriver = "memory" // in-process timers, lost on exit
)

// RemindersConfig configures the reminder scheduler.
type RemindersConfig struct {
	Driver    ReminderDriver `mapstructure:"driver"`
	SpoolPath string         `mapstructure:"spool_path"`
}

// LogConfig configures the zerolog logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig configures "serve".
type ServerConfig struct {
	Addr             string        `mapstructure:"addr"`
	DispatchInterval time.Duration `mapstructure:"dispatch_interval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir)
	v.SetDefault("location", "Local")
	v.SetDefault("storage.driver", string(core.StorageSQLite))
	v.SetDefault("storage.sqlite_path", "")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.kv_path", "")
	v.SetDefault("blob.driver", string(blob.DriverFilesystem))
	v.SetDefault("blob.fs_root", "")
	v.SetDefault("blob.url_expiry", "15m")
	v.SetDefault("blob.s3.region", "")
	v.SetDefault("blob.s3.bucket", "")
	v.SetDefault("blob.s3.endpoint", "")
	v.SetDefault("blob.s3.access_key_id", "")
	v.SetDefault("blob.s3.secret_access_key", "")
	v.SetDefault("blob.s3.session_token", "")
	v.SetDefault("blob.s3.path_style", false)
	v.SetDefault("calendar.enabled", true)
	v.SetDefault("calendar.driver", string(CalendarSQLite))
	v.SetDefault("calendar.path", "")
	v.SetDefault("calendar.permission", true)
	v.SetDefault("reminders.driver", string(ReminderSpool))
	v.SetDefault("reminders.spool_path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.dispatch_interval", "30s")
}

// Load reads configuration. An explicit file must exist; otherwise
// .curetrack.yaml is looked up in CURETRACK_CONFIG_PATH, the working
// directory and the home directory, and its absence is not an error.
func Load(v *viper.Viper, explicit string) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicit != "" {
		path, err := homedir.Expand(explicit)
		if err != nil {
			return Config{}, err
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(FileName)
		if override := os.Getenv(EnvPrefix + "_CONFIG_PATH"); override != "" {
			v.AddConfigPath(override)
		}
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.resolve(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// resolve expands ~ and fills paths derived from DataDir.
func (c *Config) resolve() error {
	dir, err := homedir.Expand(c.DataDir)
	if err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	c.DataDir = dir
	paths := []struct {
		target *string
		def    string
	}{
		{&c.Storage.SQLitePath, "curetrack.db"},
		{&c.Storage.KVPath, "documents"},
		{&c.Blob.FSRoot, "photos"},
		{&c.Calendar.Path, "calendar.db"},
		{&c.Reminders.SpoolPath, "spool"},
	}
	for _, p := range paths {
		if *p.target == "" {
			*p.target = filepath.Join(dir, p.def)
			continue
		}
		expanded, err := homedir.Expand(*p.target)
		if err != nil {
			return err
		}
		*p.target = expanded
	}
	if _, err := c.TimeLocation(); err != nil {
		return err
	}
	switch c.Calendar.Driver {
	case CalendarSQLite, CalendarMemory:
	default:
		return fmt.Errorf("calendar.driver %q: want sqlite or memory", c.Calendar.Driver)
	}
	switch c.Reminders.Driver {
	case ReminderSpool, ReminderMemory:
	default:
		return fmt.Errorf("reminders.driver %q: want spool or memory", c.Reminders.Driver)
	}
	if c.Server.DispatchInterval <= 0 {
		return fmt.Errorf("server.dispatch_interval must be positive")
	}
	return nil
}

// TimeLocation resolves Location. "Local" and "" mean the process zone.
func (c Config) TimeLocation() (*time.Location, error) {
	if c.Location == "" || strings.EqualFold(c.Location, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, fmt.Errorf("location %q: %w", c.Location, err)
	}
	return loc, nil
}

// EnsureDirs creates the data directory and the parents of file-backed paths.
func (c Config) EnsureDirs() error {
	dirs := []string{c.DataDir}
	if c.Calendar.Driver != CalendarMemory {
		dirs = append(dirs, filepath.Dir(c.Calendar.Path))
	}
	switch c.Storage.Driver {
	case core.StorageSQLite, "":
		dirs = append(dirs, filepath.Dir(c.Storage.SQLitePath))
	case core.StorageKV:
		dirs = append(dirs, c.Storage.KVPath)
	}
	if c.Blob.Driver == blob.DriverFilesystem || c.Blob.Driver == "" {
		dirs = append(dirs, c.Blob.FSRoot)
	}
	if c.Reminders.Driver != ReminderMemory {
		dirs = append(dirs, c.Reminders.SpoolPath)
	}
	for _, d := range dirs {
		if d == "" {
			continue
		}
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}
