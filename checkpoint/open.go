package checkpoint

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
)

// Defaults for Config fields left empty.
const (
	DefaultDir        = "checkpoints"
	DefaultNATSURL    = "nats://127.0.0.1:4222"
	DefaultBucket     = "TAXORANK_CHECKPOINTS"
	DefaultSQLitePath = "taxorank.db"
	DefaultRedisURL   = "redis://localhost:6379"
	DefaultKeyPrefix  = "taxorank:"
)

// Config selects and configures a checkpoint backend.
type Config struct {
	// Backend is one of file, nats, sqlite or redis.
	Backend string `yaml:"backend"`
	// Dir is the root directory of the file backend.
	Dir string `yaml:"dir"`
	// NATSURL is the NATS server of the nats backend.
	NATSURL string `yaml:"nats_url"`
	// NATSEmbedded runs an in-process NATS server instead of dialing NATSURL.
	NATSEmbedded bool `yaml:"nats_embedded"`
	// NATSStoreDir holds the embedded server's JetStream data.
	// Defaults to "<dir>/jetstream".
	NATSStoreDir string `yaml:"nats_store_dir"`
	// Bucket is the JetStream KV bucket of the nats backend.
	Bucket string `yaml:"bucket"`
	// SQLitePath is the database file of the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`
	// RedisURL is the server of the redis backend.
	RedisURL string `yaml:"redis_url"`
	// KeyPrefix namespaces redis keys.
	KeyPrefix string `yaml:"key_prefix"`
}

// DefaultConfig returns a file-backed configuration.
func DefaultConfig() Config {
	return Config{
		Backend:    BackendFile,
		Dir:        DefaultDir,
		NATSURL:    DefaultNATSURL,
		Bucket:     DefaultBucket,
		SQLitePath: DefaultSQLitePath,
		RedisURL:   DefaultRedisURL,
		KeyPrefix:  DefaultKeyPrefix,
	}
}

// Validate checks that the backend is known.
func (c Config) Validate() error {
	if !knownBackend(c.Backend) {
		return fmt.Errorf("checkpoint.backend must be one of %v, got %q", Backends, c.Backend)
	}
	return nil
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Backend == "" {
		c.Backend = d.Backend
	}
	if c.Dir == "" {
		c.Dir = d.Dir
	}
	if c.NATSURL == "" {
		c.NATSURL = d.NATSURL
	}
	if c.NATSStoreDir == "" {
		c.NATSStoreDir = filepath.Join(c.Dir, "jetstream")
	}
	if c.Bucket == "" {
		c.Bucket = d.Bucket
	}
	if c.SQLitePath == "" {
		c.SQLitePath = d.SQLitePath
	}
	if c.RedisURL == "" {
		c.RedisURL = d.RedisURL
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = d.KeyPrefix
	}
	return c
}

// Open connects the configured backend.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		store Store
		err   error
	)
	switch cfg.Backend {
	case BackendFile:
		store, err = NewFileStore(cfg.Dir)
	case BackendNATS:
		if cfg.NATSEmbedded {
			store, err = OpenEmbeddedNATS(ctx, cfg.NATSStoreDir, cfg.Bucket)
			break
		}
		store, err = ConnectNATS(ctx, cfg.NATSURL, cfg.Bucket)
	case BackendSQLite:
		store, err = OpenSQLite(ctx, cfg.SQLitePath)
	case BackendRedis:
		store, err = ConnectRedis(ctx, cfg.RedisURL, cfg.KeyPrefix)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s checkpoint store: %w", cfg.Backend, err)
	}

	logger.Debug("Checkpoint store opened", "backend", cfg.Backend, "embedded_nats", cfg.Backend == BackendNATS && cfg.NATSEmbedded)
	return store, nil
}
