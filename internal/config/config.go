package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Blob store backend and record identifiers
	Store StoreConfig `mapstructure:"store" json:"store"`

	// Passphrase key derivation
	KDF KDFConfig `mapstructure:"kdf" json:"kdf"`

	// Session lifecycle behavior
	Session SessionConfig `mapstructure:"session" json:"session"`

	// Logging
	Log LogConfig `mapstructure:"log" json:"log"`

	// Prometheus metrics
	Metrics MetricsConfig `mapstructure:"metrics" json:"metrics"`
}

// StoreConfig selects where encrypted blobs and the salt are persisted.
type StoreConfig struct {
	Backend   string `mapstructure:"backend" json:"backend"`     // memory, file, bolt, sqlite, s3, dynamodb
	Path      string `mapstructure:"path" json:"path"`           // file directory or database file
	Namespace string `mapstructure:"namespace" json:"namespace"` // prefix for every record id

	SaltID  string `mapstructure:"salt_id" json:"salt_id"`
	CoreID  string `mapstructure:"core_id" json:"core_id"`
	VaultID string `mapstructure:"vault_id" json:"vault_id"`

	S3Bucket    string `mapstructure:"s3_bucket" json:"s3_bucket,omitempty"`
	S3Prefix    string `mapstructure:"s3_prefix" json:"s3_prefix,omitempty"`
	DynamoTable string `mapstructure:"dynamodb_table" json:"dynamodb_table,omitempty"`
}

// KDFConfig controls passphrase key derivation.
type KDFConfig struct {
	Algorithm  string `mapstructure:"algorithm" json:"algorithm"` // pbkdf2, argon2id
	Iterations int    `mapstructure:"iterations" json:"iterations"`

	Argon2Time      uint32 `mapstructure:"argon2_time" json:"argon2_time"`
	Argon2MemoryKiB uint32 `mapstructure:"argon2_memory_kib" json:"argon2_memory_kib"`
	Argon2Threads   uint8  `mapstructure:"argon2_threads" json:"argon2_threads"`

	// Normalize applies Unicode NFC to the passphrase before derivation.
	Normalize bool `mapstructure:"normalize" json:"normalize"`

	// DomainSeparation derives a distinct key per store from the shared key.
	DomainSeparation bool `mapstructure:"domain_separation" json:"domain_separation"`
}

// SessionConfig for open/persist behavior.
type SessionConfig struct {
	Codec            string        `mapstructure:"codec" json:"codec"` // none, zstd, snappy
	MaxFailedUnlocks int           `mapstructure:"max_failed_unlocks" json:"max_failed_unlocks"`
	UnlockCooldown   time.Duration `mapstructure:"unlock_cooldown" json:"unlock_cooldown"`
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" json:"format"` // text, json
	File   string `mapstructure:"file" json:"file"`     // Log file path (empty = stderr)
}

// MetricsConfig for the prometheus registry.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" json:"enabled"`
	Namespace string `mapstructure:"namespace" json:"namespace"`
}

// Backend names.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendBolt     = "bolt"
	BackendSQLite   = "sqlite"
	BackendS3       = "s3"
	BackendDynamoDB = "dynamodb"
)

// DefaultIterations is the PBKDF2 iteration count used by the original store format.
const DefaultIterations = 310000

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := ".casevault"

	return &Config{
		Store: StoreConfig{
			Backend: BackendBolt,
			Path:    filepath.Join(dataDir, "store.db"),
			SaltID:  "kdf-salt",
			CoreID:  "db-core",
			VaultID: "db-vault",
		},
		KDF: KDFConfig{
			Algorithm:       "pbkdf2",
			Iterations:      DefaultIterations,
			Argon2Time:      3,
			Argon2MemoryKiB: 64 * 1024,
			Argon2Threads:   4,
		},
		Session: SessionConfig{
			Codec:          "none",
			UnlockCooldown: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Namespace: "casevault",
		},
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	validBackends := map[string]bool{
		BackendMemory: true, BackendFile: true, BackendBolt: true,
		BackendSQLite: true, BackendS3: true, BackendDynamoDB: true,
	}
	if c.Store.Backend == "" {
		return errors.New("store.backend is required")
	}
	if !validBackends[c.Store.Backend] {
		return fmt.Errorf("invalid store backend: %s", c.Store.Backend)
	}

	switch c.Store.Backend {
	case BackendFile, BackendBolt, BackendSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for backend %s", c.Store.Backend)
		}
	case BackendS3:
		if c.Store.S3Bucket == "" {
			return errors.New("store.s3_bucket is required for backend s3")
		}
	case BackendDynamoDB:
		if c.Store.DynamoTable == "" {
			return errors.New("store.dynamodb_table is required for backend dynamodb")
		}
	}

	if c.Store.SaltID == "" || c.Store.CoreID == "" || c.Store.VaultID == "" {
		return errors.New("store.salt_id, store.core_id and store.vault_id are required")
	}
	if c.Store.CoreID == c.Store.VaultID || c.Store.SaltID == c.Store.CoreID || c.Store.SaltID == c.Store.VaultID {
		return errors.New("store record ids must be distinct")
	}

	switch c.KDF.Algorithm {
	case "pbkdf2":
		if c.KDF.Iterations <= 0 {
			return errors.New("kdf.iterations must be positive")
		}
	case "argon2id":
		if c.KDF.Argon2Time == 0 || c.KDF.Argon2MemoryKiB == 0 || c.KDF.Argon2Threads == 0 {
			return errors.New("kdf.argon2 parameters must be positive")
		}
	default:
		return fmt.Errorf("invalid kdf algorithm: %s", c.KDF.Algorithm)
	}

	validCodecs := map[string]bool{"none": true, "zstd": true, "snappy": true}
	if !validCodecs[c.Session.Codec] {
		return fmt.Errorf("invalid session codec: %s", c.Session.Codec)
	}
	// A bootstrapped Core image encoded without compression already exceeds
	// the 400KB DynamoDB item limit.
	if c.Store.Backend == BackendDynamoDB && c.Session.Codec == "none" {
		return errors.New("session.codec must be zstd or snappy for backend dynamodb")
	}

	if c.Session.MaxFailedUnlocks < 0 {
		return errors.New("session.max_failed_unlocks must not be negative")
	}
	if c.Session.MaxFailedUnlocks > 0 && c.Session.UnlockCooldown <= 0 {
		return errors.New("session.unlock_cooldown must be positive when unlock throttling is enabled")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// EnsureDirectories creates the directories local backends write into.
func (c *Config) EnsureDirectories() error {
	var dirs []string

	switch c.Store.Backend {
	case BackendFile:
		dirs = append(dirs, c.Store.Path)
	case BackendBolt, BackendSQLite:
		dirs = append(dirs, filepath.Dir(c.Store.Path))
	}

	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
