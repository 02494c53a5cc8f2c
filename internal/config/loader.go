package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. CASEVAULT_LOG_LEVEL.
const EnvPrefix = "CASEVAULT"

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	v          *viper.Viper
}

// NewLoader creates a config loader. An empty path searches the default locations.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		v:          viper.New(),
	}
}

// Load reads configuration from defaults, an optional file and the environment.
func (l *Loader) Load() (*Config, error) {
	v := l.v
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if l.configPath != "" {
		v.SetConfigFile(l.configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	} else {
		v.SetConfigName("casevault")
		for _, dir := range defaultDirs() {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("load config file %s: %w", v.ConfigFileUsed(), err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ConfigFileUsed returns the file the last Load read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// defaultDirs returns the directories searched for casevault.{yaml,json,toml}.
func defaultDirs() []string {
	dirs := []string{"."}

	if homeDir, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs,
			filepath.Join(homeDir, ".config", "casevault"),
			filepath.Join(homeDir, ".casevault"),
		)
	}

	return dirs
}

// setDefaults registers every key so environment overrides reach Unmarshal.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("store.backend", cfg.Store.Backend)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("store.namespace", cfg.Store.Namespace)
	v.SetDefault("store.salt_id", cfg.Store.SaltID)
	v.SetDefault("store.core_id", cfg.Store.CoreID)
	v.SetDefault("store.vault_id", cfg.Store.VaultID)
	v.SetDefault("store.s3_bucket", cfg.Store.S3Bucket)
	v.SetDefault("store.s3_prefix", cfg.Store.S3Prefix)
	v.SetDefault("store.dynamodb_table", cfg.Store.DynamoTable)

	v.SetDefault("kdf.algorithm", cfg.KDF.Algorithm)
	v.SetDefault("kdf.iterations", cfg.KDF.Iterations)
	v.SetDefault("kdf.argon2_time", cfg.KDF.Argon2Time)
	v.SetDefault("kdf.argon2_memory_kib", cfg.KDF.Argon2MemoryKiB)
	v.SetDefault("kdf.argon2_threads", cfg.KDF.Argon2Threads)
	v.SetDefault("kdf.normalize", cfg.KDF.Normalize)
	v.SetDefault("kdf.domain_separation", cfg.KDF.DomainSeparation)

	v.SetDefault("session.codec", cfg.Session.Codec)
	v.SetDefault("session.max_failed_unlocks", cfg.Session.MaxFailedUnlocks)
	v.SetDefault("session.unlock_cooldown", cfg.Session.UnlockCooldown)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.file", cfg.Log.File)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.namespace", cfg.Metrics.Namespace)
}

// SaveExample writes the default configuration to path. The format follows
// the file extension (yaml, json or toml).
func SaveExample(path string) error {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return os.Chmod(path, 0600)
}
