// Package config loads the traceability core's configuration from a YAML
// file, environment variables, and a .env file. Environment variables
// override the YAML file; a .env entry only fills in a variable that is not
// already set in the process environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DatabaseConfig controls the durable storage backend.
type DatabaseConfig struct {
	DSN             string `yaml:"dsn" env:"DATABASE_URL"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	WaitOnStartup   bool   `yaml:"wait_on_startup" env:"POSTGRES_WAIT_ON_STARTUP"`
	MigrationsPath  string `yaml:"migrations_path" env:"DATABASE_MIGRATIONS_PATH"`
}

// CacheConfig controls the optional Redis-backed read/write-through front.
type CacheConfig struct {
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
	TTLSecs  int    `yaml:"ttl_seconds" env:"CACHE_TTL_SECONDS"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// SecurityConfig controls at-rest encryption of private event metadata.
type SecurityConfig struct {
	// DataKeyEnv names the environment variable holding the server's data
	// key (hex or base64). Several *_SECRET_KEY variables may be present
	// (one per signing purpose); DataKeyEnv picks the one used for
	// metadata encryption.
	DataKeyEnv string `yaml:"data_key_env"`
}

// NetworkConfig describes one ledger network the indexer polls.
type NetworkConfig struct {
	Name              string   `yaml:"name"`
	ContractAddress   string   `yaml:"contract_address"`
	RPCEndpoints      []string `yaml:"rpc_endpoints"`
	PollIntervalSecs  int      `yaml:"poll_interval_seconds"`
	BatchSize         int      `yaml:"batch_size"`
	DefaultLookback   int64    `yaml:"default_lookback"`
}

// Config is the top-level configuration structure.
type Config struct {
	Database DatabaseConfig  `yaml:"database"`
	Cache    CacheConfig     `yaml:"cache"`
	Logging  LoggingConfig   `yaml:"logging"`
	Security SecurityConfig  `yaml:"security"`
	Networks []NetworkConfig `yaml:"networks"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Database: DatabaseConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Cache: CacheConfig{
			TTLSecs: 300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from CONFIG_FILE (or configs/config.yaml if
// present), then applies environment variable and .env overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	path := strings.TrimSpace(os.Getenv("CONFIG_FILE"))
	if path == "" {
		path = "configs/config.yaml"
	}
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}

	if err := envdecode.Decode(cfg); err != nil {
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	applyNetworkRPCOverrides(cfg)
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyNetworkRPCOverrides honors a per-network `<NETWORK>_RPC_URLS`
// environment variable (comma-separated), overriding the file-configured
// endpoint list for that network. Matches spec.md §6's "optional per-network
// RPC-endpoint overrides".
func applyNetworkRPCOverrides(cfg *Config) {
	for i := range cfg.Networks {
		envKey := strings.ToUpper(cfg.Networks[i].Name) + "_RPC_URLS"
		if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
			cfg.Networks[i].RPCEndpoints = strings.Split(v, ",")
		}
		contractKey := strings.ToUpper(cfg.Networks[i].Name) + "_IPCM_CONTRACT"
		if v := strings.TrimSpace(os.Getenv(contractKey)); v != "" {
			cfg.Networks[i].ContractAddress = v
		}
	}
}

// RequireSecretKey returns the encryption data key for private event
// metadata, read from SecurityConfig.DataKeyEnv's named environment
// variable. It is required in production; callers running in-memory-only
// test mode may fall back to a deterministic test key.
func (c *Config) RequireSecretKey() (string, error) {
	name := c.Security.DataKeyEnv
	if name == "" {
		name = "CORE_SECRET_KEY"
	}
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return v, nil
}
