// Package config provides configuration loading and structs for the semsearch server.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	MCP       MCPConfig       `yaml:"mcp"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port for the listener.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// DatabaseConfig selects and configures the document and embedding store.
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"`
	DSN              string        `yaml:"dsn,omitempty"`
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	User             string        `yaml:"user"`
	Password         string        `yaml:"password,omitempty"`
	Name             string        `yaml:"name"`
	SSLMode          string        `yaml:"sslmode"`
	SQLitePath       string        `yaml:"sqlite_path"`
	MaxConns         int           `yaml:"max_conns"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ConnString returns DSN when set, otherwise builds a postgres URL from the parts.
func (d DatabaseConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Name,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else if d.User != "" {
		u.User = url.User(d.User)
	}
	q := url.Values{}
	if d.SSLMode != "" {
		q.Set("sslmode", d.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider      string        `yaml:"provider"`
	Model         string        `yaml:"model"`
	BaseURL       string        `yaml:"base_url,omitempty"`
	APIKeyEnv     string        `yaml:"api_key_env"`
	Dimensions    int           `yaml:"dimensions"`
	MaxInputChars int           `yaml:"max_input_chars"`
	Timeout       time.Duration `yaml:"timeout"`
	CacheSize     int           `yaml:"cache_size"`
	DiskCachePath string        `yaml:"disk_cache_path,omitempty"`
	ModelPath     string        `yaml:"model_path,omitempty"`
	MaxTokens     int           `yaml:"max_tokens"`
}

// APIKey reads the provider key from the configured environment variable.
func (e EmbeddingConfig) APIKey() string {
	if e.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(e.APIKeyEnv)
}

// SearchConfig holds search defaults and write policy.
type SearchConfig struct {
	DefaultThreshold    float64 `yaml:"default_threshold"`
	DefaultMaxResults   int     `yaml:"default_max_results"`
	MaxResultsLimit     int     `yaml:"max_results_limit"`
	TransactionalWrites *bool   `yaml:"transactional_writes"`
}

// TransactionalWritesOrDefault returns whether document and embedding writes
// share a transaction; defaults to true when unset.
func (s *SearchConfig) TransactionalWritesOrDefault() bool {
	if s.TransactionalWrites != nil {
		return *s.TransactionalWrites
	}
	return true
}

// MCPConfig holds agent tool server settings.
type MCPConfig struct {
	HTTPEnabled bool   `yaml:"http_enabled"`
	ServerName  string `yaml:"server_name"`
}

// Load reads and parses the config file at path, applies defaults and
// environment overrides, expands paths and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return finish(&cfg, filepath.Dir(path))
}

// Default returns the default configuration with environment overrides applied.
// Relative paths resolve against the current directory.
func Default() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return finish(&Config{}, cwd)
}

func finish(cfg *Config, configDir string) (*Config, error) {
	ApplyDefaults(cfg)
	ApplyEnv(cfg)

	cfg.Database.SQLitePath = expandPath(cfg.Database.SQLitePath, configDir)
	if cfg.Embedding.DiskCachePath != "" {
		cfg.Embedding.DiskCachePath = expandPath(cfg.Embedding.DiskCachePath, configDir)
	}
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("invalid config: unknown database driver %q", c.Database.Driver)
	}
	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderGemini, ProviderONNX, ProviderMock:
	default:
		return fmt.Errorf("invalid config: unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("invalid config: embedding dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.Provider == ProviderONNX && c.Embedding.ModelPath == "" {
		return fmt.Errorf("invalid config: embedding.model_path is required for the onnx provider")
	}
	if c.Search.DefaultThreshold < 0 || c.Search.DefaultThreshold > 1 {
		return fmt.Errorf("invalid config: search.default_threshold must be between 0 and 1")
	}
	if c.Search.MaxResultsLimit < 1 || c.Search.MaxResultsLimit > 100 {
		return fmt.Errorf("invalid config: search.max_results_limit must be between 1 and 100")
	}
	if c.Search.DefaultMaxResults < 1 || c.Search.DefaultMaxResults > c.Search.MaxResultsLimit {
		return fmt.Errorf("invalid config: search.default_max_results must be between 1 and %d", c.Search.MaxResultsLimit)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d out of range", c.Server.Port)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
