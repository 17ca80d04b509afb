package config

import (
	"os"
	"strconv"
	"time"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Supported embedding providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderONNX   = "onnx"
	ProviderMock   = "mock"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}

	db := &cfg.Database
	if db.Driver == "" {
		db.Driver = DriverPostgres
	}
	if db.Host == "" {
		db.Host = "localhost"
	}
	if db.Port == 0 {
		db.Port = 5432
	}
	if db.User == "" {
		db.User = "postgres"
	}
	if db.Name == "" {
		db.Name = "semantic_search"
	}
	if db.SSLMode == "" {
		db.SSLMode = "disable"
	}
	if db.SQLitePath == "" {
		db.SQLitePath = ".semsearch/semsearch.db"
	}
	if db.MaxConns == 0 {
		db.MaxConns = 20
	}
	if db.ConnectTimeout == 0 {
		db.ConnectTimeout = 2 * time.Second
	}
	if db.StatementTimeout == 0 {
		db.StatementTimeout = 5 * time.Second
	}

	emb := &cfg.Embedding
	if emb.Provider == "" {
		emb.Provider = ProviderOpenAI
	}
	if emb.Model == "" {
		switch emb.Provider {
		case ProviderOpenAI:
			emb.Model = "text-embedding-3-small"
		case ProviderGemini:
			emb.Model = "text-embedding-004"
		}
	}
	if emb.APIKeyEnv == "" {
		switch emb.Provider {
		case ProviderOpenAI:
			emb.APIKeyEnv = "OPENAI_API_KEY"
		case ProviderGemini:
			emb.APIKeyEnv = "GEMINI_API_KEY"
		}
	}
	if emb.Dimensions == 0 {
		switch emb.Provider {
		case ProviderGemini:
			emb.Dimensions = 768
		case ProviderONNX:
			emb.Dimensions = 384
		default:
			emb.Dimensions = 1536
		}
	}
	if emb.MaxInputChars == 0 {
		emb.MaxInputChars = 8191
	}
	if emb.Timeout == 0 {
		emb.Timeout = 30 * time.Second
	}
	if emb.CacheSize == 0 {
		emb.CacheSize = 10000
	}
	if emb.MaxTokens == 0 {
		emb.MaxTokens = 256
	}

	if cfg.Search.DefaultThreshold == 0 {
		cfg.Search.DefaultThreshold = 0.7
	}
	if cfg.Search.DefaultMaxResults == 0 {
		cfg.Search.DefaultMaxResults = 10
	}
	if cfg.Search.MaxResultsLimit == 0 {
		cfg.Search.MaxResultsLimit = 100
	}
	// TransactionalWrites defaults to true when unset (nil).
	if cfg.Search.TransactionalWrites == nil {
		t := true
		cfg.Search.TransactionalWrites = &t
	}

	if cfg.MCP.ServerName == "" {
		cfg.MCP.ServerName = "semsearch"
	}
}

// ApplyEnv overrides cfg from the process environment. Unset or unparsable
// variables leave the existing value.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v, ok := envInt("DB_PORT"); ok {
		cfg.Database.Port = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v, ok := envInt("PORT"); ok {
		cfg.Server.Port = v
	}
	if v, err := strconv.ParseBool(os.Getenv("SEMSEARCH_DEBUG")); err == nil {
		cfg.Debug = v
	}
}

func envInt(key string) (int, bool) {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0, false
	}
	return v, true
}
