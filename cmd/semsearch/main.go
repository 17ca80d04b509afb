// Package main is the semsearch CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/apperr"
	"github.com/hyperjump/semsearch/internal/config"
	"github.com/hyperjump/semsearch/internal/embedding"
	"github.com/hyperjump/semsearch/internal/search"
	"github.com/hyperjump/semsearch/internal/storage"
	"github.com/hyperjump/semsearch/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/semsearch/config.yaml"

// stdout receives command output; tests replace it.
var stdout io.Writer = os.Stdout

type command func(ctx context.Context, args []string) error

var commands = map[string]command{
	"server":    runServer,
	"mcp":       runMCP,
	"setup":     runSetup,
	"search":    runSearch,
	"add":       runAdd,
	"get":       runGet,
	"update":    runUpdate,
	"list":      runList,
	"delete":    runDelete,
	"status":    runStatus,
	"seed":      runSeed,
	"import":    runImport,
	"reconcile": runReconcile,
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	name := os.Args[1]
	switch name {
	case "version", "--version", "-v":
		fmt.Printf("semsearch version %s\n", version)
		return
	case "help", "--help", "-h":
		printUsage()
		return
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Printf("Unknown command: %s\n", name)
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd(ctx, os.Args[2:])
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %s\n", name, describeError(err))
		os.Exit(1)
	}
}

// describeError renders err for the terminal: classified errors show their
// kind and message, anything else its full text.
func describeError(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return apperr.KindOf(err).String() + ": " + apperr.Message(err)
	}
	return err.Error()
}

// loadConfig loads config from path. When path is the default, a config.yaml in the
// current directory takes precedence (for development); when neither exists the
// built-in defaults plus environment overrides are used. Returns the config and
// the path actually loaded, empty for defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				cfg, err := config.Load(fallback)
				if err != nil {
					return nil, "", err
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			cfg, err := config.Default()
			return cfg, "", err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// components holds the services a command runs against.
type components struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    storage.Store
	embedder *embedding.Service
	orch     *search.Orchestrator
	cleanup  func()
}

// componentOptions selects what initializeComponents builds.
type componentOptions struct {
	// embedder builds the configured provider; commands that never embed skip it
	// so they work without provider credentials.
	embedder bool
	// ensureSchema creates the postgres schema before use.
	ensureSchema bool
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts componentOptions) (*components, error) {
	store, err := storage.Open(ctx, cfg.Database, cfg.Embedding.Dimensions, opts.ensureSchema, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c := &components{cfg: cfg, logger: logger, store: store, cleanup: func() {}}

	var embedder search.Embedder = unavailableEmbedder{}
	if opts.embedder {
		svc, cleanup, err := embedding.NewServiceFromConfig(ctx, cfg.Embedding, logger)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
		}
		c.embedder = svc
		c.cleanup = cleanup
		embedder = svc
		logger.Debug("embedding provider initialized",
			zap.String("provider", cfg.Embedding.Provider),
			zap.String("model", svc.Model()),
			zap.Int("dimensions", svc.Dimensions()))
	}

	c.orch = search.NewOrchestrator(store, embedder,
		search.WithLogger(logger),
		search.WithTransactionalWrites(cfg.Search.TransactionalWritesOrDefault()),
		search.WithMaxResultsLimit(cfg.Search.MaxResultsLimit),
	)
	return c, nil
}

func (c *components) Close() {
	if c.embedder != nil {
		if err := c.embedder.Close(); err != nil {
			c.logger.Warn("failed to close embedding provider", zap.Error(err))
		}
	}
	c.cleanup()
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.logger.Warn("failed to close store", zap.Error(err))
		}
	}
}

var errNoEmbedder = errors.New("embedding provider not initialized for this command")

// unavailableEmbedder stands in for the provider in commands that only read or delete.
type unavailableEmbedder struct{}

func (unavailableEmbedder) GenerateEmbedding(context.Context, string) (embedding.Result, error) {
	return embedding.Result{}, apperr.External("embed", errNoEmbedder)
}

func (unavailableEmbedder) GenerateDocumentEmbedding(context.Context, string, string) (embedding.Result, error) {
	return embedding.Result{}, apperr.External("embed", errNoEmbedder)
}

func (unavailableEmbedder) GenerateEmbeddingsBatch(context.Context, []string) ([]embedding.Result, error) {
	return nil, apperr.External("embed", errNoEmbedder)
}

// setup loads config and a logger and initializes components for a command.
// server and mcp use the long-running logger; everything else the quiet one.
func setup(ctx context.Context, configPath string, debug bool, longRunning bool, opts componentOptions) (*components, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Debug = cfg.Debug || debug

	newLogger := utils.NewCommandLogger
	if longRunning {
		newLogger = utils.NewLogger
	}
	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded",
		zap.String("config_path", resolved),
		zap.String("driver", cfg.Database.Driver),
		zap.String("provider", cfg.Embedding.Provider),
		zap.Bool("debug", cfg.Debug))

	c, err := initializeComponents(ctx, cfg, logger, opts)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return c, nil
}

func printUsage() {
	fmt.Println(`semsearch - Semantic search over documents with vector embeddings

Usage:
  semsearch server [flags]              Start the HTTP API (and optional MCP endpoint)
  semsearch mcp [flags]                 Serve the agent tools over stdio
  semsearch setup [flags]               Create the database schema and report vector support
  semsearch search [flags] <query>      Semantic search
  semsearch add [flags]                 Add a document (-title, -content or -file)
  semsearch get [flags] <id>            Show a document
  semsearch update [flags] <id>         Update a document's title, content or metadata
  semsearch list [flags]                List documents, newest first
  semsearch delete [flags] <id>         Delete a document and its embeddings
  semsearch status [flags]              Show database, index and storage status
  semsearch seed [flags]                Load the built-in sample documents
  semsearch import [flags] <glob...>    Import text files as documents (** supported)
  semsearch reconcile [flags]           Embed documents that have no embedding
  semsearch version                     Show version
  semsearch help                        Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/semsearch/config.yaml,
                     falling back to ./config.yaml, then built-in defaults and environment)
  --debug            Enable debug logging

Server Flags:
  --mcp              Mount the MCP streamable HTTP endpoint at /mcp (default from config)

Search Flags:
  --threshold float  Minimum similarity 0-1 (default from config, 0.7)
  --limit int        Maximum results (default from config, 10)
  --output string    Output format: text or json (also for get, list, status)

Add / Update Flags:
  --title string     Document title
  --content string   Document content
  --file string      Read content from a file
  --metadata string  Metadata as a JSON object

List Flags:
  --page int         Page number (default 1)
  --page-size int    Documents per page (default 10)

Import Flags:
  --exclude string   Comma-separated glob patterns to skip
  --dry-run          List matching files without importing

Reconcile Flags:
  --batch int        Documents embedded per provider call (default 32)

Environment:
  DATABASE_URL, DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, PORT,
  OPENAI_API_KEY / GEMINI_API_KEY (per embedding.api_key_env), SEMSEARCH_DEBUG

Examples:
  semsearch setup
  semsearch seed
  semsearch search "vector databases"
  semsearch search --threshold 0.5 --limit 3 --output json similarity search
  semsearch add --title "Notes" --file notes.md --metadata '{"tag":"personal"}'
  semsearch import "docs/**/*.md" --exclude "**/drafts/**"
  semsearch list --page 2
  semsearch reconcile`)
}
