package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/semsearch/internal/apperr"
	"github.com/hyperjump/semsearch/internal/cli"
	"github.com/hyperjump/semsearch/internal/config"
	"github.com/hyperjump/semsearch/internal/models"
	"github.com/hyperjump/semsearch/internal/search"
	"github.com/hyperjump/semsearch/internal/server"
	"github.com/hyperjump/semsearch/internal/storage"
	"github.com/hyperjump/semsearch/internal/tools"
)

// commonFlags registers -config and -debug on fs.
func commonFlags(fs *flag.FlagSet) (configPath *string, debug *bool) {
	configPath = fs.String("config", defaultConfigPath, "config file path")
	debug = fs.Bool("debug", false, "enable debug logging")
	return configPath, debug
}

// reorderArgs moves any flags (and their values) that appear after positional
// arguments to the front so that flag.Parse sees them. Go's flag package stops
// at the first non-flag argument, so "semsearch get 3 -output json" would
// otherwise leave -output unparsed.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// joinQuery joins positional args with spaces so multi-word queries work the
// same with or without shell quoting.
func joinQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func parseIDArg(fs *flag.FlagSet) (int64, error) {
	if fs.NArg() < 1 {
		return 0, fmt.Errorf("usage: semsearch %s [flags] <id>", fs.Name())
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.Validation(fs.Name(), "Document ID must be a positive integer")
	}
	return id, nil
}

func parseMetadata(raw string) (models.Metadata, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var m models.Metadata
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, apperr.Validation("metadata", "metadata must be a JSON object: %s", err.Error())
	}
	return m, nil
}

func readContent(content, file string) (string, error) {
	if file == "" {
		return content, nil
	}
	if content != "" {
		return "", apperr.Validation("content", "use either -content or -file, not both")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read content file: %w", err)
	}
	return string(data), nil
}

// reportPartial prints the saved document of a partial write so the user can
// repair it with reconcile.
func reportPartial(err error) {
	var pw *search.PartialWriteError
	if errors.As(err, &pw) && pw.Document != nil {
		fmt.Fprintf(os.Stderr, "Document %d was saved without an embedding; run \"semsearch reconcile\" to repair.\n", pw.Document.ID)
	}
}

func runServer(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	enableMCP := fs.Bool("mcp", false, "mount the MCP streamable HTTP endpoint at /mcp")
	_ = fs.Parse(args)

	c, err := setup(ctx, *configPath, *debug, true, componentOptions{embedder: true})
	if err != nil {
		return err
	}
	defer c.Close()
	defer c.logger.Sync()

	if !c.store.HasVectorIndexSupport(ctx) {
		c.logger.Warn("vector index support not available; similarity search falls back to a full scan",
			zap.String("driver", c.cfg.Database.Driver))
	}

	var opts []server.Option
	if *enableMCP || c.cfg.MCP.HTTPEnabled {
		mcpServer := tools.NewMCPServer(newToolRegistry(c), c.cfg.MCP.ServerName, server.Version, c.logger)
		opts = append(opts, server.WithMCPHandler(tools.HTTPHandler(mcpServer)))
	}
	srv := server.NewServer(c.orch, c.cfg, c.logger, opts...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	c.logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func newToolRegistry(c *components) *tools.Registry {
	return tools.NewDocumentTools(c.orch, tools.SearchDefaults{
		Threshold:  c.cfg.Search.DefaultThreshold,
		MaxResults: c.cfg.Search.DefaultMaxResults,
	})
}

func runMCP(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	_ = fs.Parse(args)

	c, err := setup(ctx, *configPath, *debug, true, componentOptions{embedder: true})
	if err != nil {
		return err
	}
	defer c.Close()
	defer c.logger.Sync()

	mcpServer := tools.NewMCPServer(newToolRegistry(c), c.cfg.MCP.ServerName, server.Version, c.logger)
	c.logger.Info("serving MCP tools over stdio", zap.String("name", c.cfg.MCP.ServerName))
	if err := tools.ServeStdio(ctx, mcpServer); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runSetup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("setup", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	_ = fs.Parse(args)

	c, err := setup(ctx, *configPath, *debug, false, componentOptions{ensureSchema: true})
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Fprintf(stdout, "Schema ready (driver %s, %d dimensions)\n", c.cfg.Database.Driver, c.cfg.Embedding.Dimensions)
	if c.store.HasVectorIndexSupport(ctx) {
		fmt.Fprintln(stdout, "Vector index support: available")
	} else {
		fmt.Fprintln(stdout, "Vector index support: not available (similarity search will scan all embeddings)")
	}
	return nil
}

func runSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	threshold := fs.Float64("threshold", -1, "minimum similarity 0-1 (default from config)")
	limit := fs.Int("limit", 0, "maximum results (default from config)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(args))

	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}
	query := joinQuery(fs.Args())
	if query == "" {
		return errors.New("usage: semsearch search [flags] <query>")
	}

	c, err := setup(ctx, *configPath, *debug, false, componentOptions{embedder: true})
	if err != nil {
		return err
	}
	defer c.Close()

	q := models.SearchQuery{
		Query:      query,
		Threshold:  c.cfg.Search.DefaultThreshold,
		MaxResults: c.cfg.Search.DefaultMaxResults,
	}
	if *threshold >= 0 {
		q.Threshold = *threshold
	}
	if *limit != 0 {
		q.MaxResults = *limit
	}
	resp, err := c.orch.Search(ctx, q)
	if err != nil {
		return err
	}
	return cli.WriteSearchResults(stdout, resp, format)
}

func runAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	title := fs.String("title", "", "document title")
	content := fs.String("content", "", "document content")
	file := fs.String("file", "", "read content from file")
	metadata := fs.String("metadata", "", "metadata as a JSON object")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}
	text, err := readContent(*content, *file)
	if err != nil {
		return err
	}
	meta, err := parseMetadata(*metadata)
	if err != nil {
		return err
	}
	input := models.DocumentInput{Title: *title, Content: text, Metadata: meta}
	if err := input.Validate(); err != nil {
		return err
	}

	c, err := setup(ctx, *configPath, *debug, false, componentOptions{embedder: true})
	if err != nil {
		return err
	}
	defer c.Close()

	doc, err := c.orch.AddDocumentWithEmbedding(ctx, input.Title, input.Content, input.Metadata)
	if err != nil {
		reportPartial(err)
		return err
	}
	if format == cli.OutputJSON {
		return cli.WriteJSON(stdout, doc)
	}
	fmt.Fprintf(stdout, "Document created: %d\n", doc.ID)
	return nil
}

func runGet(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(args))

	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}
	id, err := parseIDArg(fs)
	if err != nil {
		return err
	}

	c, err := setup(ctx, *configPath, *debug, false, componentOptions{})
	if err != nil {
		return err
	}
	defer c.Close()

	doc, err := c.orch.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	return cli.WriteDocument(stdout, doc, format)
}

func runUpdate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	title := fs.String("title", "", "new title")
	content := fs.String("content", "", "new content")
	file := fs.String("file", "", "read new content from file")
	metadata := fs.String("metadata", "", "replacement metadata as a JSON object")
	_ = fs.Parse(reorderArgs(args))

	id, err := parseIDArg(fs)
	if err != nil {
		return err
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	var patch models.DocumentPatch
	if set["title"] {
		patch.Title = title
	}
	if set["content"] || set["file"] {
		text, err := readContent(*content, *file)
		if err != nil {
			return err
		}
		patch.Content = &text
	}
	if set["metadata"] {
		meta, err := parseMetadata(*metadata)
		if err != nil {
			return err
		}
		if meta == nil {
			meta = models.Metadata{}
		}
		patch.Metadata = &meta
	}
	if patch.IsEmpty() {
		return apperr.Validation("update", "At least one field (title, content, or metadata) must be provided for update")
	}

	// Only text changes need the provider.
	c, err := setup(ctx, *configPath, *debug, false, componentOptions{embedder: patch.TouchesText()})
	if err != nil {
		return err
	}
	defer c.Close()

	doc, err := c.orch.UpdateDocumentWithEmbedding(ctx, id, patch)
	if err != nil {
		reportPartial(err)
		return err
	}
	fmt.Fprintf(stdout, "Document updated: %d\n", doc.ID)
	return nil
}

func runList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	page := fs.Int("page", 1, "page number")
	pageSize := fs.Int("page-size", models.DefaultPageSize, "documents per page")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}

	c, err := setup(ctx, *configPath, *debug, false, componentOptions{})
	if err != nil {
		return err
	}
	defer c.Close()

	result, err := c.orch.ListDocuments(ctx, *page, *pageSize)
	if err != nil {
		return err
	}
	return cli.WritePage(stdout, result, format)
}

func runDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	_ = fs.Parse(reorderArgs(args))

	id, err := parseIDArg(fs)
	if err != nil {
		return err
	}

	c, err := setup(ctx, *configPath, *debug, false, componentOptions{})
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.orch.DeleteDocument(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Document deleted: %d\n", id)
	return nil
}

// statusConfigResponse holds configuration info returned by status.
type statusConfigResponse struct {
	Driver              string `json:"driver"`
	Provider            string `json:"provider"`
	Model               string `json:"model,omitempty"`
	EmbeddingDimensions int    `json:"embedding_dimensions"`
	TransactionalWrites bool   `json:"transactional_writes"`
	SQLitePath          string `json:"sqlite_path,omitempty"`
	DiskCachePath       string `json:"disk_cache_path,omitempty"`
}

// statusResponse is the output of the status command.
type statusResponse struct {
	*search.Status
	DiskUsageBytes *int64                `json:"disk_usage_bytes,omitempty"`
	Config         *statusConfigResponse `json:"config"`
}

func buildStatus(ctx context.Context, c *components) (*statusResponse, error) {
	st, err := c.orch.Status(ctx)
	if err != nil {
		return nil, err
	}
	cfg := c.cfg
	out := &statusResponse{
		Status: st,
		Config: &statusConfigResponse{
			Driver:              cfg.Database.Driver,
			Provider:            cfg.Embedding.Provider,
			Model:               cfg.Embedding.Model,
			EmbeddingDimensions: cfg.Embedding.Dimensions,
			TransactionalWrites: cfg.Search.TransactionalWritesOrDefault(),
			DiskCachePath:       cfg.Embedding.DiskCachePath,
		},
	}
	var paths []string
	if cfg.Database.Driver == config.DriverSQLite {
		out.Config.SQLitePath = cfg.Database.SQLitePath
		paths = append(paths, storage.SQLiteFiles(cfg.Database.SQLitePath)...)
	}
	if cfg.Embedding.DiskCachePath != "" {
		paths = append(paths, cfg.Embedding.DiskCachePath)
	}
	if len(paths) > 0 {
		if n, err := storage.DiskUsageBytes(paths...); err == nil {
			out.DiskUsageBytes = &n
		}
	}
	return out, nil
}

func runStatus(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)

	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}

	c, err := setup(ctx, *configPath, *debug, false, componentOptions{})
	if err != nil {
		return err
	}
	defer c.Close()

	status, err := buildStatus(ctx, c)
	if err != nil {
		return err
	}
	if format == cli.OutputJSON {
		return cli.WriteJSON(stdout, status)
	}
	fmt.Fprintf(stdout, "database:             %s\n", status.Database)
	fmt.Fprintf(stdout, "documents:            %d\n", status.Documents)
	fmt.Fprintf(stdout, "vector_index_support: %t\n", status.VectorIndexSupport)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(stdout, "disk_usage_bytes:     %d   # database files + embedding cache\n", *status.DiskUsageBytes)
	}
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "# configuration")
	fmt.Fprintf(stdout, "driver:               %s\n", status.Config.Driver)
	fmt.Fprintf(stdout, "provider:             %s\n", status.Config.Provider)
	if status.Config.Model != "" {
		fmt.Fprintf(stdout, "model:                %s\n", status.Config.Model)
	}
	fmt.Fprintf(stdout, "embedding_dims:       %d\n", status.Config.EmbeddingDimensions)
	fmt.Fprintf(stdout, "transactional_writes: %t\n", status.Config.TransactionalWrites)
	if status.Config.SQLitePath != "" {
		fmt.Fprintf(stdout, "sqlite_path:          %s\n", status.Config.SQLitePath)
	}
	if status.Config.DiskCachePath != "" {
		fmt.Fprintf(stdout, "disk_cache_path:      %s\n", status.Config.DiskCachePath)
	}
	return nil
}

// addAll writes inputs one by one with a progress bar. Failures are logged and
// counted; a partial write still counts as added since the document exists.
func addAll(ctx context.Context, c *components, inputs []models.DocumentInput, description string) (added, failed int) {
	bar := cli.NewProgress(len(inputs), description)
	for _, in := range inputs {
		if ctx.Err() != nil {
			break
		}
		_, err := c.orch.AddDocumentWithEmbedding(ctx, in.Title, in.Content, in.Metadata)
		var pw *search.PartialWriteError
		switch {
		case err == nil:
			added++
		case errors.As(err, &pw):
			added++
			c.logger.Warn("document saved without embedding", zap.String("title", in.Title), zap.Error(err))
		default:
			failed++
			c.logger.Warn("failed to add document", zap.String("title", in.Title), zap.Error(err))
		}
		bar.Add()
	}
	bar.Finish()
	return added, failed
}

func runSeed(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	_ = fs.Parse(args)

	c, err := setup(ctx, *configPath, *debug, false, componentOptions{embedder: true})
	if err != nil {
		return err
	}
	defer c.Close()

	added, failed := addAll(ctx, c, cli.SampleDocuments(), "Seeding")
	fmt.Fprintf(stdout, "Seeded %d document(s)\n", added)
	if failed > 0 {
		return fmt.Errorf("%d sample document(s) failed", failed)
	}
	return ctx.Err()
}

func runImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	exclude := fs.String("exclude", "", "comma-separated glob patterns to skip")
	dryRun := fs.Bool("dry-run", false, "list matching files without importing")
	_ = fs.Parse(reorderArgs(args))

	if fs.NArg() < 1 {
		return errors.New("usage: semsearch import [flags] <glob...>")
	}
	var excludes []string
	for _, p := range strings.Split(*exclude, ",") {
		if p = strings.TrimSpace(p); p != "" {
			excludes = append(excludes, p)
		}
	}
	files, err := cli.CollectFiles(fs.Args(), excludes)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(stdout, "No files matched")
		return nil
	}
	if *dryRun {
		for _, f := range files {
			fmt.Fprintln(stdout, f)
		}
		return nil
	}

	c, err := setup(ctx, *configPath, *debug, false, componentOptions{embedder: true})
	if err != nil {
		return err
	}
	defer c.Close()

	inputs := make([]models.DocumentInput, 0, len(files))
	skipped := 0
	for _, f := range files {
		in, err := cli.ReadDocument(f)
		if err != nil {
			skipped++
			c.logger.Warn("skipping file", zap.String("path", f), zap.Error(err))
			continue
		}
		inputs = append(inputs, in)
	}
	added, failed := addAll(ctx, c, inputs, "Importing")
	fmt.Fprintf(stdout, "Imported %d file(s), skipped %d, failed %d\n", added, skipped, failed)
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed to import", failed)
	}
	return ctx.Err()
}

func runReconcile(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	configPath, debug := commonFlags(fs)
	batch := fs.Int("batch", search.DefaultReconcileBatch, "documents embedded per provider call")
	_ = fs.Parse(args)

	c, err := setup(ctx, *configPath, *debug, false, componentOptions{embedder: true})
	if err != nil {
		return err
	}
	defer c.Close()

	bar := cli.NewProgress(-1, "Reconciling")
	repaired, err := c.orch.Reconcile(ctx, *batch, func(n int) { bar.Set(n) })
	bar.Finish()
	fmt.Fprintf(stdout, "Repaired %d document(s)\n", repaired)
	return err
}
