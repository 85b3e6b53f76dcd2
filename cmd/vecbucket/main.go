// Package main is the vecbucket CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/vecbucket/internal/apperr"
	"github.com/hyperjump/vecbucket/internal/cli"
	"github.com/hyperjump/vecbucket/internal/config"
	"github.com/hyperjump/vecbucket/internal/docstore"
	"github.com/hyperjump/vecbucket/internal/embedding"
	"github.com/hyperjump/vecbucket/internal/extract"
	"github.com/hyperjump/vecbucket/internal/indexer"
	"github.com/hyperjump/vecbucket/internal/indexstore"
	"github.com/hyperjump/vecbucket/internal/models"
	"github.com/hyperjump/vecbucket/internal/objectstore"
	"github.com/hyperjump/vecbucket/internal/search"
	"github.com/hyperjump/vecbucket/internal/server"
	"github.com/hyperjump/vecbucket/internal/vector"
	"github.com/hyperjump/vecbucket/internal/watcher"
	"github.com/hyperjump/vecbucket/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/vecbucket/config.yaml"

var errUsage = errors.New("invalid usage")

// loadConfig loads config from path. When path is the default, a config.yaml in the
// current directory takes precedence, and a missing default file yields defaults.
// Returns the config and the path that was actually loaded.
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
		cfg, err := config.LoadOrDefault(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// run dispatches a sub-command and writes its output to out.
func run(args []string, out io.Writer) error {
	if len(args) < 1 {
		printUsage(out)
		return errUsage
	}
	command, rest := args[0], args[1:]
	switch command {
	case "server":
		return runServer(rest)
	case "upload":
		return runUpload(rest, out)
	case "bulk-upload":
		return runBulkUpload(rest, out)
	case "search":
		return runSearch(rest, out)
	case "get":
		return runGet(rest, out)
	case "list":
		return runList(rest, out)
	case "delete":
		return runDelete(rest, out)
	case "status":
		return runStatus(rest, out)
	case "reindex":
		return runReindex(rest, out)
	case "watch":
		return runWatch(rest, out)
	case "version", "--version", "-v":
		fmt.Fprintf(out, "vecbucket version %s\n", version)
		return nil
	case "help", "--help", "-h":
		printUsage(out)
		return nil
	default:
		fmt.Fprintf(out, "Unknown command: %s\n", command)
		printUsage(out)
		return errUsage
	}
}

// session is a loaded config with its logger and components.
type session struct {
	cfg        *config.Config
	logger     *zap.Logger
	components *Components
}

func (s *session) Close() {
	s.components.Close()
	_ = s.logger.Sync()
}

func openSession(configPath string, debug bool) (*session, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, components: components}, nil
}

func runServer(args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	s, err := openSession(*configPath, *debug)
	if err != nil {
		return err
	}
	defer s.Close()

	srv := server.NewServer(s.components.Engine, s.components.Indexer, s.cfg, s.logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	if len(s.cfg.Watch.Directories) > 0 {
		w := newWatcher(s, s.cfg.Watch.Directories)
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer w.Stop()
		go w.Sync(ctx)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}

	s.logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Stop(shutdownCtx)
}

func runUpload(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	docID := fs.String("doc-id", "", "document id (generated when empty)")
	text := fs.String("text", "", "document text")
	file := fs.String("file", "", "read document text from a file (txt, md, pdf, docx, xlsx, pptx, odt, rtf, ...)")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if (*text == "") == (*file == "") {
		fmt.Fprintln(out, "Usage: vecbucket upload [-doc-id ID] (-text TEXT | -file PATH)")
		return errUsage
	}

	s, err := openSession(*configPath, false)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	var id string
	if *file != "" {
		id, err = s.components.Indexer.AddFile(ctx, *file, *docID)
	} else {
		id, err = s.components.Indexer.AddDocument(ctx, models.DocumentInput{DocID: *docID, Text: *text})
	}
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	fmt.Fprintf(out, "Document uploaded: %s\n", id)
	return nil
}

func runBulkUpload(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("bulk-upload", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	file := fs.String("file", "", `JSON file holding a list of {"doc_id","text"} objects ("-" for stdin)`)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *file == "" {
		fmt.Fprintln(out, "Usage: vecbucket bulk-upload -file docs.json")
		return errUsage
	}
	var (
		data []byte
		err  error
	)
	if *file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(*file)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", *file, err)
	}
	inputs, err := indexer.ParseBulk(data)
	if err != nil {
		return err
	}

	s, err := openSession(*configPath, false)
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.components.Indexer.AddDocuments(context.Background(), inputs)
	if err != nil {
		return fmt.Errorf("bulk upload failed: %w", err)
	}
	fmt.Fprintf(out, "Uploaded %d document(s)\n", n)
	return nil
}

func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves flags given after the query in front of it so that
// "vecbucket search my query -top-k 3" parses.
func searchArgsReorder(args []string) []string {
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

func runSearch(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "query a running server at this URL instead of the bucket")
	topK := fs.Int("top-k", 0, "number of results (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(searchArgsReorder(args)); err != nil {
		return errUsage
	}
	query := buildSearchQuery(fs.Args())
	if query == "" {
		fmt.Fprintln(out, "Usage: vecbucket search [-top-k N] [-server URL] [-output text|json] <query>")
		return errUsage
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		return err
	}

	if *serverURL != "" {
		resp, err := searchViaHTTP(*serverURL, &models.SearchRequest{Query: query, TopK: *topK})
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}
		return cli.WriteSearchResults(out, resp, format)
	}

	s, err := openSession(*configPath, false)
	if err != nil {
		return err
	}
	defer s.Close()

	matches, err := s.components.Engine.SearchMatches(context.Background(), query, *topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	return cli.WriteMatches(out, matches, format)
}

func searchViaHTTP(serverURL string, req *models.SearchRequest) (*models.SearchResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

// docIDArg returns the -doc-id flag value, or the first positional argument.
func docIDArg(fs *flag.FlagSet, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return strings.TrimSpace(fs.Arg(0))
}

func runGet(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	docIDFlag := fs.String("doc-id", "", "document id")
	outputFormat := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	docID := docIDArg(fs, *docIDFlag)
	if docID == "" {
		fmt.Fprintln(out, "Usage: vecbucket get -doc-id ID")
		return errUsage
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		return err
	}

	s, err := openSession(*configPath, false)
	if err != nil {
		return err
	}
	defer s.Close()

	doc, err := s.components.Indexer.GetDocument(context.Background(), docID)
	if err != nil {
		return fmt.Errorf("document not found: %s", docID)
	}
	return cli.WriteDocument(out, doc, format)
}

func runList(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	skip := fs.Int("skip", 0, "number of documents to skip")
	limit := fs.Int("limit", 0, "maximum number of documents (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *skip < 0 {
		return apperr.Invalid("list", "skip must be non-negative")
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		return err
	}

	s, err := openSession(*configPath, false)
	if err != nil {
		return err
	}
	defer s.Close()

	n := *limit
	if n == 0 {
		n = s.cfg.Search.DefaultListLimit
	}
	docs, err := s.components.Indexer.ListDocuments(context.Background(), *skip, n)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}
	return cli.WriteDocumentList(out, docs, format)
}

func runDelete(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	docIDFlag := fs.String("doc-id", "", "document id")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	docID := docIDArg(fs, *docIDFlag)
	if docID == "" {
		fmt.Fprintln(out, "Usage: vecbucket delete -doc-id ID")
		return errUsage
	}

	s, err := openSession(*configPath, false)
	if err != nil {
		return err
	}
	defer s.Close()

	removed, err := s.components.Indexer.DeleteDocument(context.Background(), docID)
	if err != nil {
		return fmt.Errorf("deletion failed: %w", err)
	}
	if !removed {
		return fmt.Errorf("document not found: %s", docID)
	}
	fmt.Fprintf(out, "Document deleted: %s\n", docID)
	return nil
}

func runStatus(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "ask a running server at this URL instead of the bucket")
	outputFormat := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		return err
	}

	if *serverURL != "" {
		st, err := statusViaHTTP(*serverURL)
		if err != nil {
			return fmt.Errorf("status failed: %w", err)
		}
		return cli.WriteStatus(out, st, format)
	}

	s, err := openSession(*configPath, false)
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.components.Indexer.Status(context.Background())
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}
	return cli.WriteStatus(out, st, format)
}

func statusViaHTTP(serverURL string) (*models.Status, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var st models.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &st, nil
}

func runReindex(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("reindex", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	s, err := openSession(*configPath, false)
	if err != nil {
		return err
	}
	defer s.Close()

	state, err := s.components.Indexer.Rebuild(context.Background())
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	_, vectors := s.components.Manager.Stats(context.Background())
	fmt.Fprintf(out, "Index %s (%d vectors)\n", state, vectors)
	return nil
}

func newWatcher(s *session, dirs []string) *watcher.Watcher {
	exts := s.cfg.Watch.Extensions
	if len(exts) == 0 {
		exts = extract.NewExtractor().Extensions()
	}
	return watcher.New(s.components.Indexer, dirs,
		watcher.WithExtensions(exts),
		watcher.WithRecursive(s.cfg.Watch.RecursiveOrDefault()),
		watcher.WithDebounce(time.Duration(s.cfg.Watch.DebounceMS)*time.Millisecond),
		watcher.WithLogger(s.logger),
	)
}

// runWatch ingests files from directories until interrupted. Directories come
// from the arguments, or from the watch section of the config.
func runWatch(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	noSync := fs.Bool("no-sync", false, "skip ingesting files already present")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	s, err := openSession(*configPath, *debug)
	if err != nil {
		return err
	}
	defer s.Close()

	dirs := fs.Args()
	if len(dirs) == 0 {
		dirs = s.cfg.Watch.Directories
	}
	if len(dirs) == 0 {
		fmt.Fprintln(out, "Usage: vecbucket watch [-no-sync] <directory>...")
		return errUsage
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	w := newWatcher(s, dirs)
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer w.Stop()
	if !*noSync {
		n := w.Sync(ctx)
		fmt.Fprintf(out, "Synced %d file(s)\n", n)
	}
	fmt.Fprintf(out, "Watching %s\n", strings.Join(w.Directories(), ", "))
	<-ctx.Done()
	return nil
}

// Components holds initialized services.
type Components struct {
	Backend  objectstore.Backend
	Embedder embedding.Embedder
	Manager  *indexstore.Manager
	Engine   *search.Engine
	Indexer  *indexer.Indexer
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Backend != nil {
		_ = c.Backend.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	backend, err := objectstore.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		if cfg.Embedding.Provider != "onnx" && cfg.Embedding.Provider != "" {
			_ = backend.Close()
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		// Fall back to the hashing embedder when the ONNX runtime or model is unavailable.
		logger.Warn("onnx embedder unavailable, falling back to hashing embedder",
			zap.String("model_path", cfg.Embedding.ModelPath), zap.Error(err))
		fallback := cfg.Embedding
		fallback.Provider = "hashing"
		if embedder, err = embedding.New(fallback); err != nil {
			_ = backend.Close()
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
	}

	repo := docstore.New(backend, cfg.Search.PreviewLength, logger)
	manager := indexstore.New(repo, cfg.Index.Type, logger,
		vector.WithHNSWParams(cfg.Index.HNSWM, cfg.Index.HNSWEfSearch))
	logger.Debug("components initialized",
		zap.String("backend", backend.Name()),
		zap.String("embedding_model", embedder.ModelName()),
		zap.String("index_type", cfg.Index.Type),
		zap.Bool("faiss_available", vector.IsFAISSAvailable()))

	return &Components{
		Backend:  backend,
		Embedder: embedder,
		Manager:  manager,
		Engine:   search.NewEngine(manager, embedder, &cfg.Search, logger),
		Indexer:  indexer.NewIndexer(repo, manager, embedder, indexer.WithLogger(logger)),
	}, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `vecbucket - document store and vector search on object storage

Usage:
  vecbucket server [flags]                      Start the HTTP server
  vecbucket upload [-doc-id ID] -text TEXT      Store a document
  vecbucket upload [-doc-id ID] -file PATH      Store a document extracted from a file
  vecbucket bulk-upload -file docs.json         Store a JSON list of {doc_id, text}
  vecbucket search [flags] <query>              Find the nearest documents
  vecbucket get -doc-id ID                      Show a document
  vecbucket list [-skip N] [-limit N]           List documents with a text preview
  vecbucket delete -doc-id ID                   Delete a document and rebuild the index
  vecbucket status [flags]                      Show document count and index state
  vecbucket reindex                             Rebuild the index from stored vectors
  vecbucket watch [-no-sync] <directory>...      Ingest files as they change
  vecbucket version                             Show version
  vecbucket help                                Show this help

Common Flags:
  -config string    Config file path (default: /usr/local/etc/vecbucket/config.yaml)

Search Flags:
  -top-k int        Number of results (default from config, 5)
  -server string    Query a running server instead of the bucket
  -output string    text or json (default: text)

Examples:
  vecbucket upload -doc-id cats -text "Cats purr and sleep"
  vecbucket search -top-k 3 sleepy animals
  vecbucket search -server http://localhost:8080 -output json "sleepy animals"
  vecbucket delete -doc-id cats`)
}
