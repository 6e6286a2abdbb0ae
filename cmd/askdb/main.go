package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lucasmend/askdb/internal/adapter/httpapi"
	"github.com/lucasmend/askdb/internal/adapter/llamacpp"
	appmcp "github.com/lucasmend/askdb/internal/adapter/mcp"
	"github.com/lucasmend/askdb/internal/adapter/memory"
	"github.com/lucasmend/askdb/internal/adapter/postgres"
	"github.com/lucasmend/askdb/internal/adapter/schemactx"
	"github.com/lucasmend/askdb/internal/audit"
	"github.com/lucasmend/askdb/internal/config"
	"github.com/lucasmend/askdb/internal/core/domain"
	"github.com/lucasmend/askdb/internal/core/port"
	"github.com/lucasmend/askdb/internal/core/service"
	"github.com/lucasmend/askdb/internal/telemetry"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var version = "dev"

func main() {
	overrides, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if err := run(overrides); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses CLI flags into config overrides. Pointer fields stay nil
// for flags the user did not pass, so env values are not clobbered.
func parseFlags(args []string) (config.Overrides, error) {
	fs := flag.NewFlagSet("askdb", flag.ContinueOnError)

	databaseURL := fs.String("database-url", "", "PostgreSQL connection URL (overrides DATABASE_URL)")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
	maxRows := fs.Int("max-rows", 0, "maximum rows returned per query (overrides MAX_ROWS)")
	queryTimeout := fs.Duration("query-timeout", 0, "per-query statement timeout (overrides QUERY_TIMEOUT)")
	schemaContext := fs.String("schema-context", "", "path to schema context YAML (overrides SCHEMA_CONTEXT_FILE)")
	transport := fs.String("transport", "", `MCP transport: "stdio" or "http" (overrides TRANSPORT)`)
	httpAddr := fs.String("http-addr", "", "listen address for HTTP transport (overrides HTTP_ADDR)")
	httpBearerToken := fs.String("http-bearer-token", "", "bearer token for HTTP transport (overrides HTTP_BEARER_TOKEN)")
	chatAddr := fs.String("chat-addr", "", "listen address for the chat HTTP API, empty disables it (overrides CHAT_ADDR)")
	llmURL := fs.String("llm-url", "", "llama.cpp server base URL (overrides LLM_URL)")
	memoryPath := fs.String("memory-path", "", "SQLite conversation store path, empty disables persistence (overrides MEMORY_PATH)")
	strict := fs.Bool("strict", false, "parse SQL and reject anything that is not a single SELECT")
	otelEnabled := fs.Bool("otel", false, "enable OpenTelemetry tracing and metrics")
	auditLog := fs.String("audit-log", "", "path to NDJSON audit log file")

	if err := fs.Parse(args); err != nil {
		return config.Overrides{}, err
	}

	o := config.Overrides{
		StrictValidation: *strict,
		OTelEnabled:      *otelEnabled,
		AuditLog:         *auditLog,
	}

	// Only flags the user actually passed become overrides.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "database-url":
			o.DatabaseURL = databaseURL
		case "log-level":
			o.LogLevel = logLevel
		case "max-rows":
			o.MaxRows = maxRows
		case "query-timeout":
			o.QueryTimeout = queryTimeout
		case "schema-context":
			o.SchemaContextFile = schemaContext
		case "transport":
			o.Transport = transport
		case "http-addr":
			o.HTTPAddr = httpAddr
		case "http-bearer-token":
			o.HTTPBearerToken = httpBearerToken
		case "chat-addr":
			o.ChatAddr = chatAddr
		case "llm-url":
			o.LLMURL = llmURL
		case "memory-path":
			o.MemoryPath = memoryPath
		}
	})

	return o, nil
}

func run(overrides config.Overrides) error {
	cfg, err := config.Load(overrides)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Logs go to stderr — stdout is reserved for the MCP stdio transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	logger.Info("starting askdb",
		slog.String("version", version),
		slog.String("log_level", cfg.LogLevel.String()),
		slog.String("database_url", redactDSN(cfg.DatabaseURL)),
		slog.Int("max_rows", cfg.MaxRows),
		slog.String("query_timeout", cfg.QueryTimeout.String()),
		slog.Bool("strict_validation", cfg.StrictValidation),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Telemetry.
	var tracer trace.Tracer
	var inst port.Instrumentation
	if cfg.OTelEnabled {
		provider, err := telemetry.Init(ctx, "askdb", version)
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown failed", slog.String("error.message", err.Error()))
			}
		}()
		tracer = otel.Tracer("github.com/lucasmend/askdb")
		inst = telemetry.NewInstruments()
	} else {
		tracer = telemetry.NoopTracer()
		inst = telemetry.NoopInstruments()
	}

	// Database.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolSettings{
		MaxConns:        cfg.PoolMaxConns,
		MinConns:        cfg.PoolMinConns,
		MaxConnLifetime: cfg.PoolMaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()
	logger.Info("database pool connected", slog.String("db.system", "postgresql"))

	// Adapters.
	var explorer port.SchemaExplorer = postgres.NewExplorer(pool, cfg.Schemas)
	executor := postgres.NewExecutor(pool, cfg.QueryTimeout)

	// Schema context decorator (optional).
	var masks map[string]domain.MaskType
	if cfg.SchemaContextFile != "" {
		sc, err := schemactx.LoadFromFile(cfg.SchemaContextFile)
		if err != nil {
			return fmt.Errorf("loading schema context: %w", err)
		}
		explorer = schemactx.NewExplorer(explorer, sc)
		masks = sc.Masks()
		logger.Info("schema context loaded",
			slog.String("file", cfg.SchemaContextFile),
			slog.Int("tables", len(sc.Tables)),
			slog.Int("masked_columns", len(masks)),
		)
	}

	// Safety gate.
	var validator port.QueryValidator = domain.NewKeywordValidator()
	if cfg.StrictValidation {
		validator = domain.NewStrictValidator()
	}

	// Audit log (optional).
	var auditor port.QueryAuditor = audit.NoopAuditor{}
	if cfg.AuditLog != "" {
		fileAuditor, err := audit.NewFileAuditor(cfg.AuditLog)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		auditor = fileAuditor
		logger.Info("audit log enabled", slog.String("file", cfg.AuditLog))
	}
	defer func() { _ = auditor.Close() }()

	// Conversation memory (optional).
	var store port.ConversationStore = memory.NoopStore{}
	if cfg.MemoryPath != "" {
		sqliteStore, err := memory.NewSQLiteStore(cfg.MemoryPath)
		if err != nil {
			return fmt.Errorf("opening conversation store: %w", err)
		}
		store = sqliteStore
		logger.Info("conversation memory enabled", slog.String("file", cfg.MemoryPath))
	}
	defer func() { _ = store.Close() }()

	// Language model.
	llm := llamacpp.NewClient(cfg.LLMURL, llamacpp.Options{
		Temperature: cfg.LLMTemperature,
		MaxTokens:   cfg.LLMMaxTokens,
	})
	if cfg.LLMServerBinary != "" {
		runner := llamacpp.NewRunner(llamacpp.RunnerConfig{
			Binary:    cfg.LLMServerBinary,
			ModelPath: cfg.LLMModelPath,
			Port:      llmPortFromURL(cfg.LLMURL),
		}, llm, logger)
		if err := runner.Start(ctx); err != nil {
			return fmt.Errorf("starting llama-server: %w", err)
		}
		defer runner.Stop()
	}

	// Services.
	querySvc := service.NewQueryService(validator, executor, auditor, logger, masks, tracer, inst)
	chatSvc := service.NewChatService(llm, querySvc, explorer, store, logger, tracer, inst, cfg.MaxRows)

	// MCP server with tool handlers.
	mcpServer := appmcp.NewServer(version, querySvc, chatSvc, explorer, logger, tracer, inst)

	// Chat HTTP API (optional), alongside either MCP transport.
	if cfg.ChatAddr != "" {
		chatRouter := httpapi.NewRouter(chatSvc, cfg.HTTPBearerToken, logger)
		chatServer := &http.Server{Addr: cfg.ChatAddr, Handler: chatRouter}
		go func() {
			logger.Info("serving chat API", slog.String("addr", cfg.ChatAddr))
			if err := chatServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("chat API server failed", slog.String("error.message", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = chatServer.Shutdown(shutdownCtx)
		}()
	}

	switch cfg.Transport {
	case "http":
		return serveHTTP(ctx, mcpServer, cfg, logger)
	default:
		return serveStdio(ctx, mcpServer, logger)
	}
}

func serveStdio(ctx context.Context, mcpServer *mcpserver.MCPServer, logger *slog.Logger) error {
	stdioServer := mcpserver.NewStdioServer(mcpServer)

	logger.Info("serving MCP over stdio")
	if err := stdioServer.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio server: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func serveHTTP(ctx context.Context, mcpServer *mcpserver.MCPServer, cfg *config.Config, logger *slog.Logger) error {
	streamable := mcpserver.NewStreamableHTTPServer(mcpServer)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/mcp", bearerAuthMiddleware(streamable, cfg.HTTPBearerToken))

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: recoveryMiddleware(mux, logger),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving MCP over HTTP", slog.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// llmPortFromURL extracts the port from the LLM base URL so a managed
// llama-server listens where the client expects it.
func llmPortFromURL(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	port := 0
	_, _ = fmt.Sscanf(u.Port(), "%d", &port)
	return port
}

// redactDSN masks the password in a connection string for logging.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		return "***"
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
