package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nl2sql/nl2sql/internal/api"
	"github.com/nl2sql/nl2sql/internal/archive"
	"github.com/nl2sql/nl2sql/internal/businessmodel"
	"github.com/nl2sql/nl2sql/internal/config"
	"github.com/nl2sql/nl2sql/internal/llm"
	"github.com/nl2sql/nl2sql/internal/nl2sql"
	"github.com/nl2sql/nl2sql/internal/observability"
	"github.com/nl2sql/nl2sql/internal/query/sqlexec"
	"github.com/nl2sql/nl2sql/internal/schema"
	s3store "github.com/nl2sql/nl2sql/internal/storage/s3"
	"github.com/nl2sql/nl2sql/internal/targetdb"
)

func main() {
	cfg, err := config.LoadFromEnv("nl2sql-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	opener := targetdb.DriverOpener{AllowDuckDB: cfg.Targets.DuckDBEnabled}

	deps := api.Dependencies{
		Logger:            logger,
		QueryEngine:       sqlexec.NewEngine(opener, cfg.Execute.RowLimit, cfg.Execute.Timeout),
		Connector:         opener,
		DependencyTimeout: 2 * time.Second,
	}
	readiness := []api.ReadinessCheck{}

	var archiver *archive.Archiver
	if cfg.Archive.Enabled {
		store, err := s3store.New(context.Background(), s3store.ConfigFromArchive(cfg.Archive))
		if err != nil {
			logger.Error("failed to initialize archive store", slog.Any("error", err))
			os.Exit(1)
		}
		archiver = archive.New(store, logger)
		deps.Archive = archiver
		readiness = append(readiness, store.Ready)
	}

	gateway, err := llm.New(llm.Config{
		Provider:    cfg.LLM.Provider,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		JSONOutput:  cfg.LLM.JSONOutput,
		MaxTokens:   cfg.LLM.MaxTokens,
	})
	if err != nil {
		// Requests still get a normal result carrying the "Request failed" warning.
		logger.Warn("llm gateway disabled", slog.String("provider", cfg.LLM.Provider), slog.Any("error", err))
		gatewayErr := err
		readiness = append(readiness, func(context.Context) error { return gatewayErr })
	} else {
		logger.Info("llm gateway configured", slog.String("provider", cfg.LLM.Provider), slog.String("model", gateway.Model()))
	}

	limits := schema.Limits{
		MaxTables:          cfg.Schema.MaxTables,
		MaxColumnsPerTable: cfg.Schema.MaxColumnsPerTable,
		Timeout:            cfg.Schema.Timeout,
	}
	deps.Translator = nl2sql.NewService(gateway, schema.NewIntrospector(opener, logger), limits, logger)

	var scripts businessmodel.ScriptArchiver
	if archiver != nil {
		scripts = archiver
	}
	deps.BusinessModel = businessmodel.NewService(gateway, scripts, logger)
	deps.Readiness = api.CombineReadinessChecks(readiness...)

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address), slog.String("profile", string(cfg.Profile)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
