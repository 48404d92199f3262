package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quailyquaily/landreach/dispatch"
	"github.com/quailyquaily/landreach/httpapi"
	"github.com/quailyquaily/landreach/integrations"
	"github.com/quailyquaily/landreach/internal/clifmt"
	"github.com/quailyquaily/landreach/ledger"
	"github.com/quailyquaily/landreach/llm"
	"github.com/quailyquaily/landreach/providers/openai"
	"github.com/quailyquaily/landreach/workflow"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the outreach daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func runServe(ctx context.Context) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	store, closeStore, err := buildLedger(logger)
	if err != nil {
		return err
	}
	defer closeStore()

	client, model := buildLLM(logger)
	composer, err := buildComposer()
	if err != nil {
		return err
	}

	deps := workflow.Deps{
		Mailer:    buildMailer(),
		Scheduler: buildScheduler(),
		Notifier:  buildNotifier(),
		LLM:       client,
		LLMModel:  model,
		Composer:  composer,
		Logger:    logger,
	}
	logIntegrations(logger, deps)

	sessions := workflow.NewManager(deps)
	dispatcher := dispatch.New(client, model, store, logger)
	location := viper.GetString("workflow.location")
	api := httpapi.NewServer(store, sessions, dispatcher, location, logger)

	addr := viper.GetString("server.addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if retention := viper.GetDuration("ledger.retention"); retention > 0 {
		go runRetentionLoop(ctx, store, retention, logger)
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Println(clifmt.Headerf("landreach listening on %s", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runRetentionLoop periodically drops terminal ledger entries older than
// the retention window.
func runRetentionLoop(ctx context.Context, store ledger.Store, retention time.Duration, logger *slog.Logger) {
	interval := retention / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-retention)
			if err := store.ClearResolved(ctx, cutoff); err != nil {
				logger.Warn("ledger retention sweep failed", "err", err)
			}
		}
	}
}

func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log.level"))); err != nil {
		return nil, fmt.Errorf("parse log.level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch viper.GetString("log.format") {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler), nil
}

func buildLedger(logger *slog.Logger) (ledger.Store, func(), error) {
	var store ledger.Store
	closeStore := func() {}

	if dsn := viper.GetString("ledger.dsn"); dsn != "" {
		s, err := ledger.NewSQLiteStore(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open ledger db: %w", err)
		}
		store = s
		closeStore = func() { _ = s.Close() }
		logger.Info("ledger store", "backend", "sqlite", "dsn", dsn)
	} else {
		store = ledger.NewMemoryStore()
		logger.Info("ledger store", "backend", "memory")
	}

	if path := viper.GetString("ledger.audit_path"); path != "" {
		sink, err := ledger.NewJSONLAuditSink(path, viper.GetInt64("ledger.audit_rotate_bytes"))
		if err != nil {
			return nil, nil, fmt.Errorf("open audit sink: %w", err)
		}
		inner := closeStore
		closeStore = func() {
			_ = sink.Close()
			inner()
		}
		store = ledger.WithAudit(store, sink)
		logger.Info("audit sink enabled", "path", path)
	}
	return store, closeStore, nil
}

// buildLLM returns a nil client when no key is available; the daemon still
// serves template-based workflows, and ai-driven dispatch reports the model
// as unavailable.
func buildLLM(logger *slog.Logger) (llm.Client, string) {
	endpoint := llmEndpointFromViper()
	model := llmModelFromViper()
	apiKey := llmAPIKeyFromViper()

	if apiKey == "" && clifmt.IsInteractive() {
		key, err := clifmt.ReadSecret("LLM API key (empty to run without a model): ")
		if err == nil {
			apiKey = strings.TrimSpace(key)
		}
	}
	if apiKey == "" {
		logger.Warn("no llm api key, ai-driven dispatch disabled")
		return nil, ""
	}
	return openai.New(endpoint, apiKey), model
}

func buildComposer() (*workflow.Composer, error) {
	c := workflow.NewComposer()
	if path := viper.GetString("workflow.templates_path"); path != "" {
		if err := c.LoadOverrides(path); err != nil {
			return nil, fmt.Errorf("load templates: %w", err)
		}
	}
	return c, nil
}

func buildMailer() integrations.Mailer {
	token := viper.GetString("integrations.gmail.token")
	if token == "" {
		return nil
	}
	m := integrations.NewGmailMailer(token, viper.GetString("integrations.gmail.from"))
	if endpoint := viper.GetString("integrations.gmail.endpoint"); endpoint != "" {
		m.Endpoint = endpoint
	}
	return m
}

func buildScheduler() integrations.Scheduler {
	apiKey := viper.GetString("integrations.calendly.api_key")
	if apiKey == "" {
		return nil
	}
	s := integrations.NewCalendlyScheduler(apiKey, viper.GetString("integrations.calendly.event_type_uri"))
	if endpoint := viper.GetString("integrations.calendly.endpoint"); endpoint != "" {
		s.Endpoint = endpoint
	}
	return s
}

func buildNotifier() integrations.Notifier {
	webhook := viper.GetString("integrations.slack.webhook_url")
	if webhook == "" {
		return nil
	}
	n := integrations.NewSlackNotifier(webhook)
	if username := viper.GetString("integrations.slack.username"); username != "" {
		n.Username = username
	}
	return n
}

func logIntegrations(logger *slog.Logger, deps workflow.Deps) {
	logger.Info("integrations",
		"mail", deps.Mailer != nil,
		"scheduling", deps.Scheduler != nil,
		"notification", deps.Notifier != nil,
		"llm", deps.LLM != nil,
	)
}
