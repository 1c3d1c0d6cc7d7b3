package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/verticald/internal/config"
	"github.com/fyrsmithlabs/verticald/internal/embeddings"
	"github.com/fyrsmithlabs/verticald/internal/engine"
	"github.com/fyrsmithlabs/verticald/internal/events"
	"github.com/fyrsmithlabs/verticald/internal/logging"
	"github.com/fyrsmithlabs/verticald/internal/telemetry"
	"github.com/fyrsmithlabs/verticald/internal/vectorstore"
)

// app holds every dependency a command needs, in construction order.
type app struct {
	cfg       *config.Config
	telemetry *telemetry.Telemetry
	logger    *logging.Logger
	embedder  embeddings.Provider
	store     vectorstore.Store
	publisher events.Publisher
	engine    *engine.Engine
}

// openApp loads configuration and wires the engine. Strategies are built
// exactly as configured; a provider that cannot start fails the command.
func openApp(ctx context.Context, cmd *cobra.Command, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Observability.LogLevel = opts.logLevel
	}

	a := &app{cfg: cfg}
	if err := a.init(ctx, cmd); err != nil {
		_ = a.close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context, cmd *cobra.Command) error {
	cfg := a.cfg

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	a.telemetry = tel

	logCfg, err := logging.FromObservability(cfg.Observability)
	if err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	logCfg.Writer = zapcore.AddSync(cmd.ErrOrStderr())
	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	a.logger = logger
	zl := a.logger.Underlying()

	embedder, err := embeddings.NewProvider(embeddings.ProviderConfig{
		Provider:          cfg.Embeddings.Provider,
		Model:             cfg.Embeddings.Model,
		BaseURL:           cfg.Embeddings.BaseURL,
		APIKey:            cfg.Embeddings.APIKey.Value(),
		CacheDir:          cfg.Embeddings.CacheDir,
		Dimension:         cfg.Embeddings.Dimension,
		RequestsPerSecond: cfg.Embeddings.RequestsPerSecond,
		Timeout:           cfg.Embeddings.Timeout.Duration(),
		Logger:            zl.Named("embeddings"),
	})
	if err != nil {
		return fmt.Errorf("creating embedding provider %s: %w", cfg.Embeddings.Provider, err)
	}
	a.embedder = embedder

	store, err := vectorstore.New(ctx, vectorstore.Config{
		Provider: cfg.VectorStore.Provider,
		Chromem: vectorstore.ChromemConfig{
			Path:     cfg.VectorStore.Path,
			InMemory: cfg.VectorStore.InMemory,
			Compress: cfg.VectorStore.Compress,
		},
		Qdrant: vectorstore.QdrantConfig{
			Host:   cfg.VectorStore.QdrantHost,
			Port:   cfg.VectorStore.QdrantPort,
			APIKey: cfg.VectorStore.QdrantAPIKey.Value(),
			UseTLS: cfg.VectorStore.QdrantTLS,
		},
	}, a.embedder.Dimension(), zl.Named("vectorstore"))
	if err != nil {
		return fmt.Errorf("creating vector store %s: %w", cfg.VectorStore.Provider, err)
	}
	a.store = store

	a.publisher = events.Nop{}
	if cfg.Events.Enabled {
		publisher, err := events.NewNATSPublisher(events.NATSConfig{
			URL:           cfg.Events.URL,
			SubjectPrefix: cfg.Events.SubjectPrefix,
			Timeout:       cfg.Events.Timeout.Duration(),
		}, zl.Named("events"))
		if err != nil {
			return fmt.Errorf("creating event publisher: %w", err)
		}
		a.publisher = publisher
	}

	eng, err := engine.NewFromConfig(cfg, a.store, a.embedder, a.publisher, a.logger)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	a.engine = eng

	a.logger.Debug(ctx, "verticald initialized",
		zap.String("embeddings", cfg.Embeddings.Provider),
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.Strings("verticals", cfg.Verticals.Names()),
		zap.Bool("events", cfg.Events.Enabled),
	)
	return nil
}

// close releases dependencies in reverse order and returns every error.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
	}
	if a.logger != nil {
		errs = append(errs, a.logger.Sync())
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// withApp opens the app for one command run and closes it afterwards.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.close(context.Background()); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(ctx, a)
}
