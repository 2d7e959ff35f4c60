package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/c360studio/taxorank/checkpoint"
	"github.com/c360studio/taxorank/config"
	"github.com/c360studio/taxorank/engine"
	"github.com/c360studio/taxorank/export"
	"github.com/c360studio/taxorank/llm"
	"github.com/c360studio/taxorank/metric"
	"github.com/c360studio/taxorank/oracle"
	"github.com/c360studio/taxorank/prompts"
	"github.com/c360studio/taxorank/taxonomy"
)

// App is the main application that wires together all components.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	registry *prometheus.Registry
	metrics  *metric.Metrics
	server   *metric.Server

	gateway oracle.Gateway
	store   checkpoint.Store
	engine  *engine.Engine
}

// AppOption configures an App.
type AppOption func(*appSettings)

type appSettings struct {
	completer llm.Completer
}

// WithCompleter replaces the model client built from the registry.
func WithCompleter(c llm.Completer) AppOption {
	return func(s *appSettings) {
		s.completer = c
	}
}

// NewApp creates a new application instance. It opens the checkpoint store;
// callers release it with Shutdown.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...AppOption) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var settings appSettings
	for _, opt := range opts {
		opt(&settings)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := metric.New(registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	completer := settings.completer
	if completer == nil {
		models, err := cfg.Model.Registry()
		if err != nil {
			return nil, fmt.Errorf("load model registry: %w", err)
		}
		completer = llm.NewClient(models,
			llm.WithRateLimit(cfg.Oracle.RateLimit, cfg.Oracle.Burst),
			llm.WithLogger(logger),
		)
	}

	gateway := oracle.NewLLM(completer,
		oracle.WithTimeout(cfg.Oracle.Timeout),
		oracle.WithMetrics(metrics),
		oracle.WithLogger(logger),
	)

	store, err := checkpoint.Open(ctx, cfg.Checkpoint, logger)
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics,
		gateway:  gateway,
		store:    store,
	}
	app.engine = app.newEngine()
	return app, nil
}

func (a *App) newEngine() *engine.Engine {
	return engine.New(a.gateway,
		engine.WithOptions(a.cfg.Engine.Options()),
		engine.WithPrompts(prompts.New(a.cfg.Engine.Prompts())),
		engine.WithCheckpointer(a.store),
		engine.WithMetrics(a.metrics),
		engine.WithLogger(a.logger),
	)
}

// Configure applies overrides to the engine section and rebuilds the engine.
func (a *App) Configure(fn func(*config.EngineConfig)) error {
	engineCfg := a.cfg.Engine
	fn(&engineCfg)

	next := *a.cfg
	next.Engine = engineCfg
	if err := next.Validate(); err != nil {
		return err
	}
	a.cfg.Engine = engineCfg
	a.engine = a.newEngine()
	return nil
}

// Start launches the metrics endpoint when one is configured.
func (a *App) Start() error {
	if a.cfg.Metrics.Addr == "" {
		return nil
	}
	a.server = metric.NewServer(a.cfg.Metrics.Addr, a.registry, a.logger)
	if err := a.server.Start(); err != nil {
		a.server = nil
		return err
	}
	return nil
}

// Shutdown stops the metrics endpoint and closes the checkpoint store.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.server != nil {
		errs = append(errs, a.server.Shutdown(ctx))
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close checkpoint store: %w", err))
	}
	return errors.Join(errs...)
}

// Build resolves a candidate and grows the taxonomy until it is exhausted.
func (a *App) Build(ctx context.Context, candidate string) (*taxonomy.Taxonomy, []engine.LevelReport, error) {
	return a.engine.Build(ctx, candidate)
}

// Resolve finds the root for a candidate without expanding it.
func (a *App) Resolve(ctx context.Context, candidate string) (*taxonomy.Taxonomy, error) {
	return a.engine.Resolve(ctx, candidate)
}

// Discover derives the dimensions of a resolved taxonomy.
func (a *App) Discover(ctx context.Context, t *taxonomy.Taxonomy) error {
	if !t.Resolved() {
		return fmt.Errorf("taxonomy %s has no resolved root", t.ID())
	}
	if t.DimensionCount() > 0 {
		return fmt.Errorf("taxonomy %s already has %d dimension(s)", t.ID(), t.DimensionCount())
	}
	return a.engine.Discover(ctx, t)
}

// Expand grows the taxonomy. A non-negative dimension expands that
// dimension by one rank; a negative one runs full expansion rounds.
func (a *App) Expand(ctx context.Context, t *taxonomy.Taxonomy, dimension int) ([]engine.LevelReport, error) {
	if t.DimensionCount() == 0 {
		return nil, fmt.Errorf("taxonomy %s has no dimensions, run discover first", t.ID())
	}
	if dimension >= 0 {
		report := a.engine.ExpandLevel(ctx, t, dimension)
		return []engine.LevelReport{report}, report.Err
	}
	return a.engine.Expand(ctx, t)
}

// Load restores a taxonomy from an explicit location, or from the newest
// save of taxonomyID when location is empty.
func (a *App) Load(ctx context.Context, location, taxonomyID string) (*taxonomy.Taxonomy, error) {
	if location == "" {
		if taxonomyID == "" {
			return nil, errors.New("either --from or --taxonomy is required")
		}
		h, ok := a.store.(checkpoint.Historian)
		if !ok {
			return nil, fmt.Errorf("the %s backend cannot look up saves by taxonomy id, use --from", a.store.Backend())
		}
		latest, err := h.Latest(ctx, taxonomyID)
		if err != nil {
			return nil, err
		}
		location = latest
	}

	t, err := checkpoint.LoadTaxonomy(ctx, a.store, location)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("Taxonomy loaded", "taxonomy", t.ID(), "location", location)
	return t, nil
}

// Export writes the class hierarchy of t to w.
func (a *App) Export(t *taxonomy.Taxonomy, format export.Format, namespace string, w io.Writer) (export.FormatInfo, error) {
	data, info, err := export.Export(t, format, export.WithNamespace(namespace))
	if err != nil {
		return export.FormatInfo{}, err
	}
	if _, err := w.Write(data); err != nil {
		return export.FormatInfo{}, fmt.Errorf("write export: %w", err)
	}
	return info, nil
}
