// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/artpar/schemagate/adapters/auth"
	"github.com/artpar/schemagate/adapters/clock"
	apihttp "github.com/artpar/schemagate/adapters/http"
	"github.com/artpar/schemagate/adapters/idgen"
	"github.com/artpar/schemagate/adapters/memory"
	"github.com/artpar/schemagate/adapters/metrics"
	"github.com/artpar/schemagate/adapters/sqlite"
	"github.com/artpar/schemagate/app"
	"github.com/artpar/schemagate/config"
	"github.com/artpar/schemagate/core/exporter"
	"github.com/artpar/schemagate/core/openapi"
	"github.com/artpar/schemagate/ports"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	DB         *sqlite.DB
	Metrics    *metrics.Collector
	Exporters  *exporter.Registry
	Schemas    *app.SchemaService
	OpenAPI    *openapi.Service
	Tokens     *auth.TokenService
	HTTPServer *http.Server

	snapshots ports.SnapshotStore
	catalog   *CatalogWatcher
}

// Options provides optional configuration for application initialization.
type Options struct {
	// ConfigPath is the YAML config file. When empty or missing the
	// configuration comes from the environment and cannot be reloaded.
	ConfigPath string

	// Registerer receives the metrics. Default: prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer

	// LogOutput receives log lines. Default: os.Stdout.
	LogOutput io.Writer
}

// New creates and initializes the application. The catalog is not loaded;
// call LoadCatalog or Run.
func New(opts Options) (*App, error) {
	if opts.LogOutput == nil {
		opts.LogOutput = os.Stdout
	}

	holder, err := loadConfig(opts.ConfigPath, zerolog.New(opts.LogOutput).With().Timestamp().Logger())
	if err != nil {
		return nil, err
	}
	cfg := holder.Get()

	logger := NewLogger(cfg.Logging, opts.LogOutput)
	logger.Info().Str("catalog", cfg.Catalog.Dir).Msg("initializing schemagate")

	a := &App{
		Logger: logger,
		Config: holder,
	}

	if cfg.Metrics.Enabled {
		reg := opts.Registerer
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		a.Metrics = metrics.NewWithRegistry(reg)
		holder.OnReload(func(err error) {
			a.Metrics.ConfigReloaded(time.Now(), err)
		})
		logger.Info().Msg("prometheus metrics enabled")
	}

	generator := openapi.NewGenerator()
	a.Exporters, err = NewExporters(generator)
	if err != nil {
		return nil, fmt.Errorf("init exporters: %w", err)
	}

	if cfg.Snapshots.Enabled {
		if err := a.initSnapshots(cfg.Database); err != nil {
			return nil, fmt.Errorf("init snapshots: %w", err)
		}

		// The signing secret is read once; rotating it needs a restart.
		a.Tokens = auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.TokenTTL)
		if a.Tokens.Ephemeral() {
			logger.Warn().Msg("auth.secret not set, POST /snapshots accepts only tokens minted by this process")
		}
	}

	svcCfg := app.SchemaServiceConfig{
		CatalogDir: cfg.Catalog.Dir,
		Flags:      holder.FlagSource(),
		Exporters:  a.Exporters,
		Snapshots:  a.snapshots,
		Clock:      clock.Real{},
		IDs:        idgen.UUID{},
		Logger:     logger,
	}
	if a.Metrics != nil {
		svcCfg.Observer = a.Metrics
		svcCfg.Renders = a.Metrics
	}
	a.Schemas = app.NewSchemaService(svcCfg)

	a.OpenAPI = openapi.NewService(openapi.ServiceConfig{
		Source:    a.Schemas,
		Generator: generator,
		Logger:    logger,
	})

	holder.OnChange(a.applyConfig)

	return a, nil
}

func loadConfig(path string, logger zerolog.Logger) (*config.Holder, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			h, err := config.NewHolder(path, logger)
			if err != nil {
				return nil, err
			}
			return h, nil
		}
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return config.NewStaticHolder(cfg, logger), nil
}

// NewLogger builds the application logger and sets the global level.
func NewLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// NewExporters registers every document format.
func NewExporters(generator *openapi.Generator) (*exporter.Registry, error) {
	return exporter.NewRegistry(
		exporter.NewDiscovery(),
		generator,
		exporter.NewSwagger(),
		exporter.NewJSONSchema(),
	)
}

func (a *App) initSnapshots(cfg config.DatabaseConfig) error {
	switch cfg.Driver {
	case "memory":
		a.snapshots = memory.NewSnapshotStore()
	default:
		db, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return fmt.Errorf("migrate database: %w", err)
		}
		a.DB = db
		a.snapshots = sqlite.NewSnapshotStore(db)
	}

	a.Logger.Info().Str("driver", cfg.Driver).Msg("snapshot store ready")
	return nil
}

// applyConfig reacts to a reloaded configuration. Schema flags and the
// catalog directory take effect by rebuilding the catalog generation.
func (a *App) applyConfig(cfg *config.Config) {
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	dir := cfg.Catalog.Dir
	if err := a.Schemas.ReloadFrom(context.Background(), dir); err != nil {
		a.Logger.Error().Err(err).Msg("catalog rebuild after config change failed")
		return
	}
	a.OpenAPI.InvalidateCache()

	if a.catalog != nil {
		if err := a.catalog.Watch(dir); err != nil {
			a.Logger.Error().Err(err).Str("dir", dir).Msg("catalog watch failed")
		}
	}
}

// LoadCatalog builds the first catalog generation.
func (a *App) LoadCatalog(ctx context.Context) error {
	return a.Schemas.Reload(ctx)
}

// Handler builds the HTTP handler.
func (a *App) Handler() http.Handler {
	cfg := a.Config.Get()

	var snapshots *apihttp.SnapshotHandler
	if a.snapshots != nil {
		snapshots = apihttp.NewSnapshotHandler(a.Schemas, a.Tokens, a.Logger)
	}

	return apihttp.NewRouter(
		apihttp.NewSchemaHandler(a.Schemas, a.OpenAPI, a.Logger),
		snapshots,
		apihttp.NewHealthHandler(a.Schemas),
		a.Logger,
		apihttp.RouterConfig{
			Metrics:         a.Metrics,
			MetricsPath:     cfg.Metrics.Path,
			EnableSwaggerUI: cfg.OpenAPI.Enabled,
			SwaggerSpecURL:  fmt.Sprintf("/apis/%s/%s/openapi.json", app.SelfAPI.Name, app.SelfAPI.Version),
			Timeout:         cfg.Server.WriteTimeout,
		},
	)
}

func (a *App) initHTTPServer() {
	cfg := a.Config.Get()
	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      a.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// Run loads the catalog, starts the HTTP server and the watchers, and
// blocks until shutdown.
func (a *App) Run() error {
	ctx := context.Background()

	if err := a.LoadCatalog(ctx); err != nil {
		return err
	}

	if err := a.Config.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config hot reload disabled")
	} else {
		a.Config.WatchSignals()
	}

	a.catalog = NewCatalogWatcher(a.Schemas, a.Logger)
	a.catalog.OnReload(func(err error) {
		if err == nil {
			a.OpenAPI.InvalidateCache()
		}
	})
	if err := a.catalog.Watch(a.Schemas.CatalogDir()); err != nil {
		a.Logger.Warn().Err(err).Msg("catalog hot reload disabled")
	}

	a.initHTTPServer()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a.Config.Stop()

	if a.catalog != nil {
		a.catalog.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}
