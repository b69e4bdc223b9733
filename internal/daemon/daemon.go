package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/promotebya/sunbird-client-sub002/internal/api"
	"github.com/promotebya/sunbird-client-sub002/internal/app/engagement"
	"github.com/promotebya/sunbird-client-sub002/internal/domain"
	"github.com/promotebya/sunbird-client-sub002/internal/health"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/docstore"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/events"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/firestoredb"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/mongo"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/postgres"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/repo"
	"github.com/promotebya/sunbird-client-sub002/internal/infra/sqlite"
)

// Version is stamped by the CLI at startup.
var Version = "dev"

// Daemon is the sunbird runtime. It wires the store, the engine and the
// HTTP server together.
type Daemon struct {
	Config    Config
	Store     *docstore.Instrumented
	Engine    *engagement.Engine
	Publisher domain.EventPublisher
	Server    *api.Server
	Health    *health.Checker
	Logger    *slog.Logger
	cancel    context.CancelFunc
}

// New loads the configuration and creates a Daemon.
func New(ctx context.Context) (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(ctx, cfg)
}

// NewWithConfig creates a Daemon with the given configuration, ready to
// Serve. Failed AMQP deliveries are retried by a loop that Serve starts.
func NewWithConfig(ctx context.Context, cfg Config) (*Daemon, error) {
	return newDaemon(ctx, cfg, true)
}

// NewOneShot creates a Daemon for a single CLI command. Nothing runs in the
// background, so failed AMQP deliveries are logged instead of queued.
func NewOneShot(ctx context.Context, cfg Config) (*Daemon, error) {
	return newDaemon(ctx, cfg, false)
}

func newDaemon(ctx context.Context, cfg Config, background bool) (*Daemon, error) {
	logger := slog.Default()

	opts, err := EngineOptions(cfg, logger)
	if err != nil {
		return nil, err
	}

	pub, err := OpenPublisher(cfg.Events, logger, background)
	if err != nil {
		return nil, fmt.Errorf("open events: %w", err)
	}
	opts.Publisher = pub

	store, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		pub.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	engine := engagement.New(repo.New(store), opts)

	var dataDir string
	if store.Backend() == "sqlite" {
		dataDir = cfg.Store.Dir
	}
	checker := health.NewChecker(store, dataDir, logger)

	srv := api.NewServer(engine, api.Options{
		DefaultTarget: cfg.Weekly.DefaultTarget,
		CORSOrigins:   cfg.API.CORSOrigins,
		RateLimit:     cfg.API.RateLimit,
		RateBurst:     cfg.API.RateBurst,
		EnableMetrics: cfg.Telemetry.Prometheus,
		Logger:        logger,
		Version:       Version,
		Health:        checker,
	})

	logger.Info("daemon ready",
		"store", store.Backend(),
		"events", cfg.Events.Backend,
		"seed", opts.Seed,
		"challenges", len(opts.Catalog.Challenges))

	return &Daemon{
		Config:    cfg,
		Store:     store,
		Engine:    engine,
		Publisher: pub,
		Server:    srv,
		Health:    checker,
		Logger:    logger,
	}, nil
}

// EngineOptions builds the engine options that do not depend on a store:
// the catalog (built-in or from file, with tier point overrides), the seed
// algorithm and claim strictness.
func EngineOptions(cfg Config, logger *slog.Logger) (engagement.Options, error) {
	catalog := engagement.DefaultCatalog()
	if cfg.Rotation.CatalogFile != "" {
		var err error
		catalog, err = engagement.LoadCatalogFile(cfg.Rotation.CatalogFile)
		if err != nil {
			return engagement.Options{}, fmt.Errorf("load catalog %s: %w", cfg.Rotation.CatalogFile, err)
		}
	}
	if len(cfg.Weekly.TierPoints) > 0 {
		if err := catalog.OverridePoints(cfg.Weekly.TierPoints); err != nil {
			return engagement.Options{}, fmt.Errorf("weekly tier_points: %w", err)
		}
	}

	seed, err := engagement.ParseSeedAlgorithm(cfg.Rotation.SeedAlgorithm)
	if err != nil {
		return engagement.Options{}, fmt.Errorf("rotation: %w", err)
	}

	return engagement.Options{
		Catalog:      catalog,
		Seed:         seed,
		StrictClaims: cfg.Weekly.StrictClaims,
		Logger:       logger,
	}, nil
}

// OpenStore opens the configured document store backend and wraps it with
// latency metrics.
func OpenStore(ctx context.Context, cfg StoreConfig) (*docstore.Instrumented, error) {
	var (
		store docstore.Store
		err   error
	)
	switch cfg.Backend {
	case "", "sqlite":
		store, err = sqlite.Open(cfg.Dir)
	case "postgres":
		store, err = postgres.Open(ctx, cfg.DSN)
	case "firestore":
		store, err = firestoredb.Open(ctx, firestoredb.Config{
			ProjectID:       cfg.ProjectID,
			CredentialsFile: cfg.CredentialsFile,
		})
	case "mongo":
		store, err = openMongo(ctx, cfg)
	case "memory":
		store = docstore.NewMemory()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	backend := cfg.Backend
	if backend == "" {
		backend = "sqlite"
	}
	return docstore.Instrument(store, backend), nil
}

func openMongo(ctx context.Context, cfg StoreConfig) (*mongo.Store, error) {
	s, err := mongo.Open(ctx, cfg.DSN, cfg.Database)
	if err != nil {
		return nil, err
	}
	for _, coll := range []string{repo.CollPointsEvents, repo.CollPairWeeklyHistory} {
		if err := s.EnsureIndexes(ctx, coll); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// OpenPublisher returns the event sink. Events are always logged; with the
// amqp backend they are also published to the exchange. When background is
// set, failed deliveries are queued for the retry loop Serve runs.
func OpenPublisher(cfg EventsConfig, logger *slog.Logger, background bool) (domain.EventPublisher, error) {
	logPub := events.NewLogPublisher(logger)
	switch cfg.Backend {
	case "", "log":
		return logPub, nil
	case "amqp":
		amqpPub, err := events.DialAMQP(cfg.AMQPURL, cfg.Exchange)
		if err != nil {
			return nil, err
		}
		return withRemote(logPub, amqpPub, background, logger), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

// withRemote fans events out to the log and a remote publisher.
func withRemote(logPub, remote domain.EventPublisher, background bool, logger *slog.Logger) events.Multi {
	if background {
		remote = events.NewRetrying(remote, events.DefaultRetryConfig(), logger)
	}
	return events.Multi{logPub, remote}
}

// retryLoops returns the retry queues inside pub that need a Run loop.
func retryLoops(pub domain.EventPublisher) []*events.Retrying {
	multi, ok := pub.(events.Multi)
	if !ok {
		return nil
	}
	var out []*events.Retrying
	for _, p := range multi {
		if r, ok := p.(*events.Retrying); ok {
			out = append(out, r)
		}
	}
	return out
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Background loops
	go d.Health.Run(ctx)
	go d.Server.RunJanitor(ctx)
	for _, r := range retryLoops(d.Publisher) {
		go r.Run(ctx)
	}

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           d.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			d.Logger.Warn("http shutdown", "error", err)
		}
	}()

	fmt.Printf("sunbird serving on http://%s\n", addr)
	fmt.Printf("  Store: %s\n", d.Store.Backend())
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() error {
	if d.cancel != nil {
		d.cancel()
	}
	var errs []error
	if d.Publisher != nil {
		errs = append(errs, d.Publisher.Close())
	}
	if d.Store != nil {
		errs = append(errs, d.Store.Close())
	}
	return errors.Join(errs...)
}
