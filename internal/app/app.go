// Package app builds and runs one harvest: it owns the long-lived services
// (sinks, mirrors, blob stores, ops server) and wires them into the
// dispatcher and worker pool.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/hotel-harvester/internal/config"
	"github.com/JakeFAU/hotel-harvester/internal/dispatcher"
	"github.com/JakeFAU/hotel-harvester/internal/harvest"
	"github.com/JakeFAU/hotel-harvester/internal/lookup"
	"github.com/JakeFAU/hotel-harvester/internal/merge"
	"github.com/JakeFAU/hotel-harvester/internal/queue/memory"
	"github.com/JakeFAU/hotel-harvester/internal/retry"
	"github.com/JakeFAU/hotel-harvester/internal/server"
	"github.com/JakeFAU/hotel-harvester/internal/sink"
	"github.com/JakeFAU/hotel-harvester/internal/sink/file"
	pgsink "github.com/JakeFAU/hotel-harvester/internal/sink/postgres"
	pubsubsink "github.com/JakeFAU/hotel-harvester/internal/sink/pubsub"
	"github.com/JakeFAU/hotel-harvester/internal/source"
	gcsstorage "github.com/JakeFAU/hotel-harvester/internal/storage/gcs"
	localstorage "github.com/JakeFAU/hotel-harvester/internal/storage/local"
	"github.com/JakeFAU/hotel-harvester/internal/worker"
)

// Option customizes Build.
type Option func(*options)

type options struct {
	doer lookup.Doer
}

// WithDoer replaces the HTTP client used for lookups.
func WithDoer(d lookup.Doer) Option {
	return func(o *options) { o.doer = d }
}

// App contains the services of one harvest run.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	runID     string
	loader    *memoLoader
	dispatch  *dispatcher.Dispatcher
	ops       *server.Server
	exporter  *merge.Exporter
	publisher *pubsubsink.Publisher
	store     *pgsink.Store
	gcs       *gcsstorage.BlobStore
}

// Build creates the application's dependencies. Mirrors and the export store
// are only created when configured.
func Build(ctx context.Context, cfg config.Config, runID string, logger *zap.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("run_id", runID))

	a := &App{
		cfg:    cfg,
		logger: logger,
		runID:  runID,
		loader: &memoLoader{inner: source.NewFile(cfg.Source.Path)},
		ops:    server.New(logger.Named("ops")),
	}

	fileSink, err := file.New(cfg.Output.Dir, logger.Named("sink"))
	if err != nil {
		return nil, fmt.Errorf("file sink init failed: %w", err)
	}

	mirrors, err := a.setupMirrors(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	out := sink.NewFanout(fileSink, logger.Named("fanout"), mirrors...)

	retrier := retry.New(retry.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BackoffUnit: cfg.Retry.BackoffUnit,
	}, logger.Named("retry"))

	client, err := lookup.New(lookup.Config{
		URL:                cfg.Lookup.URL,
		Username:           cfg.Lookup.Username,
		Password:           cfg.Lookup.Password,
		Timeout:            cfg.Lookup.Timeout,
		Detailed:           cfg.Lookup.Detailed,
		SummaryDestination: cfg.Output.Summaries,
	}, o.doer, retrier, out, logger.Named("lookup"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("lookup client init failed: %w", err)
	}

	queue := memory.NewQueue()
	workers := make([]dispatcher.Runner, 0, cfg.Pool.Size)
	for i := 0; i < cfg.Pool.Size; i++ {
		workers = append(workers, workerFor(queue, client, out, cfg, logger, i))
	}
	a.dispatch = dispatcher.New(queue, workers, a.loader, dispatcher.Config{
		RunID:   runID,
		IDField: cfg.Source.IDField,
	}, logger.Named("dispatcher"))

	if cfg.Export.Enabled {
		if err := a.setupExport(ctx, fileSink.Path(cfg.Output.Results)); err != nil {
			a.Close()
			return nil, err
		}
	}

	logger.Info("application built",
		zap.Int("pool_size", cfg.Pool.Size),
		zap.Int("mirrors", len(mirrors)),
		zap.Bool("export", cfg.Export.Enabled),
	)
	return a, nil
}

func (a *App) setupMirrors(ctx context.Context) ([]sink.Mirror, error) {
	var mirrors []sink.Mirror
	if a.cfg.PubSub.Enabled() {
		pub, err := pubsubsink.Dial(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.Topic, a.runID)
		if err != nil {
			return nil, fmt.Errorf("pubsub mirror init failed: %w", err)
		}
		a.publisher = pub
		mirrors = append(mirrors, sink.Mirror{Name: "pubsub", Sink: pub})
		a.logger.Info("Pub/Sub mirror initialized",
			zap.String("project", a.cfg.PubSub.ProjectID),
			zap.String("topic", a.cfg.PubSub.Topic),
		)
	}
	if a.cfg.DB.DSN != "" {
		store, err := pgsink.New(ctx, pgsink.Config{
			DSN:   a.cfg.DB.DSN,
			Table: a.cfg.DB.Table,
			RunID: a.runID,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres mirror init failed: %w", err)
		}
		a.store = store
		mirrors = append(mirrors, sink.Mirror{Name: "postgres", Sink: store})
		a.logger.Info("postgres mirror initialized", zap.String("table", a.cfg.DB.Table))
	}
	return mirrors, nil
}

func (a *App) setupExport(ctx context.Context, resultsPath string) error {
	var store merge.BlobStore
	switch a.cfg.Export.Backend {
	case "gcs":
		gcs, err := gcsstorage.Dial(ctx, gcsstorage.Config{
			Bucket:   a.cfg.Export.Bucket,
			Metadata: map[string]string{"run_id": a.runID},
		})
		if err != nil {
			return fmt.Errorf("gcs export store init failed: %w", err)
		}
		a.gcs = gcs
		store = gcs
		a.logger.Debug("GCS export backend", zap.String("bucket", a.cfg.Export.Bucket))
	default:
		local, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Export.Dir})
		if err != nil {
			return fmt.Errorf("local export store init failed: %w", err)
		}
		store = local
		a.logger.Debug("local export backend", zap.String("dir", filepath.Clean(a.cfg.Export.Dir)))
	}
	exporter, err := merge.New(store, merge.Config{
		ResultsPath: resultsPath,
		Object:      a.cfg.Export.Object,
		IDField:     a.cfg.Source.IDField,
	}, a.logger.Named("export"))
	if err != nil {
		return fmt.Errorf("exporter init failed: %w", err)
	}
	a.exporter = exporter
	return nil
}

// Run executes the harvest and blocks until every worker has terminated. The
// ops server, when configured, runs alongside and stops with the harvest. Ops
// server and export failures are logged and do not fail the run.
func (a *App) Run(ctx context.Context) (dispatcher.Stats, error) {
	var (
		g     errgroup.Group
		stats dispatcher.Stats
	)
	opsCtx, stopOps := context.WithCancel(ctx)
	defer stopOps()

	if a.cfg.Metrics.Port > 0 {
		g.Go(func() error {
			if err := a.ops.ListenAndServe(opsCtx, a.cfg.Metrics.Port); err != nil {
				a.logger.Error("ops server failed", zap.Int("port", a.cfg.Metrics.Port), zap.Error(err))
			}
			return nil
		})
	}
	g.Go(func() error {
		defer stopOps()
		a.ops.SetReady(true)
		defer a.ops.SetReady(false)
		var err error
		stats, err = a.dispatch.Run(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return stats, err
	}

	a.logger.Info("harvest complete",
		zap.Int("loaded", stats.Loaded),
		zap.Int("enqueued", stats.Enqueued),
		zap.Int("skipped", stats.Skipped),
	)

	if a.exporter != nil && ctx.Err() == nil {
		if _, err := a.exporter.Run(ctx, a.loader.records); err != nil {
			a.logger.Error("export failed", zap.String("kind", harvest.Kind(err)), zap.Error(err))
		}
	}
	return stats, nil
}

// Close releases mirrors and clients. It is safe to call on a partially built App.
func (a *App) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("pubsub mirror close failed", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
}

// memoLoader keeps the loaded records for the export step.
type memoLoader struct {
	inner   dispatcher.Loader
	records []source.Record
}

func (m *memoLoader) Load(ctx context.Context) ([]source.Record, error) {
	records, err := m.inner.Load(ctx)
	if err != nil {
		return nil, err
	}
	m.records = records
	return records, nil
}

func workerFor(q harvest.Queue, l harvest.Lookup, out harvest.Sink, cfg config.Config, logger *zap.Logger, i int) *worker.Worker {
	return worker.New(q, l, out, worker.Config{
		ResultsDestination: cfg.Output.Results,
	}, logger.Named("worker").With(zap.Int("index", i)))
}
