// Package dispatcher feeds the work queue and runs the worker pool to completion.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/hotel-harvester/internal/harvest"
	"github.com/JakeFAU/hotel-harvester/internal/metrics"
	"github.com/JakeFAU/hotel-harvester/internal/source"
)

const progressEvery = 100

// Queue is the producer side of the work queue.
type Queue interface {
	Enqueue(item harvest.WorkItem)
	DeclareShutdown()
	Len() int
}

// Runner is one member of the worker pool.
type Runner interface {
	Run(ctx context.Context)
}

// Loader provides the source records.
type Loader interface {
	Load(ctx context.Context) ([]source.Record, error)
}

// Config controls Dispatcher behavior.
type Config struct {
	RunID   string
	IDField string
}

// Stats summarizes one run.
type Stats struct {
	RunID    string
	Loaded   int
	Enqueued int
	Skipped  int
}

// Dispatcher owns the producer phase and the lifetime of the worker pool.
type Dispatcher struct {
	queue   Queue
	workers []Runner
	loader  Loader
	cfg     Config
	logger  *zap.Logger
}

// New creates a Dispatcher.
func New(queue Queue, workers []Runner, loader Loader, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.IDField == "" {
		cfg.IDField = source.DefaultIDField
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:   queue,
		workers: workers,
		loader:  loader,
		cfg:     cfg,
		logger:  logger.With(zap.String("run_id", cfg.RunID)),
	}
}

// Run loads and enqueues every valid item, declares shutdown, then starts the
// pool and blocks until every worker has terminated. A load failure aborts the
// run before any worker starts.
func (d *Dispatcher) Run(ctx context.Context) (Stats, error) {
	stats := Stats{RunID: d.cfg.RunID}

	records, err := d.loader.Load(ctx)
	if err != nil {
		return stats, fmt.Errorf("load work items: %w", err)
	}
	stats.Loaded = len(records)
	d.logger.Info("source loaded", zap.Int("records", stats.Loaded))

	for i, rec := range records {
		item, err := rec.Identifier(d.cfg.IDField)
		if err != nil {
			stats.Skipped++
			metrics.ObserveItem(metrics.OutcomeSkipped)
			d.logger.Warn("skipping source entry",
				zap.Int("index", i),
				zap.String("kind", harvest.Kind(err)),
				zap.Error(err),
			)
			continue
		}
		d.queue.Enqueue(item)
		stats.Enqueued++
		if stats.Enqueued%progressEvery == 0 {
			d.logger.Info("enqueue progress", zap.Int("enqueued", stats.Enqueued))
		}
	}
	if stats.Enqueued == 0 {
		d.logger.Warn("no valid city codes found in source")
	}
	d.logger.Info("all items enqueued",
		zap.Int("enqueued", stats.Enqueued),
		zap.Int("skipped", stats.Skipped),
		zap.Int("queue_len", d.queue.Len()),
	)
	d.queue.DeclareShutdown()

	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk Runner) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	wg.Wait()

	d.logger.Info("all workers finished", zap.Int("workers", len(d.workers)))
	return stats, nil
}
