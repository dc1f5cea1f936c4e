// Package worker implements the per-item lookup and persistence loop.
package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/hotel-harvester/internal/harvest"
	"github.com/JakeFAU/hotel-harvester/internal/metrics"
)

const defaultResultsDestination = "results.json"

// Config controls Worker behavior.
type Config struct {
	ResultsDestination string
}

// Worker consumes queue items until the queue reports it is drained.
type Worker struct {
	queue  harvest.Queue
	lookup harvest.Lookup
	sink   harvest.Sink
	cfg    Config
	logger *zap.Logger
}

// New constructs a Worker.
func New(
	queue harvest.Queue,
	lookup harvest.Lookup,
	sink harvest.Sink,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.ResultsDestination == "" {
		cfg.ResultsDestination = defaultResultsDestination
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:  queue,
		lookup: lookup,
		sink:   sink,
		cfg:    cfg,
		logger: logger,
	}
}

// Run blocks, processing one item at a time, until the queue is drained or
// ctx is canceled. Both shutdown and cancellation are only observed between
// items.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Debug("worker waiting for work")
	for {
		if ctx.Err() != nil {
			w.logger.Debug("worker canceled", zap.Error(ctx.Err()))
			return
		}
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, harvest.ErrQueueDrained) {
				w.logger.Debug("queue drained, worker terminating")
				return
			}
			if ctx.Err() != nil {
				w.logger.Debug("worker canceled", zap.Error(err))
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued city", zap.String("city_code", string(item)))
		// A dequeued item runs to completion; cancellation is observed on the next pass.
		w.process(context.WithoutCancel(ctx), item)
	}
}

func (w *Worker) process(ctx context.Context, item harvest.WorkItem) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	outcome := metrics.OutcomeSucceeded
	res, err := w.lookup.Lookup(ctx, item)
	if err != nil {
		outcome = metrics.OutcomeFailed
		w.logger.Warn("lookup failed",
			zap.String("city_code", string(item)),
			zap.String("kind", harvest.Kind(err)),
			zap.Error(err),
		)
		res = harvest.EmptyResult(item)
	}

	record := harvest.NewResultRecord(res)
	if err := w.sink.Append(ctx, w.cfg.ResultsDestination, record); err != nil {
		outcome = metrics.OutcomeFailed
		w.logger.Error("result append failed",
			zap.String("city_code", string(item)),
			zap.String("kind", harvest.Kind(err)),
			zap.Error(err),
		)
	} else {
		w.logger.Info("result saved",
			zap.String("city_code", string(item)),
			zap.Int("hotel_count", len(record.HotelCodes)),
		)
	}
	metrics.ObserveItem(outcome)
}
