// Package sink combines the primary result sink with optional mirrors.
package sink

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/hotel-harvester/internal/harvest"
)

// Mirror is a secondary destination that receives a copy of every record.
type Mirror struct {
	Name string
	Sink harvest.Sink
}

// Fanout writes each record to the primary sink, then to every mirror.
// Only the primary outcome is returned; mirror failures are logged.
type Fanout struct {
	primary harvest.Sink
	mirrors []Mirror
	logger  *zap.Logger
}

// NewFanout builds a Fanout. With no mirrors it behaves exactly like primary.
func NewFanout(primary harvest.Sink, logger *zap.Logger, mirrors ...Mirror) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{
		primary: primary,
		mirrors: append([]Mirror(nil), mirrors...),
		logger:  logger,
	}
}

// Append implements harvest.Sink.
func (f *Fanout) Append(ctx context.Context, destination string, record any) error {
	err := f.primary.Append(ctx, destination, record)
	for _, m := range f.mirrors {
		if merr := m.Sink.Append(ctx, destination, record); merr != nil {
			f.logger.Warn("mirror append failed",
				zap.String("mirror", m.Name),
				zap.String("destination", destination),
				zap.String("kind", harvest.Kind(merr)),
				zap.Error(merr),
			)
		}
	}
	return err
}
