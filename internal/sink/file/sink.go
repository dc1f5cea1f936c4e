// Package file implements the append-only, line-delimited JSON result sink.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/hotel-harvester/internal/harvest"
	"github.com/JakeFAU/hotel-harvester/internal/metrics"
)

// Sink appends one JSON record per line to files under root. Each
// destination has its own lock, held only for the duration of one write.
type Sink struct {
	root   string
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns a sink rooted at root, creating the directory if needed.
func New(root string, logger *zap.Logger) (*Sink, error) {
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create sink dir %s: %w", root, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		root:   root,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// Path returns the file backing destination.
func (s *Sink) Path(destination string) string {
	return filepath.Join(s.root, destination)
}

// Append serializes record onto a single line and appends it to destination.
// The returned error wraps harvest.ErrSink; callers log it and carry on.
func (s *Sink) Append(ctx context.Context, destination string, record any) error {
	err := s.append(ctx, destination, record)
	metrics.ObserveSinkWrite(destination, err)
	return err
}

func (s *Sink) append(ctx context.Context, destination string, record any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("append to %s: %w: %w", destination, harvest.ErrSink, err)
	}
	if strings.TrimSpace(destination) == "" {
		return fmt.Errorf("destination is required: %w", harvest.ErrSink)
	}
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record for %s: %w: %w", destination, harvest.ErrSink, err)
	}
	line = append(line, '\n')

	lock := s.lockFor(destination)
	lock.Lock()
	defer lock.Unlock()

	target := s.Path(destination)
	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open %s: %w: %w", target, harvest.ErrSink, err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w: %w", target, harvest.ErrSink, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w: %w", target, harvest.ErrSink, err)
	}
	s.logger.Debug("record appended", zap.String("destination", destination), zap.Int("bytes", len(line)))
	return nil
}

func (s *Sink) lockFor(destination string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[destination]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[destination] = lock
	}
	return lock
}
