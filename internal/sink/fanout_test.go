package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/hotel-harvester/internal/harvest"
)

type recordingSink struct {
	mu      sync.Mutex
	err     error
	records map[string][]any
}

func newRecordingSink(err error) *recordingSink {
	return &recordingSink{err: err, records: make(map[string][]any)}
}

func (s *recordingSink) Append(_ context.Context, destination string, record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records[destination] = append(s.records[destination], record)
	return nil
}

func TestFanoutForwardsToAllSinks(t *testing.T) {
	t.Parallel()

	primary := newRecordingSink(nil)
	mirror := newRecordingSink(nil)
	f := NewFanout(primary, zap.NewNop(), Mirror{Name: "pubsub", Sink: mirror})

	rec := harvest.ResultRecord{CityCode: "AAA"}
	require.NoError(t, f.Append(context.Background(), "results.json", rec))
	require.Equal(t, []any{rec}, primary.records["results.json"])
	require.Equal(t, []any{rec}, mirror.records["results.json"])
}

func TestFanoutMirrorFailureIsLoggedNotReturned(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	primary := newRecordingSink(nil)
	broken := newRecordingSink(fmt.Errorf("publish: %w", harvest.ErrSink))
	f := NewFanout(primary, zap.New(core), Mirror{Name: "postgres", Sink: broken})

	require.NoError(t, f.Append(context.Background(), "results.json", harvest.ResultRecord{CityCode: "AAA"}))
	require.Len(t, primary.records["results.json"], 1)

	entries := logs.FilterMessage("mirror append failed").All()
	require.Len(t, entries, 1)
	require.Equal(t, "postgres", entries[0].ContextMap()["mirror"])
	require.Equal(t, harvest.KindSink, entries[0].ContextMap()["kind"])
}

func TestFanoutReturnsPrimaryFailure(t *testing.T) {
	t.Parallel()

	primaryErr := errors.New("disk full")
	mirror := newRecordingSink(nil)
	f := NewFanout(newRecordingSink(primaryErr), nil, Mirror{Name: "pubsub", Sink: mirror})

	err := f.Append(context.Background(), "results.json", harvest.ResultRecord{CityCode: "AAA"})
	require.ErrorIs(t, err, primaryErr)
	require.Len(t, mirror.records["results.json"], 1)
}
