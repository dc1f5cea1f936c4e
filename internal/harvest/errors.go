package harvest

import (
	"context"
	"errors"
)

// Failure kinds. Components wrap these with fmt.Errorf("...: %w", ...) so
// callers can classify with errors.Is.
var (
	// ErrTransport marks a request that never completed (dial, timeout, DNS).
	ErrTransport = errors.New("transport failure")
	// ErrApplication marks a completed exchange whose payload signals an error.
	ErrApplication = errors.New("application failure")
	// ErrValidation marks a malformed source entry.
	ErrValidation = errors.New("validation failure")
	// ErrSink marks a record that could not be persisted.
	ErrSink = errors.New("sink failure")
	// ErrQueueDrained is the terminal signal returned by a shut down, empty queue.
	ErrQueueDrained = errors.New("queue drained")
)

// Kind labels used in log fields and metric labels.
const (
	KindTransport   = "transport"
	KindApplication = "application"
	KindValidation  = "validation"
	KindSink        = "sink"
	KindCanceled    = "canceled"
	KindUnknown     = "unknown"
)

// Kind returns the failure label for err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrApplication):
		return KindApplication
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrSink):
		return KindSink
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindUnknown
	}
}
