package harvest

import "context"

// Queue provides the blocking work queue consumed by workers.
type Queue interface {
	Dequeue(ctx context.Context) (WorkItem, error)
}

// Lookup resolves one work item against the remote API.
type Lookup interface {
	Lookup(ctx context.Context, item WorkItem) (LookupResult, error)
}

// Sink appends one record to a named destination.
type Sink interface {
	Append(ctx context.Context, destination string, record any) error
}
