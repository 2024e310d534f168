package audit

import (
	"context"
)

// Sink receives every emitted event.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Store is a Sink that can also be queried.
type Store interface {
	Sink
	ListByEmail(ctx context.Context, email string) ([]Event, error)
	Recent(ctx context.Context, limit int) ([]Event, error)
}
