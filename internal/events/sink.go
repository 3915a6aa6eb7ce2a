package events

import "context"

// Sink receives events from the Hub. Implementations must tolerate being
// called from the hub goroutine only (no internal ordering guarantees beyond
// emission order).
type Sink interface {
	Consume(ctx context.Context, evt Event) error
	Close(ctx context.Context) error
}
