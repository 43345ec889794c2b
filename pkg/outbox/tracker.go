package outbox

import "context"

// Tracker receives delivery outcomes for downstream consumers. Tracking is
// best effort; a tracker error never changes the message's stored status.
type Tracker interface {
	Delivered(ctx context.Context, msg Message)
}

type nopTracker struct{}

func (nopTracker) Delivered(context.Context, Message) {}

// NewNopTracker returns a Tracker that discards every event.
func NewNopTracker() Tracker { return nopTracker{} }
