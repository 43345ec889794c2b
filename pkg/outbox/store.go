package outbox

import (
	"context"
	"errors"
	"time"
)

var ErrMessageNotFound = errors.New("outbox message not found")

// Store persists outbox messages. Implementations must treat status
// transitions as conditional updates keyed on the current status so that a
// message cannot be marked sent twice.
type Store interface {
	Insert(ctx context.Context, msg Message) error

	// FetchDue returns up to limit pending messages whose sendAfter has
	// passed and whose nextRetry is unset or has passed, oldest first.
	FetchDue(ctx context.Context, now time.Time, limit int) ([]Message, error)

	MarkSent(ctx context.Context, id string, at time.Time) error

	// MarkRetry schedules another delivery attempt.
	MarkRetry(ctx context.Context, id string, retryCount int, nextRetry time.Time, errMsg string) error

	// MarkFailed marks a message permanently failed; nextRetry is cleared.
	MarkFailed(ctx context.Context, id string, retryCount int, errMsg string) error

	// RequeueFailed flips failed messages whose retryCount is still under
	// their own maxRetries back to pending for immediate processing and
	// returns how many it touched.
	RequeueFailed(ctx context.Context) (int, error)

	Stats(ctx context.Context, since time.Time) (Stats, error)
}
