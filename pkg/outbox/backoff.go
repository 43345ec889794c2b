package outbox

import (
	"math"
	"math/rand"
	"time"
)

// retryPolicy holds the per-message-type backoff parameters. SMS retries
// sooner and caps lower than email because an SMS retry is cheap and time
// sensitive.
type retryPolicy struct {
	base time.Duration
	cap  time.Duration
}

var retryPolicies = map[string]retryPolicy{
	"email": {base: 60 * time.Second, cap: 30 * time.Minute},
	"sms":   {base: 30 * time.Second, cap: 15 * time.Minute},
}

var defaultPolicy = retryPolicy{base: 60 * time.Second, cap: 30 * time.Minute}

// nextRetryDelay computes the exponential backoff delay for the given retry
// attempt. Growth is 2x for the first three attempts, then slows to 1.5x so
// the delay does not blow up for long-failing messages. The result is capped
// per message type and stretched by a random 5-15% jitter so that messages
// failing at the same moment do not all come back at the same moment.
func nextRetryDelay(retryCount int, messageType string, rng *rand.Rand) time.Duration {
	policy, ok := retryPolicies[messageType]
	if !ok {
		policy = defaultPolicy
	}
	if retryCount < 1 {
		retryCount = 1
	}

	var delay time.Duration
	if retryCount <= 3 {
		delay = policy.base * time.Duration(1<<(retryCount-1))
	} else {
		factor := 8 * math.Pow(1.5, float64(retryCount-4))
		delay = time.Duration(float64(policy.base) * factor)
	}
	if delay > policy.cap {
		delay = policy.cap
	}

	jitter := 0.05 + 0.10*rng.Float64()
	return delay + time.Duration(float64(delay)*jitter)
}
