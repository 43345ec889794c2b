package outbox

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// delayBounds returns the jitter envelope for a raw delay.
func delayBounds(raw time.Duration) (time.Duration, time.Duration) {
	low := raw + time.Duration(float64(raw)*0.05)
	high := raw + time.Duration(float64(raw)*0.15)
	return low, high
}

func assertDelayInEnvelope(t *testing.T, retryCount int, messageType string, raw time.Duration) {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	low, high := delayBounds(raw)
	for i := 0; i < 50; i++ {
		delay := nextRetryDelay(retryCount, messageType, rng)
		assert.GreaterOrEqual(t, delay, low, "retry %d", retryCount)
		assert.LessOrEqual(t, delay, high, "retry %d", retryCount)
	}
}

func TestEmailBackoffProgression(t *testing.T) {
	assertDelayInEnvelope(t, 1, "email", 60*time.Second)
	assertDelayInEnvelope(t, 2, "email", 120*time.Second)
	assertDelayInEnvelope(t, 3, "email", 240*time.Second)
	// After the third attempt growth slows from 2x to 1.5x.
	assertDelayInEnvelope(t, 4, "email", 480*time.Second)
	assertDelayInEnvelope(t, 5, "email", 720*time.Second)
	assertDelayInEnvelope(t, 6, "email", 1080*time.Second)
}

func TestSMSBackoffUsesShorterBase(t *testing.T) {
	assertDelayInEnvelope(t, 1, "sms", 30*time.Second)
	assertDelayInEnvelope(t, 2, "sms", 60*time.Second)
	assertDelayInEnvelope(t, 4, "sms", 240*time.Second)
}

func TestBackoffIsCapped(t *testing.T) {
	assertDelayInEnvelope(t, 20, "email", 30*time.Minute)
	assertDelayInEnvelope(t, 20, "sms", 15*time.Minute)
}

func TestUnknownTypeFallsBackToEmailPolicy(t *testing.T) {
	assertDelayInEnvelope(t, 1, "push", 60*time.Second)
}

func TestBackoffIsMonotonicUntilCap(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	prevHigh := time.Duration(0)
	for retry := 1; retry <= 8; retry++ {
		delay := nextRetryDelay(retry, "email", rng)
		// Each raw delay at least doubles the jitter headroom of the
		// previous one, so even worst-case jitter keeps the order.
		assert.Greater(t, delay, prevHigh)
		_, prevHigh = delayBounds(rawEmailDelay(retry))
		if prevHigh > 30*time.Minute {
			break
		}
	}
}

func rawEmailDelay(retryCount int) time.Duration {
	if retryCount <= 3 {
		return 60 * time.Second * time.Duration(1<<(retryCount-1))
	}
	delay := 480 * time.Second
	for i := 4; i < retryCount; i++ {
		delay = delay * 3 / 2
	}
	if delay > 30*time.Minute {
		delay = 30 * time.Minute
	}
	return delay
}
