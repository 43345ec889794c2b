package signature

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateHMAC(t *testing.T) {
	v := NewValidator()

	t.Run("valid signature round-trips", func(t *testing.T) {
		payloads := []string{
			`{"event":"appointment.created"}`,
			"",
			"plain text body",
			`{"nested":{"a":[1,2,3]}}`,
		}
		for _, payload := range payloads {
			if payload == "" {
				continue
			}
			sig := Sign(payload, "secret-key")
			assert.True(t, v.ValidateHMAC(payload, sig, "secret-key"), "payload %q", payload)
		}
	})

	t.Run("single bit flip invalidates", func(t *testing.T) {
		payload := `{"event":"payment.succeeded"}`
		sig := Sign(payload, "s3cret")

		// Flip one nibble at every position.
		for i := 0; i < len(sig); i++ {
			mutated := []byte(sig)
			if mutated[i] == 'a' {
				mutated[i] = 'b'
			} else {
				mutated[i] = 'a'
			}
			assert.False(t, v.ValidateHMAC(payload, string(mutated), "s3cret"), "position %d", i)
		}
	})

	t.Run("tampered payload invalidates", func(t *testing.T) {
		payload := `{"id":"a1"}`
		sig := Sign(payload, "s3cret")
		assert.False(t, v.ValidateHMAC(payload+" ", sig, "s3cret"))
	})

	t.Run("wrong secret invalidates", func(t *testing.T) {
		sig := Sign("body", "right")
		assert.False(t, v.ValidateHMAC("body", sig, "wrong"))
	})

	t.Run("empty inputs are invalid, not errors", func(t *testing.T) {
		sig := Sign("body", "secret")
		assert.False(t, v.ValidateHMAC("", sig, "secret"))
		assert.False(t, v.ValidateHMAC("body", "", "secret"))
		assert.False(t, v.ValidateHMAC("body", sig, ""))
	})

	t.Run("non-hex signature is invalid", func(t *testing.T) {
		assert.False(t, v.ValidateHMAC("body", "not-hex-at-all!", "secret"))
	})

	t.Run("length mismatch is invalid", func(t *testing.T) {
		sig := Sign("body", "secret")
		assert.False(t, v.ValidateHMAC("body", sig[:32], "secret"))
	})
}

func TestValidateStripe(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := NewValidator(WithClock(func() time.Time { return now }))

	stripeHeader := func(ts int64, payload, secret string) string {
		signed := fmt.Sprintf("%d.%s", ts, payload)
		return fmt.Sprintf("t=%d,v1=%s", ts, Sign(signed, secret))
	}

	t.Run("valid header", func(t *testing.T) {
		payload := `{"type":"checkout.session.completed"}`
		header := stripeHeader(now.Unix(), payload, "whsec_test")
		assert.True(t, v.ValidateStripe(payload, header, "whsec_test"))
	})

	t.Run("replay window boundary", func(t *testing.T) {
		payload := `{"type":"invoice.paid"}`

		accepted := stripeHeader(now.Unix()-299, payload, "whsec_test")
		assert.True(t, v.ValidateStripe(payload, accepted, "whsec_test"))

		atLimit := stripeHeader(now.Unix()-300, payload, "whsec_test")
		assert.True(t, v.ValidateStripe(payload, atLimit, "whsec_test"))

		rejected := stripeHeader(now.Unix()-301, payload, "whsec_test")
		assert.False(t, v.ValidateStripe(payload, rejected, "whsec_test"))
	})

	t.Run("future timestamps also bounded", func(t *testing.T) {
		payload := `{"type":"invoice.paid"}`
		header := stripeHeader(now.Unix()+301, payload, "whsec_test")
		assert.False(t, v.ValidateStripe(payload, header, "whsec_test"))
	})

	t.Run("missing fields", func(t *testing.T) {
		payload := `{"a":1}`
		assert.False(t, v.ValidateStripe(payload, "t=1700000000", "whsec_test"))
		assert.False(t, v.ValidateStripe(payload, "v1=deadbeef", "whsec_test"))
		assert.False(t, v.ValidateStripe(payload, "", "whsec_test"))
		assert.False(t, v.ValidateStripe(payload, "garbage header", "whsec_test"))
	})

	t.Run("unparsable timestamp", func(t *testing.T) {
		assert.False(t, v.ValidateStripe(`{"a":1}`, "t=abc,v1=deadbeef", "whsec_test"))
	})

	t.Run("signature over wrong payload", func(t *testing.T) {
		header := stripeHeader(now.Unix(), `{"a":1}`, "whsec_test")
		assert.False(t, v.ValidateStripe(`{"a":2}`, header, "whsec_test"))
	})
}

func TestValidateGitHub(t *testing.T) {
	v := NewValidator()
	payload := `{"ref":"refs/heads/main"}`

	assert.True(t, v.ValidateGitHub(payload, "sha256="+Sign(payload, "gh-secret"), "gh-secret"))
	assert.False(t, v.ValidateGitHub(payload, Sign(payload, "gh-secret"), "gh-secret"))
	assert.False(t, v.ValidateGitHub(payload, "sha1="+Sign(payload, "gh-secret"), "gh-secret"))
}
