package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// StripeToleranceSeconds is the replay window for Stripe-style signatures.
// Signatures whose timestamp is further than this from the current time are
// rejected regardless of whether the HMAC matches.
const StripeToleranceSeconds = 300

// Kind selects the signature scheme a webhook is validated with.
type Kind string

const (
	KindHMAC   Kind = "hmac"
	KindStripe Kind = "stripe"
	KindNone   Kind = "none"
)

// Validator verifies webhook signatures. The zero value is not usable;
// construct with NewValidator. The clock is injectable so the Stripe
// replay window can be tested deterministically.
type Validator struct {
	now func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock overrides the time source used for replay-window checks.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

func NewValidator(opts ...Option) *Validator {
	v := &Validator{now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateHMAC verifies a hex-encoded HMAC-SHA256 signature computed over the
// raw payload. It returns false, never an error, for empty payload, signature
// or secret, and for a length mismatch. The comparison is constant-time.
//
// The payload must be the untouched request body: re-serializing JSON can
// change whitespace and key order and invalidate the signature.
func (v *Validator) ValidateHMAC(payload, sig, secret string) bool {
	if payload == "" || sig == "" || secret == "" {
		return false
	}
	expected := computeHMAC(payload, secret)
	return constantTimeEqualHex(sig, expected)
}

// ValidateStripe verifies a Stripe-style signature header of the form
// "t=<unix-ts>,v1=<hex>". The signed string is "{t}.{payload}". Headers with
// either field missing, an unparsable timestamp, or a timestamp outside the
// replay window yield false.
func (v *Validator) ValidateStripe(payload, header, secret string) bool {
	if payload == "" || header == "" || secret == "" {
		return false
	}

	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		k, val, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			ts = val
		case "v1":
			sig = val
		}
	}
	if ts == "" || sig == "" {
		return false
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	age := v.now().Unix() - unix
	if age > StripeToleranceSeconds || age < -StripeToleranceSeconds {
		return false
	}

	expected := computeHMAC(ts+"."+payload, secret)
	return constantTimeEqualHex(sig, expected)
}

// ValidateGitHub verifies a GitHub-style "sha256=<hex>" signature header.
func (v *Validator) ValidateGitHub(payload, header, secret string) bool {
	sig, found := strings.CutPrefix(header, "sha256=")
	if !found {
		return false
	}
	return v.ValidateHMAC(payload, sig, secret)
}

// Sign computes the hex-encoded HMAC-SHA256 of payload with secret.
// Exposed for outbound webhook delivery and for tests.
func Sign(payload, secret string) string {
	return computeHMAC(payload, secret)
}

func computeHMAC(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// constantTimeEqualHex compares two hex signatures without leaking timing
// information beyond the length check. hmac.Equal requires raw bytes, so both
// sides are decoded first; a signature that is not valid hex cannot match.
func constantTimeEqualHex(got, expected string) bool {
	gotBytes, err := hex.DecodeString(got)
	if err != nil {
		return false
	}
	expectedBytes, err := hex.DecodeString(expected)
	if err != nil {
		return false
	}
	if len(gotBytes) != len(expectedBytes) {
		return false
	}
	return hmac.Equal(gotBytes, expectedBytes)
}
