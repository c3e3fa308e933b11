package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

const testSecret = "whsec_test"

func hexDigest(secret string, message []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestGitHubVerify(t *testing.T) {
	body := []byte(`{"action":"push","repository":{"name":"my-repo"}}`)
	headers := http.Header{}
	headers.Set("X-Hub-Signature-256", "sha256="+hexDigest(testSecret, body))

	strategy := &GitHub{}
	assert.True(t, strategy.Verify(body, headers, testSecret))

	mutated := append([]byte{}, body...)
	mutated[0] ^= 0x01
	assert.False(t, strategy.Verify(mutated, headers, testSecret), "mutated body must fail verification")

	headers.Set("X-Hub-Signature-256", "sha256="+hexDigest("wrong", body))
	assert.False(t, strategy.Verify(body, headers, testSecret), "signature from wrong secret must fail")

	assert.False(t, strategy.Verify(body, http.Header{}, testSecret), "missing signature header must fail")

	assert.True(t, strategy.Verify(body, http.Header{}, ""), "verification is skipped without a configured secret")
}

func TestRazorpayVerify(t *testing.T) {
	body := []byte(`{"event":"payment.captured"}`)
	headers := http.Header{}
	headers.Set("X-Razorpay-Signature", hexDigest(testSecret, body))

	strategy := &Razorpay{}
	assert.True(t, strategy.Verify(body, headers, testSecret))

	headers.Set("X-Razorpay-Signature", hexDigest(testSecret, []byte(`{"event":"payment.failed"}`)))
	assert.False(t, strategy.Verify(body, headers, testSecret), "signature over a different body must fail")
}

func TestStripeVerify(t *testing.T) {
	body := []byte(`{"id":"evt_123","type":"payment_intent.succeeded"}`)
	timestamp := "1700000000"
	digest := hexDigest(testSecret, []byte(timestamp+"."+string(body)))

	headers := http.Header{}
	headers.Set("Stripe-Signature", fmt.Sprintf("t=%s,v1=%s", timestamp, digest))

	strategy := &Stripe{}
	assert.True(t, strategy.Verify(body, headers, testSecret))

	headers.Set("Stripe-Signature", "v1="+digest)
	assert.False(t, strategy.Verify(body, headers, testSecret), "missing timestamp must fail")

	headers.Set("Stripe-Signature", "t="+timestamp)
	assert.False(t, strategy.Verify(body, headers, testSecret), "missing digest must fail")

	headers.Set("Stripe-Signature", fmt.Sprintf("t=%s,v1=%s", "1700000001", digest))
	assert.False(t, strategy.Verify(body, headers, testSecret), "altered timestamp must fail")
}

func TestShopifyVerify(t *testing.T) {
	body := []byte(`{"id":12345,"email":"customer@example.com"}`)
	mac := hmac.New(sha256.New, []byte(testSecret))
	_, _ = mac.Write(body)

	headers := http.Header{}
	headers.Set("X-Shopify-Hmac-Sha256", base64.StdEncoding.EncodeToString(mac.Sum(nil)))

	strategy := &Shopify{}
	assert.True(t, strategy.Verify(body, headers, testSecret))

	headers.Set("X-Shopify-Hmac-Sha256", base64.StdEncoding.EncodeToString([]byte("not the digest here, no sir....")))
	assert.False(t, strategy.Verify(body, headers, testSecret), "bogus digest must fail")
}

// The compare contract: equal-length digests that differ at any byte position
// must all be rejected, regardless of where the first mismatch occurs.
func TestVerifyRejectsEqualLengthMismatches(t *testing.T) {
	body := []byte(`{"event":"order.created"}`)
	valid := hexDigest(testSecret, body)

	strategy := &Razorpay{}
	for i := 0; i < len(valid); i++ {
		forged := []byte(valid)
		if forged[i] == 'a' {
			forged[i] = 'b'
		} else {
			forged[i] = 'a'
		}
		if string(forged) == valid {
			continue
		}

		headers := http.Header{}
		headers.Set("X-Razorpay-Signature", string(forged))
		assert.False(t, strategy.Verify(body, headers, testSecret), "mismatch at position %d must fail", i)
	}
}

func TestEventTypeExtraction(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		body     string
		headers  map[string]string
		hints    Hints
		want     string
	}{{
		name:     "github header",
		strategy: &GitHub{},
		body:     `{}`,
		headers:  map[string]string{"X-Github-Event": "push"},
		want:     "push",
	}, {
		name:     "github missing header",
		strategy: &GitHub{},
		body:     `{}`,
		want:     EventTypeUnknown,
	}, {
		name:     "razorpay body event",
		strategy: &Razorpay{},
		body:     `{"event":"payment.captured"}`,
		want:     "payment.captured",
	}, {
		name:     "stripe body type",
		strategy: &Stripe{},
		body:     `{"type":"payment_intent.succeeded"}`,
		want:     "payment_intent.succeeded",
	}, {
		name:     "shopify topic header",
		strategy: &Shopify{},
		body:     `{}`,
		headers:  map[string]string{"X-Shopify-Topic": "orders/create"},
		want:     "orders/create",
	}, {
		name:     "generic configured header",
		strategy: &Generic{},
		body:     `{"event":"ignored"}`,
		headers:  map[string]string{"X-Custom-Event": "invoice.paid"},
		hints:    Hints{EventHeader: "X-Custom-Event"},
		want:     "invoice.paid",
	}, {
		name:     "generic body event fallback",
		strategy: &Generic{},
		body:     `{"event":"build.finished"}`,
		want:     "build.finished",
	}, {
		name:     "generic body type fallback",
		strategy: &Generic{},
		body:     `{"type":"user.created"}`,
		want:     "user.created",
	}, {
		name:     "generic malformed body",
		strategy: &Generic{},
		body:     `not-json`,
		want:     EventTypeUnknown,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			for key, value := range tt.headers {
				headers.Set(key, value)
			}
			got := tt.strategy.EventType([]byte(tt.body), headers, tt.hints)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistryLookup(t *testing.T) {
	registry := NewDefaultRegistry()

	assert.Equal(t, "github", registry.Lookup("GitHub").Platform())
	assert.True(t, registry.Known("stripe"))
	assert.False(t, registry.Known("jenkins"))
	assert.Equal(t, "generic", registry.Lookup("jenkins").Platform())
}
