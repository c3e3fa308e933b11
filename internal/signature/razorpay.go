package signature

import "net/http"

// Razorpay verifies a bare hex HMAC-SHA256 digest in X-Razorpay-Signature.
type Razorpay struct{}

func (Razorpay) Platform() string { return "razorpay" }

func (Razorpay) Verify(body []byte, headers http.Header, secret string) bool {
	if secret == "" {
		return true
	}
	signature := headerValue(headers, "X-Razorpay-Signature")
	if signature == "" {
		return false
	}
	return equalDigests(signature, hmacSHA256Hex(secret, body))
}

func (Razorpay) EventType(body []byte, headers http.Header, hints Hints) string {
	if event := bodyField(body, "event"); event != "" {
		return event
	}
	return EventTypeUnknown
}
