package signature

import (
	"encoding/base64"
	"net/http"
)

// Shopify verifies a base64 HMAC-SHA256 digest in X-Shopify-Hmac-Sha256.
type Shopify struct{}

func (Shopify) Platform() string { return "shopify" }

func (Shopify) Verify(body []byte, headers http.Header, secret string) bool {
	if secret == "" {
		return true
	}
	signature := headerValue(headers, "X-Shopify-Hmac-Sha256")
	if signature == "" {
		return false
	}
	expected := base64.StdEncoding.EncodeToString(hmacSHA256(secret, body))
	return equalDigests(signature, expected)
}

func (Shopify) EventType(body []byte, headers http.Header, hints Hints) string {
	if event := headerValue(headers, "X-Shopify-Topic"); event != "" {
		return event
	}
	return EventTypeUnknown
}
