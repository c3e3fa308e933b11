package signature

import "net/http"

// GitHub verifies HMAC-SHA256 signatures carried as `sha256=<hex>` in the
// X-Hub-Signature-256 header.
type GitHub struct{}

func (GitHub) Platform() string { return "github" }

func (GitHub) Verify(body []byte, headers http.Header, secret string) bool {
	if secret == "" {
		return true
	}
	signature := headerValue(headers, "X-Hub-Signature-256")
	if signature == "" {
		return false
	}
	expected := "sha256=" + hmacSHA256Hex(secret, body)
	return equalDigests(signature, expected)
}

func (GitHub) EventType(body []byte, headers http.Header, hints Hints) string {
	if event := headerValue(headers, "X-Github-Event"); event != "" {
		return event
	}
	return EventTypeUnknown
}
