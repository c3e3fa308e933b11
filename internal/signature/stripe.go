package signature

import (
	"net/http"
	"strings"
)

// Stripe verifies the timestamped scheme carried in Stripe-Signature:
// a comma-separated list of key=value pairs where `t` is the timestamp and
// `v1` the hex digest over "<t>.<body>". Both fields are required.
type Stripe struct{}

func (Stripe) Platform() string { return "stripe" }

func (Stripe) Verify(body []byte, headers http.Header, secret string) bool {
	if secret == "" {
		return true
	}
	header := headerValue(headers, "Stripe-Signature")
	if header == "" {
		return false
	}

	timestamp, digest := parseTimestampedSignature(header)
	if timestamp == "" || digest == "" {
		return false
	}

	signed := timestamp + "." + string(body)
	return equalDigests(digest, hmacSHA256Hex(secret, []byte(signed)))
}

func (Stripe) EventType(body []byte, headers http.Header, hints Hints) string {
	if event := bodyField(body, "type"); event != "" {
		return event
	}
	return EventTypeUnknown
}

func parseTimestampedSignature(header string) (timestamp, digest string) {
	for _, element := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(element), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			digest = value
		}
	}
	return timestamp, digest
}
