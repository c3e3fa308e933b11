package signature

import "net/http"

// Generic handles platforms without a dedicated strategy, driven by the
// configured header names. With no signature header configured there is
// nothing to check, so the request passes.
type Generic struct{}

func (Generic) Platform() string { return "generic" }

func (Generic) Verify(body []byte, headers http.Header, secret string) bool {
	// Unknown schemes cannot be recomputed; signature enforcement only
	// applies to registered platforms.
	_ = body
	_ = headers
	_ = secret
	return true
}

func (Generic) EventType(body []byte, headers http.Header, hints Hints) string {
	if event := headerValue(headers, hints.EventHeader); event != "" {
		return event
	}
	if event := bodyField(body, "event"); event != "" {
		return event
	}
	if event := bodyField(body, "type"); event != "" {
		return event
	}
	return EventTypeUnknown
}
