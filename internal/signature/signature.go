// Package signature implements per-platform webhook authenticity checks and
// event-type extraction as named strategies looked up by platform name.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
)

// EventTypeUnknown is returned when no strategy can classify the payload.
const EventTypeUnknown = "unknown"

// Hints carries the per-platform header configuration used by the generic
// strategy for platforms without a dedicated implementation.
type Hints struct {
	SignatureHeader string
	EventHeader     string
}

// Strategy authenticates an inbound webhook and derives its event type.
//
// Verify never returns an error: an empty secret means verification is not
// configured for the platform and the request is waved through, while a
// missing or malformed signature header is a plain mismatch.
type Strategy interface {
	Platform() string
	Verify(body []byte, headers http.Header, secret string) bool
	EventType(body []byte, headers http.Header, hints Hints) string
}

// Registry resolves strategies by platform name, falling back to the
// hint-driven generic strategy for unregistered platforms.
type Registry struct {
	strategies map[string]Strategy
	generic    Strategy
}

func NewRegistry(strategies ...Strategy) *Registry {
	registry := &Registry{
		strategies: map[string]Strategy{},
		generic:    &Generic{},
	}
	for _, strategy := range strategies {
		if strategy == nil {
			continue
		}
		platform := strings.ToLower(strings.TrimSpace(strategy.Platform()))
		if platform == "" {
			continue
		}
		registry.strategies[platform] = strategy
	}
	return registry
}

// NewDefaultRegistry registers the built-in platform strategies.
func NewDefaultRegistry() *Registry {
	return NewRegistry(
		&GitHub{},
		&Razorpay{},
		&Stripe{},
		&Shopify{},
	)
}

// Lookup returns the strategy for a platform, or the generic fallback.
func (r *Registry) Lookup(platform string) Strategy {
	if r == nil {
		return &Generic{}
	}
	platform = strings.ToLower(strings.TrimSpace(platform))
	if strategy, ok := r.strategies[platform]; ok {
		return strategy
	}
	return r.generic
}

// Known reports whether a dedicated strategy exists for the platform.
func (r *Registry) Known(platform string) bool {
	if r == nil {
		return false
	}
	_, ok := r.strategies[strings.ToLower(strings.TrimSpace(platform))]
	return ok
}

func hmacSHA256(secret string, message []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(message)
	return mac.Sum(nil)
}

func hmacSHA256Hex(secret string, message []byte) string {
	return hex.EncodeToString(hmacSHA256(secret, message))
}

// equalDigests compares digests in constant time for equal-length inputs;
// a length mismatch is an ordinary mismatch, not an error.
func equalDigests(got, want string) bool {
	return hmac.Equal([]byte(got), []byte(want))
}

// bodyField returns a top-level string field from the JSON body.
func bodyField(body []byte, field string) string {
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	raw, ok := parsed[field]
	if !ok {
		return ""
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

func headerValue(headers http.Header, name string) string {
	if headers == nil || strings.TrimSpace(name) == "" {
		return ""
	}
	return strings.TrimSpace(headers.Get(name))
}
