package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	deliverydomain "github.com/smallbiznis/hookrelay/internal/delivery/domain"
	eventdomain "github.com/smallbiznis/hookrelay/internal/event/domain"
)

// BuildEnvelope produces the exact bytes posted to a subscriber. The same
// bytes feed SignPayload, so subscribers can verify against the raw request
// body without re-serialising.
func BuildEnvelope(event eventdomain.WebhookEvent, at time.Time) ([]byte, error) {
	envelope := deliverydomain.Envelope{
		Event:          event.EventType,
		Platform:       event.Platform,
		Data:           json.RawMessage(event.Payload),
		Timestamp:      at.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		WebhookEventID: event.ID.String(),
	}
	return json.Marshal(envelope)
}

// SignPayload computes the hex HMAC-SHA256 digest carried in the
// X-Webhook-Signature header.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
