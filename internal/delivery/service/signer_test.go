package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	eventdomain "github.com/smallbiznis/hookrelay/internal/event/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestBuildEnvelope(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	event := eventdomain.WebhookEvent{
		ID:        node.Generate(),
		Platform:  "github",
		EventType: "push",
		Payload:   datatypes.JSON(`{"ref":"refs/heads/main"}`),
	}
	at := time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC)

	payload, err := BuildEnvelope(event, at)
	require.NoError(t, err)

	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(payload, &envelope))

	assert.JSONEq(t, `"push"`, string(envelope["event"]))
	assert.JSONEq(t, `"github"`, string(envelope["platform"]))
	assert.JSONEq(t, `{"ref":"refs/heads/main"}`, string(envelope["data"]))
	assert.JSONEq(t, `"2025-06-01T12:30:45.000Z"`, string(envelope["timestamp"]))
	assert.JSONEq(t, `"`+event.ID.String()+`"`, string(envelope["webhookEventId"]))

	// The same inputs must produce the same bytes; subscribers verify the
	// signature against the raw body.
	again, err := BuildEnvelope(event, at)
	require.NoError(t, err)
	assert.Equal(t, payload, again)
}

func TestSignPayload(t *testing.T) {
	payload := []byte(`{"event":"push","platform":"github"}`)

	mac := hmac.New(sha256.New, []byte("secret-a"))
	_, _ = mac.Write(payload)
	want := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, SignPayload(payload, "secret-a"))
	assert.NotEqual(t, SignPayload(payload, "secret-a"), SignPayload(payload, "secret-b"))
	assert.NotEqual(t, SignPayload(payload, "secret-a"), SignPayload([]byte(`{}`), "secret-a"))
}
