package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// WebhookEvent is the immutable record of one inbound webhook request.
// Payload keeps the raw body bytes; Headers keeps a flattened copy of the
// request headers for audit and replay.
type WebhookEvent struct {
	ID        snowflake.ID   `gorm:"primaryKey" json:"id"`
	Platform  string         `gorm:"index;not null" json:"platform"`
	EventType string         `gorm:"index;not null" json:"event_type"`
	Payload   datatypes.JSON `json:"payload"`
	Headers   datatypes.JSON `json:"headers,omitempty"`
	Verified  bool           `gorm:"not null;default:false" json:"verified"`

	ReceivedAt time.Time `gorm:"index;not null;default:CURRENT_TIMESTAMP" json:"received_at"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }
