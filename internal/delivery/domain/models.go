package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
)

type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "pending"
	DeliveryStatusSuccess DeliveryStatus = "success"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

// DeliveryAttempt records one outbound POST to a subscriber for one event.
// ResponseBody holds at most the first kilobyte of whatever the subscriber
// returned. RetryCount is reserved; nothing increments it yet.
type DeliveryAttempt struct {
	ID             snowflake.ID   `gorm:"primaryKey" json:"id"`
	EventID        snowflake.ID   `gorm:"index;not null" json:"event_id"`
	SubscriptionID snowflake.ID   `gorm:"index;not null" json:"subscription_id"`
	AccountID      snowflake.ID   `gorm:"index;not null" json:"account_id"`
	Platform       string         `gorm:"not null" json:"platform"`
	EventType      string         `gorm:"not null" json:"event_type"`
	CallbackURL    string         `gorm:"not null" json:"callback_url"`
	Status         DeliveryStatus `gorm:"not null" json:"status"`
	StatusCode     *int           `json:"status_code,omitempty"`
	ResponseBody   string         `json:"response_body,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	RetryCount     int            `gorm:"not null;default:0" json:"retry_count"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (DeliveryAttempt) TableName() string { return "delivery_attempts" }

// Envelope is the JSON body posted to subscribers. Signing covers the exact
// marshalled bytes, so the field order here is part of the contract.
type Envelope struct {
	Event          string          `json:"event"`
	Platform       string          `json:"platform"`
	Data           json.RawMessage `json:"data"`
	Timestamp      string          `json:"timestamp"`
	WebhookEventID string          `json:"webhookEventId"`
}
