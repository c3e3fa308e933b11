package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Subscription registers a callback URL for a platform's events. Events
// lists the event types the subscriber wants; empty means all of them.
type Subscription struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	AccountID   snowflake.ID   `gorm:"index;not null" json:"account_id"`
	Platform    string         `gorm:"index;not null" json:"platform"`
	CallbackURL string         `gorm:"not null" json:"callback_url"`
	Events      datatypes.JSON `json:"events,omitempty"`
	Secret      string         `gorm:"not null" json:"-"`
	IsActive    bool           `gorm:"not null;default:true" json:"is_active"`

	TriggerCount    int64      `gorm:"not null;default:0" json:"trigger_count"`
	FailureCount    int64      `gorm:"not null;default:0" json:"failure_count"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }

// Matches reports whether the subscription wants the given event type.
// An empty or unparseable filter matches everything.
func (s *Subscription) Matches(eventType string) bool {
	events := s.EventFilter()
	if len(events) == 0 {
		return true
	}
	for _, event := range events {
		if event == eventType {
			return true
		}
	}
	return false
}

func (s *Subscription) EventFilter() []string {
	if len(s.Events) == 0 {
		return nil
	}
	var events []string
	if err := json.Unmarshal(s.Events, &events); err != nil {
		return nil
	}
	return events
}
