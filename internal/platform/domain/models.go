package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Platform describes an inbound webhook source and the headers its
// requests carry.
type Platform struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	Name            string       `gorm:"uniqueIndex;not null" json:"name"`
	DisplayName     string       `gorm:"not null" json:"display_name"`
	SignatureHeader string       `json:"signature_header,omitempty"`
	EventHeader     string       `json:"event_header,omitempty"`
	DocsURL         string       `json:"docs_url,omitempty"`
	IsActive        bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Platform) TableName() string { return "platforms" }
