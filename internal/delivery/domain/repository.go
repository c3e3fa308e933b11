package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/hookrelay/pkg/db/pagination"
	"gorm.io/gorm"
)

type LogFilter struct {
	AccountID      snowflake.ID
	SubscriptionID snowflake.ID
	Status         DeliveryStatus
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, attempt *DeliveryAttempt) error
	// MarkOutcome writes the terminal status fields of an attempt.
	MarkOutcome(ctx context.Context, db *gorm.DB, attempt *DeliveryAttempt) error
	FindByID(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID) (*DeliveryAttempt, error)
	// ListByEvent returns the caller's attempts for an event; other
	// accounts' attempts for the same event stay invisible.
	ListByEvent(ctx context.Context, db *gorm.DB, accountID, eventID snowflake.ID) ([]*DeliveryAttempt, error)
	List(ctx context.Context, db *gorm.DB, filter LogFilter, page pagination.Pagination) ([]*DeliveryAttempt, error)
}
