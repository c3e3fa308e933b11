package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/hookrelay/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	AccountID  snowflake.ID
	Platform   string
	ActiveOnly bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID) (*Subscription, error)
	FindByTarget(ctx context.Context, db *gorm.DB, accountID snowflake.ID, platform, callbackURL string) (*Subscription, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*Subscription, error)
	// ListActiveByPlatform spans all accounts; it feeds fan-out matching.
	ListActiveByPlatform(ctx context.Context, db *gorm.DB, platform string) ([]*Subscription, error)
	Update(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	Delete(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID) error
	// ApplyDeliveryOutcome bumps the per-subscription counters in SQL so
	// concurrent deliveries never lose increments.
	ApplyDeliveryOutcome(ctx context.Context, db *gorm.DB, id snowflake.ID, failed bool, at time.Time) error
}
