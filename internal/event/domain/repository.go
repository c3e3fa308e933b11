package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/hookrelay/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Platform  string
	EventType string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *WebhookEvent) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*WebhookEvent, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*WebhookEvent, error)
}
