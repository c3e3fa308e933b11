package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, platform *Platform) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Platform, error)
	FindByName(ctx context.Context, db *gorm.DB, name string) (*Platform, error)
	List(ctx context.Context, db *gorm.DB, activeOnly bool) ([]*Platform, error)
	Update(ctx context.Context, db *gorm.DB, platform *Platform) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
