package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	platformdomain "github.com/smallbiznis/hookrelay/internal/platform/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() platformdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, platform *platformdomain.Platform) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO platforms (
			id, name, display_name, signature_header, event_header, docs_url,
			is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		platform.ID,
		platform.Name,
		platform.DisplayName,
		platform.SignatureHeader,
		platform.EventHeader,
		platform.DocsURL,
		platform.IsActive,
		platform.CreatedAt,
		platform.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*platformdomain.Platform, error) {
	var platform platformdomain.Platform
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, display_name, signature_header, event_header, docs_url,
		 is_active, created_at, updated_at
		 FROM platforms WHERE id = ?`,
		id,
	).Scan(&platform).Error
	if err != nil {
		return nil, err
	}
	if platform.ID == 0 {
		return nil, nil
	}
	return &platform, nil
}

func (r *repo) FindByName(ctx context.Context, db *gorm.DB, name string) (*platformdomain.Platform, error) {
	var platform platformdomain.Platform
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, display_name, signature_header, event_header, docs_url,
		 is_active, created_at, updated_at
		 FROM platforms WHERE name = ?`,
		name,
	).Scan(&platform).Error
	if err != nil {
		return nil, err
	}
	if platform.ID == 0 {
		return nil, nil
	}
	return &platform, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, activeOnly bool) ([]*platformdomain.Platform, error) {
	query := `SELECT id, name, display_name, signature_header, event_header, docs_url,
	 is_active, created_at, updated_at
	 FROM platforms`
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY name ASC`

	var platforms []*platformdomain.Platform
	if err := db.WithContext(ctx).Raw(query).Scan(&platforms).Error; err != nil {
		return nil, err
	}
	return platforms, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, platform *platformdomain.Platform) error {
	return db.WithContext(ctx).Exec(
		`UPDATE platforms SET
			display_name = ?, signature_header = ?, event_header = ?, docs_url = ?,
			is_active = ?, updated_at = ?
		 WHERE id = ?`,
		platform.DisplayName,
		platform.SignatureHeader,
		platform.EventHeader,
		platform.DocsURL,
		platform.IsActive,
		platform.UpdatedAt,
		platform.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM platforms WHERE id = ?`, id).Error
}
