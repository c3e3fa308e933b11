package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	eventdomain "github.com/smallbiznis/hookrelay/internal/event/domain"
	"github.com/smallbiznis/hookrelay/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() eventdomain.Repository {
	return &repo{}
}

const eventColumns = `id, platform, event_type, payload, headers, verified, received_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *eventdomain.WebhookEvent) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO webhook_events (
			id, platform, event_type, payload, headers, verified, received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Platform,
		event.EventType,
		event.Payload,
		event.Headers,
		event.Verified,
		event.ReceivedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*eventdomain.WebhookEvent, error) {
	var event eventdomain.WebhookEvent
	err := db.WithContext(ctx).Raw(
		`SELECT `+eventColumns+` FROM webhook_events WHERE id = ?`,
		id,
	).Scan(&event).Error
	if err != nil {
		return nil, err
	}
	if event.ID == 0 {
		return nil, nil
	}
	return &event, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter eventdomain.ListFilter, page pagination.Pagination) ([]*eventdomain.WebhookEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM webhook_events WHERE 1 = 1`
	args := []interface{}{}

	if filter.Platform != "" {
		query += ` AND platform = ?`
		args = append(args, filter.Platform)
	}
	if filter.EventType != "" {
		query += ` AND event_type = ?`
		args = append(args, filter.EventType)
	}

	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		query += ` AND (received_at, id) < (?, ?)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}

	query += ` ORDER BY received_at DESC, id DESC LIMIT ?`
	args = append(args, page.PageSize+1)

	var events []*eventdomain.WebhookEvent
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
