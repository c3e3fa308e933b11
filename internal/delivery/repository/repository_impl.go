package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	deliverydomain "github.com/smallbiznis/hookrelay/internal/delivery/domain"
	"github.com/smallbiznis/hookrelay/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() deliverydomain.Repository {
	return &repo{}
}

const attemptColumns = `id, event_id, subscription_id, account_id, platform, event_type,
	 callback_url, status, status_code, response_body, error_message, retry_count,
	 delivered_at, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, attempt *deliverydomain.DeliveryAttempt) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO delivery_attempts (
			id, event_id, subscription_id, account_id, platform, event_type,
			callback_url, status, status_code, response_body, error_message, retry_count,
			delivered_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.ID,
		attempt.EventID,
		attempt.SubscriptionID,
		attempt.AccountID,
		attempt.Platform,
		attempt.EventType,
		attempt.CallbackURL,
		attempt.Status,
		attempt.StatusCode,
		attempt.ResponseBody,
		attempt.ErrorMessage,
		attempt.RetryCount,
		attempt.DeliveredAt,
		attempt.CreatedAt,
		attempt.UpdatedAt,
	).Error
}

func (r *repo) MarkOutcome(ctx context.Context, db *gorm.DB, attempt *deliverydomain.DeliveryAttempt) error {
	return db.WithContext(ctx).Exec(
		`UPDATE delivery_attempts SET
			status = ?, status_code = ?, response_body = ?, error_message = ?,
			delivered_at = ?, updated_at = ?
		 WHERE id = ?`,
		attempt.Status,
		attempt.StatusCode,
		attempt.ResponseBody,
		attempt.ErrorMessage,
		attempt.DeliveredAt,
		attempt.UpdatedAt,
		attempt.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID) (*deliverydomain.DeliveryAttempt, error) {
	var attempt deliverydomain.DeliveryAttempt
	err := db.WithContext(ctx).Raw(
		`SELECT `+attemptColumns+`
		 FROM delivery_attempts WHERE account_id = ? AND id = ?`,
		accountID,
		id,
	).Scan(&attempt).Error
	if err != nil {
		return nil, err
	}
	if attempt.ID == 0 {
		return nil, nil
	}
	return &attempt, nil
}

func (r *repo) ListByEvent(ctx context.Context, db *gorm.DB, accountID, eventID snowflake.ID) ([]*deliverydomain.DeliveryAttempt, error) {
	var attempts []*deliverydomain.DeliveryAttempt
	err := db.WithContext(ctx).Raw(
		`SELECT `+attemptColumns+`
		 FROM delivery_attempts
		 WHERE account_id = ? AND event_id = ?
		 ORDER BY created_at ASC`,
		accountID,
		eventID,
	).Scan(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter deliverydomain.LogFilter, page pagination.Pagination) ([]*deliverydomain.DeliveryAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM delivery_attempts WHERE account_id = ?`
	args := []interface{}{filter.AccountID}

	if filter.SubscriptionID != 0 {
		query += ` AND subscription_id = ?`
		args = append(args, filter.SubscriptionID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}

	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		query += ` AND (created_at, id) < (?, ?)`
		args = append(args, cursor.CreatedAt, cursor.ID)
	}

	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, page.PageSize+1)

	var attempts []*deliverydomain.DeliveryAttempt
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}
