package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/hookrelay/internal/subscription/domain"
	"github.com/smallbiznis/hookrelay/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

const subscriptionColumns = `id, account_id, platform, callback_url, events, secret, is_active,
	 trigger_count, failure_count, last_triggered_at, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (
			id, account_id, platform, callback_url, events, secret, is_active,
			trigger_count, failure_count, last_triggered_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		subscription.ID,
		subscription.AccountID,
		subscription.Platform,
		subscription.CallbackURL,
		subscription.Events,
		subscription.Secret,
		subscription.IsActive,
		subscription.TriggerCount,
		subscription.FailureCount,
		subscription.LastTriggeredAt,
		subscription.CreatedAt,
		subscription.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions WHERE account_id = ? AND id = ?`,
		accountID,
		id,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) FindByTarget(ctx context.Context, db *gorm.DB, accountID snowflake.ID, platform, callbackURL string) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE account_id = ? AND platform = ? AND callback_url = ?
		 LIMIT 1`,
		accountID,
		platform,
		callbackURL,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter subscriptiondomain.ListFilter, page pagination.Pagination) ([]*subscriptiondomain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE account_id = ?`
	args := []interface{}{filter.AccountID}

	if filter.Platform != "" {
		query += ` AND platform = ?`
		args = append(args, filter.Platform)
	}
	if filter.ActiveOnly {
		query += ` AND is_active = true`
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

	var subscriptions []*subscriptiondomain.Subscription
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&subscriptions).Error; err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (r *repo) ListActiveByPlatform(ctx context.Context, db *gorm.DB, platform string) ([]*subscriptiondomain.Subscription, error) {
	var subscriptions []*subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE platform = ? AND is_active = true
		 ORDER BY created_at ASC`,
		platform,
	).Scan(&subscriptions).Error
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET
			callback_url = ?, events = ?, secret = ?, is_active = ?, updated_at = ?
		 WHERE account_id = ? AND id = ?`,
		subscription.CallbackURL,
		subscription.Events,
		subscription.Secret,
		subscription.IsActive,
		subscription.UpdatedAt,
		subscription.AccountID,
		subscription.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM subscriptions WHERE account_id = ? AND id = ?`,
		accountID,
		id,
	).Error
}

func (r *repo) ApplyDeliveryOutcome(ctx context.Context, db *gorm.DB, id snowflake.ID, failed bool, at time.Time) error {
	failureDelta := 0
	if failed {
		failureDelta = 1
	}
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions SET
			trigger_count = trigger_count + 1,
			failure_count = failure_count + ?,
			last_triggered_at = ?,
			updated_at = ?
		 WHERE id = ?`,
		failureDelta,
		at,
		at,
		id,
	).Error
}
