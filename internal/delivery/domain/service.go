package domain

import (
	"context"
	"errors"

	eventdomain "github.com/smallbiznis/hookrelay/internal/event/domain"
	"github.com/smallbiznis/hookrelay/pkg/db/pagination"
)

// Dispatcher fans one persisted event out to its matching subscribers.
type Dispatcher interface {
	// Schedule runs the fan-out in the background, detached from the
	// inbound request's context.
	Schedule(event eventdomain.WebhookEvent)
	// FanOut runs the fan-out synchronously and reports how many
	// deliveries were attempted.
	FanOut(ctx context.Context, event eventdomain.WebhookEvent) (int, error)
}

type ListLogRequest struct {
	SubscriptionID string
	Status         string

	pagination.Pagination
}

type Service interface {
	ListLogs(context.Context, ListLogRequest) ([]DeliveryAttempt, *pagination.PageInfo, error)
	ListByEvent(ctx context.Context, eventID string) ([]DeliveryAttempt, error)
}

var (
	ErrInvalidAccount      = errors.New("invalid_account")
	ErrInvalidSubscription = errors.New("invalid_subscription")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidEvent        = errors.New("invalid_event")
)
