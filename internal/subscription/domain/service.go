package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/hookrelay/pkg/db/pagination"
)

type CreateSubscriptionRequest struct {
	Platform    string
	CallbackURL string
	Events      []string
	// Secret is optional; a random one is generated when empty.
	Secret string
}

type UpdateSubscriptionRequest struct {
	ID          string
	CallbackURL *string
	Events      *[]string
	Secret      *string
	IsActive    *bool
}

type ListSubscriptionRequest struct {
	Platform   string
	ActiveOnly bool

	pagination.Pagination
}

type Service interface {
	Create(context.Context, CreateSubscriptionRequest) (Subscription, error)
	List(context.Context, ListSubscriptionRequest) ([]Subscription, *pagination.PageInfo, error)
	GetByID(ctx context.Context, id string) (Subscription, error)
	Update(context.Context, UpdateSubscriptionRequest) (Subscription, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrInvalidAccount      = errors.New("invalid_account")
	ErrInvalidPlatform     = errors.New("invalid_platform")
	ErrInvalidCallbackURL  = errors.New("invalid_callback_url")
	ErrInvalidID           = errors.New("invalid_id")
	ErrSubscriptionExists  = errors.New("subscription_exists")
	ErrSubscriptionUnknown = errors.New("subscription_not_found")
)
