package domain

import (
	"context"
	"errors"
)

type CreatePlatformRequest struct {
	Name            string
	DisplayName     string
	SignatureHeader string
	EventHeader     string
	DocsURL         string
}

type UpdatePlatformRequest struct {
	ID              string
	DisplayName     *string
	SignatureHeader *string
	EventHeader     *string
	DocsURL         *string
	IsActive        *bool
}

type ListPlatformRequest struct {
	ActiveOnly bool
}

type Service interface {
	Create(context.Context, CreatePlatformRequest) (Platform, error)
	List(context.Context, ListPlatformRequest) ([]Platform, error)
	// GetActiveByName resolves an active platform; ErrNotFound covers both
	// unknown and inactive platforms.
	GetActiveByName(ctx context.Context, name string) (Platform, error)
	Update(context.Context, UpdatePlatformRequest) (Platform, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidDisplayName = errors.New("invalid_display_name")
	ErrInvalidID          = errors.New("invalid_id")
	ErrPlatformExists     = errors.New("platform_exists")
	ErrNotFound           = errors.New("not_found")
)
