package domain

import (
	"context"
	"errors"
	"net/http"

	"github.com/smallbiznis/hookrelay/pkg/db/pagination"
)

type IngestRequest struct {
	Platform string
	Body     []byte
	Headers  http.Header
}

type IngestResult struct {
	Event WebhookEvent
}

type ListEventRequest struct {
	Platform  string
	EventType string

	pagination.Pagination
}

type Service interface {
	// Ingest verifies, records, and fans out one inbound webhook. The
	// delivery attempts run in the background; Ingest returns as soon as
	// the event row is persisted.
	Ingest(context.Context, IngestRequest) (IngestResult, error)
	List(context.Context, ListEventRequest) ([]WebhookEvent, *pagination.PageInfo, error)
	GetByID(ctx context.Context, id string) (WebhookEvent, error)
}

var (
	ErrInvalidPlatform  = errors.New("invalid_platform")
	ErrEmptyBody        = errors.New("empty_body")
	ErrInvalidID        = errors.New("invalid_id")
	ErrEventNotFound    = errors.New("event_not_found")
	ErrInvalidSignature = errors.New("invalid_signature")
)
