package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/hookrelay/internal/accountctx"
	deliverydomain "github.com/smallbiznis/hookrelay/internal/delivery/domain"
	"github.com/smallbiznis/hookrelay/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	repo deliverydomain.Repository
}

type ServiceParam struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo deliverydomain.Repository
}

func NewService(p ServiceParam) deliverydomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("delivery.service"),

		repo: p.Repo,
	}
}

// ListLogs implements domain.Service.
func (s *Service) ListLogs(ctx context.Context, req deliverydomain.ListLogRequest) ([]deliverydomain.DeliveryAttempt, *pagination.PageInfo, error) {
	accountID, ok := accountctx.AccountIDFromContext(ctx)
	if !ok || accountID == 0 {
		return nil, nil, deliverydomain.ErrInvalidAccount
	}

	if req.PageSize <= 0 {
		req.PageSize = 50
	}

	filter := deliverydomain.LogFilter{AccountID: accountID}

	if raw := strings.TrimSpace(req.SubscriptionID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			return nil, nil, deliverydomain.ErrInvalidSubscription
		}
		filter.SubscriptionID = id
	}

	if raw := strings.TrimSpace(req.Status); raw != "" {
		status := deliverydomain.DeliveryStatus(raw)
		switch status {
		case deliverydomain.DeliveryStatusPending, deliverydomain.DeliveryStatusSuccess, deliverydomain.DeliveryStatusFailed:
			filter.Status = status
		default:
			return nil, nil, deliverydomain.ErrInvalidStatus
		}
	}

	items, err := s.repo.List(ctx, s.db, filter, req.Pagination)
	if err != nil {
		return nil, nil, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, req.PageSize, func(item *deliverydomain.DeliveryAttempt) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format("2006-01-02T15:04:05.999999Z07:00"),
		})
		if err != nil {
			return ""
		}
		return token
	})

	if len(items) > req.PageSize {
		items = items[:req.PageSize]
	}

	attempts := make([]deliverydomain.DeliveryAttempt, 0, len(items))
	for _, item := range items {
		attempts = append(attempts, *item)
	}
	return attempts, pageInfo, nil
}

// ListByEvent implements domain.Service.
func (s *Service) ListByEvent(ctx context.Context, rawEventID string) ([]deliverydomain.DeliveryAttempt, error) {
	accountID, ok := accountctx.AccountIDFromContext(ctx)
	if !ok || accountID == 0 {
		return nil, deliverydomain.ErrInvalidAccount
	}

	eventID, err := snowflake.ParseString(strings.TrimSpace(rawEventID))
	if err != nil {
		return nil, deliverydomain.ErrInvalidEvent
	}

	items, err := s.repo.ListByEvent(ctx, s.db, accountID, eventID)
	if err != nil {
		return nil, err
	}

	attempts := make([]deliverydomain.DeliveryAttempt, 0, len(items))
	for _, item := range items {
		attempts = append(attempts, *item)
	}
	return attempts, nil
}
