package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/hookrelay/internal/clock"
	"github.com/smallbiznis/hookrelay/internal/config"
	deliverydomain "github.com/smallbiznis/hookrelay/internal/delivery/domain"
	eventdomain "github.com/smallbiznis/hookrelay/internal/event/domain"
	"github.com/smallbiznis/hookrelay/internal/observability/metrics"
	platformdomain "github.com/smallbiznis/hookrelay/internal/platform/domain"
	"github.com/smallbiznis/hookrelay/internal/signature"
	"github.com/smallbiznis/hookrelay/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock
	repo  eventdomain.Repository

	cfg        config.Config
	holder     *config.DeliveryConfigHolder
	registry   *signature.Registry
	metrics    *metrics.Metrics
	dispatcher deliverydomain.Dispatcher

	platformsvc platformdomain.Service
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  eventdomain.Repository

	Cfg        config.Config
	Holder     *config.DeliveryConfigHolder
	Registry   *signature.Registry
	Metrics    *metrics.Metrics
	Dispatcher deliverydomain.Dispatcher

	Platformsvc platformdomain.Service
}

func NewService(p ServiceParam) eventdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("event.service"),

		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,

		cfg:        p.Cfg,
		holder:     p.Holder,
		registry:   p.Registry,
		metrics:    p.Metrics,
		dispatcher: p.Dispatcher,

		platformsvc: p.Platformsvc,
	}
}

// Ingest implements domain.Service.
func (s *Service) Ingest(ctx context.Context, req eventdomain.IngestRequest) (eventdomain.IngestResult, error) {
	platformName := strings.ToLower(strings.TrimSpace(req.Platform))
	if platformName == "" {
		return eventdomain.IngestResult{}, eventdomain.ErrInvalidPlatform
	}
	if len(req.Body) == 0 {
		return eventdomain.IngestResult{}, eventdomain.ErrEmptyBody
	}

	// Platform rows refine extraction for custom sources; unknown
	// platforms still get ingested through the generic strategy.
	hints := signature.Hints{}
	platform, err := s.platformsvc.GetActiveByName(ctx, platformName)
	switch {
	case err == nil:
		hints = signature.Hints{
			SignatureHeader: platform.SignatureHeader,
			EventHeader:     platform.EventHeader,
		}
	case errors.Is(err, platformdomain.ErrNotFound):
		s.log.Debug("platform not registered, using generic extraction",
			zap.String("platform", platformName),
		)
	default:
		return eventdomain.IngestResult{}, err
	}

	strategy := s.registry.Lookup(platformName)
	secret, _ := s.cfg.PlatformSecret(platformName)
	verified := strategy.Verify(req.Body, req.Headers, secret)

	if !verified && s.holder.Current().RejectUnverified {
		return eventdomain.IngestResult{}, eventdomain.ErrInvalidSignature
	}

	eventType := strategy.EventType(req.Body, req.Headers, hints)

	event := eventdomain.WebhookEvent{
		ID:         s.genID.Generate(),
		Platform:   platformName,
		EventType:  eventType,
		Payload:    datatypes.JSON(req.Body),
		Headers:    flattenHeaders(req.Headers),
		Verified:   verified,
		ReceivedAt: s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, s.db, &event); err != nil {
		return eventdomain.IngestResult{}, err
	}

	s.metrics.RecordEventReceived(ctx, platformName, eventType, verified)

	if !verified {
		s.log.Warn("stored webhook with invalid signature",
			zap.String("event_id", event.ID.String()),
			zap.String("platform", platformName),
			zap.String("event_type", eventType),
		)
	} else {
		s.log.Info("webhook received",
			zap.String("event_id", event.ID.String()),
			zap.String("platform", platformName),
			zap.String("event_type", eventType),
		)
	}

	s.dispatcher.Schedule(event)

	return eventdomain.IngestResult{Event: event}, nil
}

// List implements domain.Service.
func (s *Service) List(ctx context.Context, req eventdomain.ListEventRequest) ([]eventdomain.WebhookEvent, *pagination.PageInfo, error) {
	if req.PageSize <= 0 {
		req.PageSize = 50
	}

	filter := eventdomain.ListFilter{
		Platform:  strings.ToLower(strings.TrimSpace(req.Platform)),
		EventType: strings.TrimSpace(req.EventType),
	}

	items, err := s.repo.List(ctx, s.db, filter, req.Pagination)
	if err != nil {
		return nil, nil, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, req.PageSize, func(item *eventdomain.WebhookEvent) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.ReceivedAt.Format("2006-01-02T15:04:05.999999Z07:00"),
		})
		if err != nil {
			return ""
		}
		return token
	})

	if len(items) > req.PageSize {
		items = items[:req.PageSize]
	}

	events := make([]eventdomain.WebhookEvent, 0, len(items))
	for _, item := range items {
		events = append(events, *item)
	}
	return events, pageInfo, nil
}

// GetByID implements domain.Service.
func (s *Service) GetByID(ctx context.Context, rawID string) (eventdomain.WebhookEvent, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil {
		return eventdomain.WebhookEvent{}, eventdomain.ErrInvalidID
	}

	event, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return eventdomain.WebhookEvent{}, err
	}
	if event == nil {
		return eventdomain.WebhookEvent{}, eventdomain.ErrEventNotFound
	}

	return *event, nil
}

// flattenHeaders keeps the first value of every header. Multi-valued
// headers are rare on webhook requests and the audit copy does not need
// them.
func flattenHeaders(headers map[string][]string) datatypes.JSON {
	if len(headers) == 0 {
		return nil
	}

	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) > 0 {
			flat[key] = values[0]
		}
	}

	raw, err := json.Marshal(flat)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
