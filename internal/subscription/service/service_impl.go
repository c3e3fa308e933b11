package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/hookrelay/internal/accountctx"
	"github.com/smallbiznis/hookrelay/internal/clock"
	platformdomain "github.com/smallbiznis/hookrelay/internal/platform/domain"
	subscriptiondomain "github.com/smallbiznis/hookrelay/internal/subscription/domain"
	"github.com/smallbiznis/hookrelay/pkg/db"
	"github.com/smallbiznis/hookrelay/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var callbackURLPattern = regexp.MustCompile(`^https?://.+`)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock
	repo  subscriptiondomain.Repository

	platformsvc platformdomain.Service
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  subscriptiondomain.Repository

	Platformsvc platformdomain.Service
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,

		platformsvc: p.Platformsvc,
	}
}

// Create implements domain.Service.
func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateSubscriptionRequest) (subscriptiondomain.Subscription, error) {
	accountID, ok := accountctx.AccountIDFromContext(ctx)
	if !ok || accountID == 0 {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidAccount
	}

	platform, err := s.platformsvc.GetActiveByName(ctx, req.Platform)
	if err != nil {
		if errors.Is(err, platformdomain.ErrNotFound) || errors.Is(err, platformdomain.ErrInvalidName) {
			return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidPlatform
		}
		return subscriptiondomain.Subscription{}, err
	}

	callbackURL := strings.TrimSpace(req.CallbackURL)
	if !callbackURLPattern.MatchString(callbackURL) {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidCallbackURL
	}

	existing, err := s.repo.FindByTarget(ctx, s.db, accountID, platform.Name, callbackURL)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if existing != nil {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionExists
	}

	secret := strings.TrimSpace(req.Secret)
	if secret == "" {
		secret, err = generateSecret()
		if err != nil {
			return subscriptiondomain.Subscription{}, err
		}
	}

	events, err := encodeEvents(req.Events)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	now := s.clock.Now()
	subscription := subscriptiondomain.Subscription{
		ID:          s.genID.Generate(),
		AccountID:   accountID,
		Platform:    platform.Name,
		CallbackURL: callbackURL,
		Events:      events,
		Secret:      secret,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, s.db, &subscription); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionExists
		}
		return subscriptiondomain.Subscription{}, err
	}

	return subscription, nil
}

// List implements domain.Service.
func (s *Service) List(ctx context.Context, req subscriptiondomain.ListSubscriptionRequest) ([]subscriptiondomain.Subscription, *pagination.PageInfo, error) {
	accountID, ok := accountctx.AccountIDFromContext(ctx)
	if !ok || accountID == 0 {
		return nil, nil, subscriptiondomain.ErrInvalidAccount
	}

	if req.PageSize <= 0 {
		req.PageSize = 50
	}

	filter := subscriptiondomain.ListFilter{
		AccountID:  accountID,
		Platform:   strings.ToLower(strings.TrimSpace(req.Platform)),
		ActiveOnly: req.ActiveOnly,
	}

	items, err := s.repo.List(ctx, s.db, filter, req.Pagination)
	if err != nil {
		return nil, nil, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, req.PageSize, func(item *subscriptiondomain.Subscription) string {
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

	subscriptions := make([]subscriptiondomain.Subscription, 0, len(items))
	for _, item := range items {
		subscriptions = append(subscriptions, *item)
	}
	return subscriptions, pageInfo, nil
}

// GetByID implements domain.Service.
func (s *Service) GetByID(ctx context.Context, rawID string) (subscriptiondomain.Subscription, error) {
	accountID, ok := accountctx.AccountIDFromContext(ctx)
	if !ok || accountID == 0 {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidAccount
	}

	id, err := s.parseID(rawID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	subscription, err := s.repo.FindByID(ctx, s.db, accountID, id)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if subscription == nil {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionUnknown
	}

	return *subscription, nil
}

// Update implements domain.Service.
func (s *Service) Update(ctx context.Context, req subscriptiondomain.UpdateSubscriptionRequest) (subscriptiondomain.Subscription, error) {
	accountID, ok := accountctx.AccountIDFromContext(ctx)
	if !ok || accountID == 0 {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidAccount
	}

	id, err := s.parseID(req.ID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	subscription, err := s.repo.FindByID(ctx, s.db, accountID, id)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if subscription == nil {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionUnknown
	}

	if req.CallbackURL != nil {
		callbackURL := strings.TrimSpace(*req.CallbackURL)
		if !callbackURLPattern.MatchString(callbackURL) {
			return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidCallbackURL
		}
		subscription.CallbackURL = callbackURL
	}
	if req.Events != nil {
		events, err := encodeEvents(*req.Events)
		if err != nil {
			return subscriptiondomain.Subscription{}, err
		}
		subscription.Events = events
	}
	if req.Secret != nil && strings.TrimSpace(*req.Secret) != "" {
		subscription.Secret = strings.TrimSpace(*req.Secret)
	}
	if req.IsActive != nil {
		subscription.IsActive = *req.IsActive
	}
	subscription.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, subscription); err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	return *subscription, nil
}

// Delete implements domain.Service.
func (s *Service) Delete(ctx context.Context, rawID string) error {
	accountID, ok := accountctx.AccountIDFromContext(ctx)
	if !ok || accountID == 0 {
		return subscriptiondomain.ErrInvalidAccount
	}

	id, err := s.parseID(rawID)
	if err != nil {
		return err
	}

	subscription, err := s.repo.FindByID(ctx, s.db, accountID, id)
	if err != nil {
		return err
	}
	if subscription == nil {
		return subscriptiondomain.ErrSubscriptionUnknown
	}

	return s.repo.Delete(ctx, s.db, accountID, id)
}

func (s *Service) parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, subscriptiondomain.ErrInvalidID
	}
	return id, nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func encodeEvents(events []string) (datatypes.JSON, error) {
	cleaned := make([]string, 0, len(events))
	for _, event := range events {
		event = strings.TrimSpace(event)
		if event != "" {
			cleaned = append(cleaned, event)
		}
	}
	if len(cleaned) == 0 {
		return nil, nil
	}

	raw, err := json.Marshal(cleaned)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
