package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/hookrelay/internal/clock"
	platformdomain "github.com/smallbiznis/hookrelay/internal/platform/domain"
	"github.com/smallbiznis/hookrelay/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock
	repo  platformdomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  platformdomain.Repository
}

func NewService(p ServiceParam) platformdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("platform.service"),

		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Create implements domain.Service.
func (s *Service) Create(ctx context.Context, req platformdomain.CreatePlatformRequest) (platformdomain.Platform, error) {
	name := strings.ToLower(strings.TrimSpace(req.Name))
	if name == "" {
		return platformdomain.Platform{}, platformdomain.ErrInvalidName
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		return platformdomain.Platform{}, platformdomain.ErrInvalidDisplayName
	}

	existing, err := s.repo.FindByName(ctx, s.db, name)
	if err != nil {
		return platformdomain.Platform{}, err
	}
	if existing != nil {
		return platformdomain.Platform{}, platformdomain.ErrPlatformExists
	}

	now := s.clock.Now()
	platform := platformdomain.Platform{
		ID:              s.genID.Generate(),
		Name:            name,
		DisplayName:     displayName,
		SignatureHeader: strings.TrimSpace(req.SignatureHeader),
		EventHeader:     strings.TrimSpace(req.EventHeader),
		DocsURL:         strings.TrimSpace(req.DocsURL),
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Insert(ctx, s.db, &platform); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return platformdomain.Platform{}, platformdomain.ErrPlatformExists
		}
		return platformdomain.Platform{}, err
	}

	return platform, nil
}

// List implements domain.Service.
func (s *Service) List(ctx context.Context, req platformdomain.ListPlatformRequest) ([]platformdomain.Platform, error) {
	items, err := s.repo.List(ctx, s.db, req.ActiveOnly)
	if err != nil {
		return nil, err
	}

	platforms := make([]platformdomain.Platform, 0, len(items))
	for _, item := range items {
		platforms = append(platforms, *item)
	}
	return platforms, nil
}

// GetActiveByName implements domain.Service.
func (s *Service) GetActiveByName(ctx context.Context, name string) (platformdomain.Platform, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return platformdomain.Platform{}, platformdomain.ErrInvalidName
	}

	platform, err := s.repo.FindByName(ctx, s.db, name)
	if err != nil {
		return platformdomain.Platform{}, err
	}
	if platform == nil || !platform.IsActive {
		return platformdomain.Platform{}, platformdomain.ErrNotFound
	}

	return *platform, nil
}

// Update implements domain.Service.
func (s *Service) Update(ctx context.Context, req platformdomain.UpdatePlatformRequest) (platformdomain.Platform, error) {
	id, err := s.parseID(req.ID)
	if err != nil {
		return platformdomain.Platform{}, err
	}

	platform, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return platformdomain.Platform{}, err
	}
	if platform == nil {
		return platformdomain.Platform{}, platformdomain.ErrNotFound
	}

	if req.DisplayName != nil {
		displayName := strings.TrimSpace(*req.DisplayName)
		if displayName == "" {
			return platformdomain.Platform{}, platformdomain.ErrInvalidDisplayName
		}
		platform.DisplayName = displayName
	}
	if req.SignatureHeader != nil {
		platform.SignatureHeader = strings.TrimSpace(*req.SignatureHeader)
	}
	if req.EventHeader != nil {
		platform.EventHeader = strings.TrimSpace(*req.EventHeader)
	}
	if req.DocsURL != nil {
		platform.DocsURL = strings.TrimSpace(*req.DocsURL)
	}
	if req.IsActive != nil {
		platform.IsActive = *req.IsActive
	}
	platform.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, s.db, platform); err != nil {
		return platformdomain.Platform{}, err
	}

	return *platform, nil
}

// Delete implements domain.Service.
func (s *Service) Delete(ctx context.Context, rawID string) error {
	id, err := s.parseID(rawID)
	if err != nil {
		return err
	}

	platform, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if platform == nil {
		return platformdomain.ErrNotFound
	}

	return s.repo.Delete(ctx, s.db, id)
}

func (s *Service) parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, platformdomain.ErrInvalidID
	}
	return id, nil
}
