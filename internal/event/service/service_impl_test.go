package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/hookrelay/internal/clock"
	"github.com/smallbiznis/hookrelay/internal/config"
	eventdomain "github.com/smallbiznis/hookrelay/internal/event/domain"
	eventrepository "github.com/smallbiznis/hookrelay/internal/event/repository"
	platformdomain "github.com/smallbiznis/hookrelay/internal/platform/domain"
	"github.com/smallbiznis/hookrelay/internal/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type stubDispatcher struct {
	mu        sync.Mutex
	scheduled []eventdomain.WebhookEvent
}

func (d *stubDispatcher) Schedule(event eventdomain.WebhookEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scheduled = append(d.scheduled, event)
}

func (d *stubDispatcher) FanOut(ctx context.Context, event eventdomain.WebhookEvent) (int, error) {
	d.Schedule(event)
	return 0, nil
}

func (d *stubDispatcher) scheduledEvents() []eventdomain.WebhookEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]eventdomain.WebhookEvent(nil), d.scheduled...)
}

type stubPlatformService struct {
	platforms map[string]platformdomain.Platform
}

func (s *stubPlatformService) Create(ctx context.Context, req platformdomain.CreatePlatformRequest) (platformdomain.Platform, error) {
	return platformdomain.Platform{}, nil
}

func (s *stubPlatformService) List(ctx context.Context, req platformdomain.ListPlatformRequest) ([]platformdomain.Platform, error) {
	return nil, nil
}

func (s *stubPlatformService) GetActiveByName(ctx context.Context, name string) (platformdomain.Platform, error) {
	platform, ok := s.platforms[strings.ToLower(strings.TrimSpace(name))]
	if !ok || !platform.IsActive {
		return platformdomain.Platform{}, platformdomain.ErrNotFound
	}
	return platform, nil
}

func (s *stubPlatformService) Update(ctx context.Context, req platformdomain.UpdatePlatformRequest) (platformdomain.Platform, error) {
	return platformdomain.Platform{}, nil
}

func (s *stubPlatformService) Delete(ctx context.Context, id string) error {
	return nil
}

type ingestEnv struct {
	svc        eventdomain.Service
	dispatcher *stubDispatcher
	holder     *config.DeliveryConfigHolder
	db         *gorm.DB
}

func newIngestEnv(t *testing.T, cfg config.Config) *ingestEnv {
	t.Helper()
	return newIngestEnvWithLogger(t, cfg, zap.NewNop())
}

func newIngestEnvWithLogger(t *testing.T, cfg config.Config, log *zap.Logger) *ingestEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&eventdomain.WebhookEvent{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	dispatcher := &stubDispatcher{}
	holder := &config.DeliveryConfigHolder{}
	holder.Store(config.DeliveryConfig{TimeoutSeconds: 10, MaxConcurrency: 4, ResponseBodyLimit: 1000})

	platformsvc := &stubPlatformService{
		platforms: map[string]platformdomain.Platform{
			"github": {Name: "github", IsActive: true},
			"acme": {
				Name:            "acme",
				IsActive:        true,
				SignatureHeader: "X-Acme-Signature",
				EventHeader:     "X-Acme-Event",
			},
		},
	}

	svc := NewService(ServiceParam{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       clock.NewSystem(),
		Repo:        eventrepository.Provide(),
		Cfg:         cfg,
		Holder:      holder,
		Registry:    signature.NewDefaultRegistry(),
		Dispatcher:  dispatcher,
		Platformsvc: platformsvc,
	})

	return &ingestEnv{svc: svc, dispatcher: dispatcher, holder: holder, db: db}
}

func githubSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestIngestVerifiedEvent(t *testing.T) {
	secret := "github-secret"
	env := newIngestEnv(t, config.Config{PlatformSecrets: map[string]string{"github": secret}})

	body := []byte(`{"ref":"refs/heads/main"}`)
	headers := http.Header{}
	headers.Set("X-GitHub-Event", "push")
	headers.Set("X-Hub-Signature-256", githubSignature(secret, body))

	resp, err := env.svc.Ingest(context.Background(), eventdomain.IngestRequest{
		Platform: "GitHub",
		Body:     body,
		Headers:  headers,
	})
	require.NoError(t, err)

	assert.Equal(t, "github", resp.Event.Platform)
	assert.Equal(t, "push", resp.Event.EventType)
	assert.True(t, resp.Event.Verified)

	stored, err := env.svc.GetByID(context.Background(), resp.Event.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "push", stored.EventType)
	assert.True(t, stored.Verified)
	assert.JSONEq(t, string(body), string(stored.Payload))

	scheduled := env.dispatcher.scheduledEvents()
	require.Len(t, scheduled, 1)
	assert.Equal(t, resp.Event.ID, scheduled[0].ID)
}

func TestIngestStoresUnverifiedByDefault(t *testing.T) {
	env := newIngestEnv(t, config.Config{PlatformSecrets: map[string]string{"github": "github-secret"}})

	body := []byte(`{"ref":"refs/heads/main"}`)
	headers := http.Header{}
	headers.Set("X-GitHub-Event", "push")
	headers.Set("X-Hub-Signature-256", "sha256="+strings.Repeat("0", 64))

	resp, err := env.svc.Ingest(context.Background(), eventdomain.IngestRequest{
		Platform: "github",
		Body:     body,
		Headers:  headers,
	})
	require.NoError(t, err)
	assert.False(t, resp.Event.Verified)

	// Unverified events still fan out; subscribers see the verified flag.
	assert.Len(t, env.dispatcher.scheduledEvents(), 1)
}

func TestIngestRejectsUnverifiedWhenConfigured(t *testing.T) {
	env := newIngestEnv(t, config.Config{PlatformSecrets: map[string]string{"github": "github-secret"}})
	env.holder.Store(config.DeliveryConfig{
		TimeoutSeconds:    10,
		MaxConcurrency:    4,
		ResponseBodyLimit: 1000,
		RejectUnverified:  true,
	})

	headers := http.Header{}
	headers.Set("X-GitHub-Event", "push")

	_, err := env.svc.Ingest(context.Background(), eventdomain.IngestRequest{
		Platform: "github",
		Body:     []byte(`{"ref":"refs/heads/main"}`),
		Headers:  headers,
	})
	assert.ErrorIs(t, err, eventdomain.ErrInvalidSignature)

	var count int64
	require.NoError(t, env.db.Model(&eventdomain.WebhookEvent{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, env.dispatcher.scheduledEvents())
}

func TestIngestSkipsVerificationWithoutSecret(t *testing.T) {
	env := newIngestEnv(t, config.Config{})

	headers := http.Header{}
	headers.Set("X-GitHub-Event", "release")

	resp, err := env.svc.Ingest(context.Background(), eventdomain.IngestRequest{
		Platform: "github",
		Body:     []byte(`{"action":"published"}`),
		Headers:  headers,
	})
	require.NoError(t, err)
	assert.True(t, resp.Event.Verified)
	assert.Equal(t, "release", resp.Event.EventType)
}

func TestIngestUnknownPlatformUsesGenericExtraction(t *testing.T) {
	env := newIngestEnv(t, config.Config{})

	resp, err := env.svc.Ingest(context.Background(), eventdomain.IngestRequest{
		Platform: "internal-crm",
		Body:     []byte(`{"event":"contact.created","data":{}}`),
		Headers:  http.Header{},
	})
	require.NoError(t, err)
	assert.True(t, resp.Event.Verified)
	assert.Equal(t, "contact.created", resp.Event.EventType)
}

func TestIngestLogsUnregisteredPlatform(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	env := newIngestEnvWithLogger(t, config.Config{}, zap.New(core))

	resp, err := env.svc.Ingest(context.Background(), eventdomain.IngestRequest{
		Platform: "internal-crm",
		Body:     []byte(`{"event":"contact.created"}`),
		Headers:  http.Header{},
	})
	require.NoError(t, err)
	assert.Equal(t, "contact.created", resp.Event.EventType)

	entries := logs.FilterMessage("platform not registered, using generic extraction").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	assert.Equal(t, "internal-crm", entries[0].ContextMap()["platform"])
}

func TestIngestUsesPlatformHeaderHints(t *testing.T) {
	env := newIngestEnv(t, config.Config{})

	headers := http.Header{}
	headers.Set("X-Acme-Event", "invoice.settled")

	resp, err := env.svc.Ingest(context.Background(), eventdomain.IngestRequest{
		Platform: "acme",
		Body:     []byte(`{"data":{}}`),
		Headers:  headers,
	})
	require.NoError(t, err)
	assert.Equal(t, "invoice.settled", resp.Event.EventType)
}

func TestIngestValidation(t *testing.T) {
	env := newIngestEnv(t, config.Config{})

	_, err := env.svc.Ingest(context.Background(), eventdomain.IngestRequest{
		Platform: "  ",
		Body:     []byte(`{}`),
	})
	assert.ErrorIs(t, err, eventdomain.ErrInvalidPlatform)

	_, err = env.svc.Ingest(context.Background(), eventdomain.IngestRequest{
		Platform: "github",
		Body:     nil,
	})
	assert.ErrorIs(t, err, eventdomain.ErrEmptyBody)
}

func TestListEvents(t *testing.T) {
	env := newIngestEnv(t, config.Config{})

	for i := 0; i < 3; i++ {
		headers := http.Header{}
		headers.Set("X-GitHub-Event", "push")
		_, err := env.svc.Ingest(context.Background(), eventdomain.IngestRequest{
			Platform: "github",
			Body:     []byte(fmt.Sprintf(`{"n":%d}`, i)),
			Headers:  headers,
		})
		require.NoError(t, err)
	}
	_, err := env.svc.Ingest(context.Background(), eventdomain.IngestRequest{
		Platform: "internal-crm",
		Body:     []byte(`{"event":"contact.created"}`),
	})
	require.NoError(t, err)

	all, pageInfo, err := env.svc.List(context.Background(), eventdomain.ListEventRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.False(t, pageInfo.HasMore)

	pushes, _, err := env.svc.List(context.Background(), eventdomain.ListEventRequest{
		Platform:  "github",
		EventType: "push",
	})
	require.NoError(t, err)
	assert.Len(t, pushes, 3)
}
