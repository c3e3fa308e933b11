package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/hookrelay/internal/clock"
	"github.com/smallbiznis/hookrelay/internal/config"
	deliverydomain "github.com/smallbiznis/hookrelay/internal/delivery/domain"
	deliveryrepository "github.com/smallbiznis/hookrelay/internal/delivery/repository"
	deliveryservice "github.com/smallbiznis/hookrelay/internal/delivery/service"
	eventdomain "github.com/smallbiznis/hookrelay/internal/event/domain"
	eventrepository "github.com/smallbiznis/hookrelay/internal/event/repository"
	eventservice "github.com/smallbiznis/hookrelay/internal/event/service"
	platformdomain "github.com/smallbiznis/hookrelay/internal/platform/domain"
	platformrepository "github.com/smallbiznis/hookrelay/internal/platform/repository"
	platformservice "github.com/smallbiznis/hookrelay/internal/platform/service"
	"github.com/smallbiznis/hookrelay/internal/signature"
	subscriptiondomain "github.com/smallbiznis/hookrelay/internal/subscription/domain"
	subscriptionrepository "github.com/smallbiznis/hookrelay/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/hookrelay/internal/subscription/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type noopDispatcher struct{}

func (noopDispatcher) Schedule(event eventdomain.WebhookEvent) {}

func (noopDispatcher) FanOut(ctx context.Context, event eventdomain.WebhookEvent) (int, error) {
	return 0, nil
}

type testServer struct {
	server *Server
	genID  *snowflake.Node
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&platformdomain.Platform{},
		&subscriptiondomain.Subscription{},
		&eventdomain.WebhookEvent{},
		&deliverydomain.DeliveryAttempt{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	sysClock := clock.NewSystem()
	cfg := config.Config{
		PlatformSecrets: map[string]string{"github": "gh-secret"},
	}
	holder := &config.DeliveryConfigHolder{}
	holder.Store(config.DeliveryConfig{TimeoutSeconds: 10, MaxConcurrency: 4, ResponseBodyLimit: 1000})

	platformSvc := platformservice.NewService(platformservice.ServiceParam{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: sysClock,
		Repo:  platformrepository.Provide(),
	})

	subscriptionSvc := subscriptionservice.NewService(subscriptionservice.ServiceParam{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       sysClock,
		Repo:        subscriptionrepository.Provide(),
		Platformsvc: platformSvc,
	})

	eventSvc := eventservice.NewService(eventservice.ServiceParam{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       sysClock,
		Repo:        eventrepository.Provide(),
		Cfg:         cfg,
		Holder:      holder,
		Registry:    signature.NewDefaultRegistry(),
		Dispatcher:  noopDispatcher{},
		Platformsvc: platformSvc,
	})

	deliverySvc := deliveryservice.NewService(deliveryservice.ServiceParam{
		DB:   db,
		Log:  log,
		Repo: deliveryrepository.Provide(),
	})

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	srv := NewServer(ServerParams{
		Gin:   engine,
		Cfg:   cfg,
		DB:    db,
		GenID: node,

		PlatformSvc:     platformSvc,
		SubscriptionSvc: subscriptionSvc,
		EventSvc:        eventSvc,
		DeliverySvc:     deliverySvc,
	})

	_, err = platformSvc.Create(context.Background(), platformdomain.CreatePlatformRequest{
		Name:            "github",
		DisplayName:     "GitHub",
		SignatureHeader: "X-Hub-Signature-256",
		EventHeader:     "X-GitHub-Event",
	})
	require.NoError(t, err)

	return &testServer{server: srv, genID: node}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.server.Engine().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) accountHeader() string {
	return ts.genID.Generate().String()
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var payload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func TestReceiveWebhook(t *testing.T) {
	ts := newTestServer(t)

	body := []byte(`{"ref":"refs/heads/main"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/receive/github", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-Hub-Signature-256", signBody("gh-secret", body))

	rec := ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	payload := decodeBody(t, rec)
	assert.JSONEq(t, `true`, string(payload["success"]))

	var eventID string
	require.NoError(t, json.Unmarshal(payload["id"], &eventID))
	require.NotEmpty(t, eventID)

	// History endpoints require the account header.
	getReq := httptest.NewRequest(http.MethodGet, "/api/webhooks/"+eventID, nil)
	rec = ts.do(getReq)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	getReq = httptest.NewRequest(http.MethodGet, "/api/webhooks/"+eventID, nil)
	getReq.Header.Set(HeaderAccount, ts.accountHeader())
	rec = ts.do(getReq)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"event_type":"push"`)
}

func TestReceiveWebhookEmptyBody(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/receive/github", nil)
	rec := ts.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccountHeaderValidation(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/subscriptions", nil)
	rec := ts.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/subscriptions", nil)
	req.Header.Set(HeaderAccount, "not-a-snowflake")
	rec = ts.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/subscriptions", nil)
	req.Header.Set(HeaderAccount, ts.accountHeader())
	rec = ts.do(req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestSubscriptionLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	account := ts.accountHeader()

	body := []byte(`{"platform":"github","callback_url":"https://example.com/hooks","events":["push"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/subscriptions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderAccount, account)
	rec := ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var created struct {
		Data struct {
			ID     string `json:"id"`
			Secret string `json:"secret"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Len(t, created.Data.Secret, 64)

	// Creating the same target again conflicts.
	req = httptest.NewRequest(http.MethodPost, "/api/subscriptions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderAccount, account)
	rec = ts.do(req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The secret never leaks outside the create response.
	req = httptest.NewRequest(http.MethodGet, "/api/subscriptions/"+created.Data.ID, nil)
	req.Header.Set(HeaderAccount, account)
	rec = ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), created.Data.Secret)

	req = httptest.NewRequest(http.MethodDelete, "/api/subscriptions/"+created.Data.ID, nil)
	req.Header.Set(HeaderAccount, account)
	rec = ts.do(req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/subscriptions/"+created.Data.ID, nil)
	req.Header.Set(HeaderAccount, account)
	rec = ts.do(req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSimulateWebhook(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/simulate/github", nil)
	req.Header.Set(HeaderAccount, ts.accountHeader())
	rec := ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	payload := decodeBody(t, rec)
	// The sample is signed with the configured secret, so it verifies.
	assert.JSONEq(t, `true`, string(payload["verified"]))

	req = httptest.NewRequest(http.MethodPost, "/api/simulate/telegram", nil)
	req.Header.Set(HeaderAccount, ts.accountHeader())
	rec = ts.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListPlatformsIsPublic(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/platforms", nil)
	rec := ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"github"`)
}
