package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/hookrelay/internal/clock"
	"github.com/smallbiznis/hookrelay/internal/config"
	deliverydomain "github.com/smallbiznis/hookrelay/internal/delivery/domain"
	deliveryrepository "github.com/smallbiznis/hookrelay/internal/delivery/repository"
	eventdomain "github.com/smallbiznis/hookrelay/internal/event/domain"
	subscriptiondomain "github.com/smallbiznis/hookrelay/internal/subscription/domain"
	subscriptionrepository "github.com/smallbiznis/hookrelay/internal/subscription/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type dispatcherEnv struct {
	dispatcher *Dispatcher
	db         *gorm.DB
	genID      *snowflake.Node
	subRepo    subscriptiondomain.Repository
	repo       deliverydomain.Repository
}

func newDispatcherEnv(t *testing.T, cfg config.DeliveryConfig) *dispatcherEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&subscriptiondomain.Subscription{},
		&deliverydomain.DeliveryAttempt{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	repo := deliveryrepository.Provide()
	subRepo := subscriptionrepository.Provide()

	recorder := NewRecorder(RecorderParam{
		DB:      db,
		Log:     log,
		Repo:    repo,
		SubRepo: subRepo,
	})

	holder := &config.DeliveryConfigHolder{}
	holder.Store(cfg)

	dispatcher := NewDispatcher(DispatcherParam{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    clock.NewSystem(),
		Repo:     repo,
		SubRepo:  subRepo,
		Recorder: recorder,
		Holder:   holder,
	})

	return &dispatcherEnv{
		dispatcher: dispatcher,
		db:         db,
		genID:      node,
		subRepo:    subRepo,
		repo:       repo,
	}
}

func (e *dispatcherEnv) addSubscription(t *testing.T, platform, callbackURL, secret string, events []string) *subscriptiondomain.Subscription {
	t.Helper()

	var filter datatypes.JSON
	if len(events) > 0 {
		raw, err := json.Marshal(events)
		require.NoError(t, err)
		filter = datatypes.JSON(raw)
	}

	now := time.Now().UTC()
	subscription := &subscriptiondomain.Subscription{
		ID:          e.genID.Generate(),
		AccountID:   e.genID.Generate(),
		Platform:    platform,
		CallbackURL: callbackURL,
		Events:      filter,
		Secret:      secret,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, e.subRepo.Insert(context.Background(), e.db, subscription))
	return subscription
}

func (e *dispatcherEnv) testEvent(platform, eventType string) eventdomain.WebhookEvent {
	return eventdomain.WebhookEvent{
		ID:         e.genID.Generate(),
		Platform:   platform,
		EventType:  eventType,
		Payload:    datatypes.JSON(`{"ref":"refs/heads/main"}`),
		Verified:   true,
		ReceivedAt: time.Now().UTC(),
	}
}

func (e *dispatcherEnv) attemptsFor(t *testing.T, eventID snowflake.ID) map[snowflake.ID]*deliverydomain.DeliveryAttempt {
	t.Helper()

	var attempts []*deliverydomain.DeliveryAttempt
	require.NoError(t, e.db.Where("event_id = ?", eventID).Find(&attempts).Error)

	bySubscription := make(map[snowflake.ID]*deliverydomain.DeliveryAttempt, len(attempts))
	for _, attempt := range attempts {
		bySubscription[attempt.SubscriptionID] = attempt
	}
	return bySubscription
}

func (e *dispatcherEnv) reloadSubscription(t *testing.T, id snowflake.ID) *subscriptiondomain.Subscription {
	t.Helper()

	var subscription subscriptiondomain.Subscription
	require.NoError(t, e.db.Where("id = ?", id).First(&subscription).Error)
	return &subscription
}

func TestFanOutOutcomes(t *testing.T) {
	env := newDispatcherEnv(t, config.DeliveryConfig{
		TimeoutSeconds:    1,
		MaxConcurrency:    4,
		ResponseBodyLimit: 1000,
	})

	var mu sync.Mutex
	received := map[string]*http.Request{}
	bodies := map[string][]byte{}

	okServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		received["ok"] = r
		bodies["ok"] = body
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"received":true}`))
	}))
	defer okServer.Close()

	brokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer brokenServer.Close()

	slowServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(1500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer slowServer.Close()

	okSub := env.addSubscription(t, "github", okServer.URL, "ok-secret", nil)
	brokenSub := env.addSubscription(t, "github", brokenServer.URL, "broken-secret", nil)
	slowSub := env.addSubscription(t, "github", slowServer.URL, "slow-secret", nil)

	event := env.testEvent("github", "push")
	attempted, err := env.dispatcher.FanOut(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, 3, attempted)

	attempts := env.attemptsFor(t, event.ID)
	require.Len(t, attempts, 3)

	okAttempt := attempts[okSub.ID]
	require.NotNil(t, okAttempt)
	assert.Equal(t, deliverydomain.DeliveryStatusSuccess, okAttempt.Status)
	require.NotNil(t, okAttempt.StatusCode)
	assert.Equal(t, http.StatusOK, *okAttempt.StatusCode)
	assert.Equal(t, `{"received":true}`, okAttempt.ResponseBody)
	assert.NotNil(t, okAttempt.DeliveredAt)
	assert.Empty(t, okAttempt.ErrorMessage)

	brokenAttempt := attempts[brokenSub.ID]
	require.NotNil(t, brokenAttempt)
	assert.Equal(t, deliverydomain.DeliveryStatusFailed, brokenAttempt.Status)
	require.NotNil(t, brokenAttempt.StatusCode)
	assert.Equal(t, http.StatusBadGateway, *brokenAttempt.StatusCode)
	assert.Equal(t, "upstream unavailable", brokenAttempt.ResponseBody)
	assert.Contains(t, brokenAttempt.ErrorMessage, "502")

	slowAttempt := attempts[slowSub.ID]
	require.NotNil(t, slowAttempt)
	assert.Equal(t, deliverydomain.DeliveryStatusFailed, slowAttempt.Status)
	assert.Nil(t, slowAttempt.StatusCode)
	assert.Contains(t, slowAttempt.ErrorMessage, "timed out")

	// One broken or slow endpoint never blocks the healthy one.
	mu.Lock()
	request := received["ok"]
	body := bodies["ok"]
	mu.Unlock()
	require.NotNil(t, request)
	assert.Equal(t, "application/json", request.Header.Get("Content-Type"))
	assert.Equal(t, "github", request.Header.Get("X-Webhook-Platform"))
	assert.Equal(t, "push", request.Header.Get("X-Webhook-Event"))
	assert.Equal(t, SignPayload(body, "ok-secret"), request.Header.Get("X-Webhook-Signature"))

	okSubAfter := env.reloadSubscription(t, okSub.ID)
	assert.Equal(t, int64(1), okSubAfter.TriggerCount)
	assert.Equal(t, int64(0), okSubAfter.FailureCount)
	assert.NotNil(t, okSubAfter.LastTriggeredAt)

	brokenSubAfter := env.reloadSubscription(t, brokenSub.ID)
	assert.Equal(t, int64(1), brokenSubAfter.TriggerCount)
	assert.Equal(t, int64(1), brokenSubAfter.FailureCount)
}

func TestFanOutMatchesEventFilter(t *testing.T) {
	env := newDispatcherEnv(t, config.DeliveryConfig{
		TimeoutSeconds:    1,
		MaxConcurrency:    4,
		ResponseBodyLimit: 1000,
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	matching := env.addSubscription(t, "stripe", server.URL, "s1", []string{"invoice.paid", "payment_intent.succeeded"})
	env.addSubscription(t, "stripe", server.URL+"/other", "s2", []string{"charge.refunded"})
	inactive := env.addSubscription(t, "stripe", server.URL+"/inactive", "s3", nil)
	require.NoError(t, env.db.Exec(`UPDATE subscriptions SET is_active = false WHERE id = ?`, inactive.ID).Error)
	env.addSubscription(t, "github", server.URL+"/wrong-platform", "s4", nil)

	event := env.testEvent("stripe", "payment_intent.succeeded")
	attempted, err := env.dispatcher.FanOut(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, 1, attempted)

	attempts := env.attemptsFor(t, event.ID)
	require.Len(t, attempts, 1)
	assert.NotNil(t, attempts[matching.ID])
}

func TestFanOutTruncatesResponseBody(t *testing.T) {
	env := newDispatcherEnv(t, config.DeliveryConfig{
		TimeoutSeconds:    1,
		MaxConcurrency:    4,
		ResponseBodyLimit: 1000,
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(strings.Repeat("x", 5000)))
	}))
	defer server.Close()

	subscription := env.addSubscription(t, "shopify", server.URL, "secret", nil)

	event := env.testEvent("shopify", "orders/create")
	_, err := env.dispatcher.FanOut(context.Background(), event)
	require.NoError(t, err)

	attempts := env.attemptsFor(t, event.ID)
	attempt := attempts[subscription.ID]
	require.NotNil(t, attempt)
	assert.Equal(t, deliverydomain.DeliveryStatusSuccess, attempt.Status)
	assert.Len(t, attempt.ResponseBody, 1000)
}

func TestFanOutNoMatchesIsNoop(t *testing.T) {
	env := newDispatcherEnv(t, config.DeliveryConfig{
		TimeoutSeconds:    1,
		MaxConcurrency:    4,
		ResponseBodyLimit: 1000,
	})

	event := env.testEvent("github", "push")
	attempted, err := env.dispatcher.FanOut(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, 0, attempted)
}
