package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/hookrelay/internal/clock"
	"github.com/smallbiznis/hookrelay/internal/config"
	deliverydomain "github.com/smallbiznis/hookrelay/internal/delivery/domain"
	eventdomain "github.com/smallbiznis/hookrelay/internal/event/domain"
	"github.com/smallbiznis/hookrelay/internal/observability/metrics"
	subscriptiondomain "github.com/smallbiznis/hookrelay/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dispatcher fans a persisted event out to every matching active
// subscription. Each subscriber gets its own attempt with its own timeout;
// one slow or broken endpoint never blocks the rest of the batch.
type Dispatcher struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	clock    clock.Clock
	repo     deliverydomain.Repository
	subRepo  subscriptiondomain.Repository
	recorder *Recorder
	holder   *config.DeliveryConfigHolder
	metrics  *metrics.Metrics

	client *http.Client
}

type DispatcherParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     deliverydomain.Repository
	SubRepo  subscriptiondomain.Repository
	Recorder *Recorder
	Holder   *config.DeliveryConfigHolder
	Metrics  *metrics.Metrics
}

func NewDispatcher(p DispatcherParam) *Dispatcher {
	return &Dispatcher{
		db:  p.DB,
		log: p.Log.Named("delivery.dispatcher"),

		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		subRepo:  p.SubRepo,
		recorder: p.Recorder,
		holder:   p.Holder,
		metrics:  p.Metrics,

		// Per-attempt deadlines come from the request context, not the
		// client, so the timeout follows config reloads.
		client: &http.Client{},
	}
}

func ProvideDispatcher(p DispatcherParam) deliverydomain.Dispatcher {
	return NewDispatcher(p)
}

// Schedule implements domain.Dispatcher.
func (d *Dispatcher) Schedule(event eventdomain.WebhookEvent) {
	go func() {
		if _, err := d.FanOut(context.Background(), event); err != nil {
			d.log.Error("fan-out failed",
				zap.String("event_id", event.ID.String()),
				zap.String("platform", event.Platform),
				zap.Error(err),
			)
		}
	}()
}

// FanOut implements domain.Dispatcher.
func (d *Dispatcher) FanOut(ctx context.Context, event eventdomain.WebhookEvent) (int, error) {
	subscriptions, err := d.subRepo.ListActiveByPlatform(ctx, d.db, event.Platform)
	if err != nil {
		return 0, err
	}

	matched := make([]*subscriptiondomain.Subscription, 0, len(subscriptions))
	for _, subscription := range subscriptions {
		if subscription.Matches(event.EventType) {
			matched = append(matched, subscription)
		}
	}
	if len(matched) == 0 {
		return 0, nil
	}

	cfg := d.holder.Current()

	var wg sync.WaitGroup
	sem := make(chan struct{}, cfg.MaxConcurrency)
	for _, subscription := range matched {
		wg.Add(1)
		sem <- struct{}{}
		go func(subscription *subscriptiondomain.Subscription) {
			defer wg.Done()
			defer func() { <-sem }()
			d.deliver(ctx, event, subscription, cfg)
		}(subscription)
	}
	wg.Wait()

	return len(matched), nil
}

func (d *Dispatcher) deliver(ctx context.Context, event eventdomain.WebhookEvent, subscription *subscriptiondomain.Subscription, cfg config.DeliveryConfig) {
	now := d.clock.Now()
	attempt := &deliverydomain.DeliveryAttempt{
		ID:             d.genID.Generate(),
		EventID:        event.ID,
		SubscriptionID: subscription.ID,
		AccountID:      subscription.AccountID,
		Platform:       event.Platform,
		EventType:      event.EventType,
		CallbackURL:    subscription.CallbackURL,
		Status:         deliverydomain.DeliveryStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := d.repo.Insert(ctx, d.db, attempt); err != nil {
		d.log.Error("failed to create delivery attempt",
			zap.String("event_id", event.ID.String()),
			zap.String("subscription_id", subscription.ID.String()),
			zap.Error(err),
		)
		return
	}

	start := d.clock.Now()
	d.post(ctx, event, subscription, cfg, attempt)
	elapsed := d.clock.Now().Sub(start)

	attempt.UpdatedAt = d.clock.Now()
	d.recorder.Record(ctx, attempt)

	d.metrics.RecordDelivery(ctx, event.Platform, string(attempt.Status), elapsed)

	d.log.Info("delivery finished",
		zap.String("event_id", event.ID.String()),
		zap.String("subscription_id", subscription.ID.String()),
		zap.String("status", string(attempt.Status)),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	)
}

// post performs the outbound request and fills the attempt's outcome fields.
func (d *Dispatcher) post(ctx context.Context, event eventdomain.WebhookEvent, subscription *subscriptiondomain.Subscription, cfg config.DeliveryConfig, attempt *deliverydomain.DeliveryAttempt) {
	payload, err := BuildEnvelope(event, d.clock.Now())
	if err != nil {
		attempt.Status = deliverydomain.DeliveryStatusFailed
		attempt.ErrorMessage = "failed to encode delivery payload"
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, subscription.CallbackURL, bytes.NewReader(payload))
	if err != nil {
		attempt.Status = deliverydomain.DeliveryStatusFailed
		attempt.ErrorMessage = err.Error()
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", SignPayload(payload, subscription.Secret))
	req.Header.Set("X-Webhook-Platform", event.Platform)
	req.Header.Set("X-Webhook-Event", event.EventType)

	resp, err := d.client.Do(req)
	if err != nil {
		attempt.Status = deliverydomain.DeliveryStatusFailed
		if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() == context.DeadlineExceeded {
			attempt.ErrorMessage = fmt.Sprintf("delivery timed out after %s", cfg.Timeout())
		} else {
			attempt.ErrorMessage = err.Error()
		}
		return
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, int64(cfg.ResponseBodyLimit)))
	statusCode := resp.StatusCode
	deliveredAt := d.clock.Now()

	attempt.StatusCode = &statusCode
	attempt.ResponseBody = string(body)
	attempt.DeliveredAt = &deliveredAt

	if statusCode >= 200 && statusCode < 300 {
		attempt.Status = deliverydomain.DeliveryStatusSuccess
	} else {
		attempt.Status = deliverydomain.DeliveryStatusFailed
		attempt.ErrorMessage = fmt.Sprintf("subscriber responded with status %d", statusCode)
	}
}
