package service

import (
	"context"

	deliverydomain "github.com/smallbiznis/hookrelay/internal/delivery/domain"
	subscriptiondomain "github.com/smallbiznis/hookrelay/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Recorder persists delivery outcomes. Recording failures are logged and
// swallowed; they never bubble up into the delivery path.
type Recorder struct {
	db  *gorm.DB
	log *zap.Logger

	repo    deliverydomain.Repository
	subRepo subscriptiondomain.Repository
}

type RecorderParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    deliverydomain.Repository
	SubRepo subscriptiondomain.Repository
}

func NewRecorder(p RecorderParam) *Recorder {
	return &Recorder{
		db:  p.DB,
		log: p.Log.Named("delivery.recorder"),

		repo:    p.Repo,
		subRepo: p.SubRepo,
	}
}

// Record writes the attempt's terminal state and bumps the subscription
// counters. Counter updates happen in SQL, so concurrent deliveries to the
// same subscription cannot lose increments.
func (r *Recorder) Record(ctx context.Context, attempt *deliverydomain.DeliveryAttempt) {
	if err := r.repo.MarkOutcome(ctx, r.db, attempt); err != nil {
		r.log.Error("failed to record delivery outcome",
			zap.String("attempt_id", attempt.ID.String()),
			zap.String("subscription_id", attempt.SubscriptionID.String()),
			zap.Error(err),
		)
	}

	failed := attempt.Status == deliverydomain.DeliveryStatusFailed
	if err := r.subRepo.ApplyDeliveryOutcome(ctx, r.db, attempt.SubscriptionID, failed, attempt.UpdatedAt); err != nil {
		r.log.Error("failed to update subscription counters",
			zap.String("subscription_id", attempt.SubscriptionID.String()),
			zap.Error(err),
		)
	}
}
