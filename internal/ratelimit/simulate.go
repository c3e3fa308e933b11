package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/hookrelay/internal/config"
)

const keySimulateAccount = "simulate:account:%s"

// SimulateLimiter caps webhook simulation traffic per account. Without a
// Redis address configured the limiter stays disabled and every request
// passes.
type SimulateLimiter struct {
	enabled bool
	bucket  *TokenBucket
	holder  *config.DeliveryConfigHolder
}

func NewSimulateLimiter(cfg config.Config, holder *config.DeliveryConfigHolder) *SimulateLimiter {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		return &SimulateLimiter{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})

	return &SimulateLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		holder:  holder,
	}
}

func (l *SimulateLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *SimulateLimiter) Allow(ctx context.Context, accountID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}

	perMinute := l.holder.Current().SimulatePerMinute
	key := fmt.Sprintf(keySimulateAccount, strings.TrimSpace(accountID))
	return l.bucket.Allow(ctx, key, float64(perMinute)/60.0, perMinute)
}
