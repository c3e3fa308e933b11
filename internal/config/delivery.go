package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// DeliveryConfig tunes the outbound fan-out pipeline. It is hot-reloadable
// so operators can widen timeouts or tighten concurrency without a restart.
type DeliveryConfig struct {
	// TimeoutSeconds bounds a single delivery attempt.
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
	// MaxConcurrency caps parallel deliveries within one fan-out batch.
	MaxConcurrency int `mapstructure:"maxConcurrency"`
	// ResponseBodyLimit is the number of response bytes kept on the attempt record.
	ResponseBodyLimit int `mapstructure:"responseBodyLimit"`
	// RejectUnverified switches ingestion from accept-and-flag to 401 rejection.
	RejectUnverified bool `mapstructure:"rejectUnverified"`
	// SimulatePerMinute limits webhook simulation requests per account.
	SimulatePerMinute int `mapstructure:"simulatePerMinute"`
}

func DefaultDeliveryConfig() DeliveryConfig {
	return DeliveryConfig{
		TimeoutSeconds:    10,
		MaxConcurrency:    16,
		ResponseBodyLimit: 1000,
		RejectUnverified:  false,
		SimulatePerMinute: 30,
	}
}

// Timeout returns the attempt timeout as a duration.
func (c DeliveryConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type DeliveryConfigHolder struct {
	current atomic.Value // holds DeliveryConfig
}

func NewDeliveryConfigHolder() (*DeliveryConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("hookrelay")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/hookrelay/config") // Volume-mounted config
	v.AddConfigPath("/etc/hookrelay")            // System config
	v.AddConfigPath(".")                         // Current directory (dev mode)

	v.SetEnvPrefix("HOOKRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		defaults := DefaultDeliveryConfig()
		v.SetDefault("delivery.timeoutSeconds", defaults.TimeoutSeconds)
		v.SetDefault("delivery.maxConcurrency", defaults.MaxConcurrency)
		v.SetDefault("delivery.responseBodyLimit", defaults.ResponseBodyLimit)
		v.SetDefault("delivery.rejectUnverified", defaults.RejectUnverified)
		v.SetDefault("delivery.simulatePerMinute", defaults.SimulatePerMinute)
	}

	holder := &DeliveryConfigHolder{}
	if err := holder.reload(v); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(event fsnotify.Event) {
		if err := holder.reload(v); err != nil {
			log.Printf("delivery config reload failed (%s): %v", event.Name, err)
		}
	})
	v.WatchConfig()

	return holder, nil
}

func (h *DeliveryConfigHolder) reload(v *viper.Viper) error {
	var cfg DeliveryConfig
	if err := v.UnmarshalKey("delivery", &cfg); err != nil {
		return err
	}
	cfg = sanitizeDeliveryConfig(cfg)
	h.current.Store(cfg)
	return nil
}

// Current returns the active delivery configuration.
func (h *DeliveryConfigHolder) Current() DeliveryConfig {
	if h == nil {
		return DefaultDeliveryConfig()
	}
	if cfg, ok := h.current.Load().(DeliveryConfig); ok {
		return cfg
	}
	return DefaultDeliveryConfig()
}

// Store replaces the active configuration. Used by tests and admin tooling.
func (h *DeliveryConfigHolder) Store(cfg DeliveryConfig) {
	h.current.Store(sanitizeDeliveryConfig(cfg))
}

func sanitizeDeliveryConfig(cfg DeliveryConfig) DeliveryConfig {
	defaults := DefaultDeliveryConfig()
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaults.MaxConcurrency
	}
	if cfg.ResponseBodyLimit <= 0 {
		cfg.ResponseBodyLimit = defaults.ResponseBodyLimit
	}
	if cfg.SimulatePerMinute <= 0 {
		cfg.SimulatePerMinute = defaults.SimulatePerMinute
	}
	return cfg
}
