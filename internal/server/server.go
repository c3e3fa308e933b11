package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/hookrelay/internal/config"
	"github.com/smallbiznis/hookrelay/internal/delivery"
	deliverydomain "github.com/smallbiznis/hookrelay/internal/delivery/domain"
	"github.com/smallbiznis/hookrelay/internal/event"
	eventdomain "github.com/smallbiznis/hookrelay/internal/event/domain"
	"github.com/smallbiznis/hookrelay/internal/observability"
	obsmiddleware "github.com/smallbiznis/hookrelay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/hookrelay/internal/observability/metrics"
	obstracing "github.com/smallbiznis/hookrelay/internal/observability/tracing"
	"github.com/smallbiznis/hookrelay/internal/platform"
	platformdomain "github.com/smallbiznis/hookrelay/internal/platform/domain"
	"github.com/smallbiznis/hookrelay/internal/ratelimit"
	"github.com/smallbiznis/hookrelay/internal/signature"
	"github.com/smallbiznis/hookrelay/internal/subscription"
	subscriptiondomain "github.com/smallbiznis/hookrelay/internal/subscription/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	fx.Provide(registerGin),
	signature.Module,
	platform.Module,
	subscription.Module,
	event.Module,
	delivery.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	genID  *snowflake.Node

	platformSvc     platformdomain.Service
	subscriptionSvc subscriptiondomain.Service
	eventSvc        eventdomain.Service
	deliverySvc     deliverydomain.Service
	simulateLimiter *ratelimit.SimulateLimiter
	metrics         *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin   *gin.Engine
	Cfg   config.Config
	DB    *gorm.DB
	GenID *snowflake.Node

	PlatformSvc     platformdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	EventSvc        eventdomain.Service
	DeliverySvc     deliverydomain.Service
	SimulateLimiter *ratelimit.SimulateLimiter `optional:"true"`
	Metrics         *obsmetrics.Metrics        `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine: p.Gin,
		cfg:    p.Cfg,
		db:     p.DB,
		genID:  p.GenID,

		platformSvc:     p.PlatformSvc,
		subscriptionSvc: p.SubscriptionSvc,
		eventSvc:        p.EventSvc,
		deliverySvc:     p.DeliverySvc,
		simulateLimiter: p.SimulateLimiter,
		metrics:         p.Metrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Ingestion --------
	// Platform requests carry their own signatures; no account gate here.
	api.POST("/webhooks/receive/:platform", s.HandleReceiveWebhook)

	// -------- Event history --------
	api.GET("/webhooks", s.AccountRequired(), s.ListWebhookEvents)
	api.GET("/webhooks/:id", s.AccountRequired(), s.GetWebhookEventByID)
	api.GET("/webhooks/:id/deliveries", s.AccountRequired(), s.ListEventDeliveries)

	// -------- Platforms --------
	api.GET("/platforms", s.ListPlatforms)
	api.POST("/platforms", s.AccountRequired(), s.CreatePlatform)
	api.PATCH("/platforms/:id", s.AccountRequired(), s.UpdatePlatform)
	api.DELETE("/platforms/:id", s.AccountRequired(), s.DeletePlatform)

	// -------- Subscriptions --------
	api.GET("/subscriptions", s.AccountRequired(), s.ListSubscriptions)
	api.POST("/subscriptions", s.AccountRequired(), s.CreateSubscription)
	api.GET("/subscriptions/logs", s.AccountRequired(), s.ListDeliveryLogs)
	api.GET("/subscriptions/:id", s.AccountRequired(), s.GetSubscriptionByID)
	api.PATCH("/subscriptions/:id", s.AccountRequired(), s.UpdateSubscription)
	api.DELETE("/subscriptions/:id", s.AccountRequired(), s.DeleteSubscription)

	// -------- Simulation --------
	api.POST("/simulate/:platform", s.AccountRequired(), s.SimulateRateLimit(), s.SimulateWebhook)
}
