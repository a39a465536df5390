package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/farellandr/qrticket/config"
	"github.com/farellandr/qrticket/internal/handlers"
	"github.com/farellandr/qrticket/internal/helpers"
	"github.com/farellandr/qrticket/internal/middleware"
	"github.com/farellandr/qrticket/internal/services"
	"github.com/farellandr/qrticket/internal/store"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Pinger is anything /health can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Service      *services.TicketService
	Store        Pinger
	Redis        *redis.Client
	Logger       *zap.Logger
	AllowOrigins []string
	// TrustedProxies may set the client IP through forwarding headers. Empty
	// means the TCP peer address is always used.
	TrustedProxies []string
	ScanRateLimit  int
	ScanWindow     time.Duration
}

func Start(cfg *config.Config, logger *zap.Logger) error {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ticketStore, err := store.Open(cfg.Dialector(), store.Options{
		MaxOpenConns: cfg.MaxOpenConns(),
		MaxIdleConns: cfg.MaxOpenConns(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := ticketStore.Close(); err != nil {
			logger.Warn("close database failed", zap.Error(err))
		}
	}()

	encoder, err := helpers.NewQREncoder(cfg.QRLevel, cfg.QRSize)
	if err != nil {
		return fmt.Errorf("failed to configure qr encoder: %w", err)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = newRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect redis: %w", err)
		}
		defer rdb.Close()
	}

	svc := services.NewTicketService(ticketStore, encoder, logger)

	r := gin.New()
	if err := setupRoutes(r, Deps{
		Service:        svc,
		Store:          ticketStore,
		Redis:          rdb,
		Logger:         logger,
		AllowOrigins:   cfg.CORSAllowOrigins,
		TrustedProxies: cfg.TrustedProxies,
		ScanRateLimit:  cfg.ScanRateLimit,
		ScanWindow:     cfg.ScanRateWindow,
	}); err != nil {
		return fmt.Errorf("failed to configure router: %w", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("db_driver", cfg.DBDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func setupRoutes(r *gin.Engine, deps Deps) error {
	var proxies []string
	if len(deps.TrustedProxies) > 0 {
		proxies = deps.TrustedProxies
	}
	if err := r.SetTrustedProxies(proxies); err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}

	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(buildCORSMiddleware(deps.AllowOrigins))

	r.GET("/health", healthHandler(deps))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var limiterClient redis.Cmdable
	if deps.Redis != nil {
		limiterClient = deps.Redis
	}
	scanLimit := middleware.ScanRateLimit(limiterClient, int64(deps.ScanRateLimit), deps.ScanWindow, deps.Logger)

	v1 := r.Group("/v1")
	v1.Use(middleware.TicketServiceMiddleware(deps.Service))
	{
		tickets := v1.Group("/tickets")
		{
			tickets.POST("", handlers.CreateTicket)
			tickets.GET("", handlers.ListTickets)
			tickets.GET("/:id", handlers.GetTicket)
			tickets.DELETE("/:id", handlers.DeleteTicket)
			tickets.POST("/validate", handlers.ValidateTicket)
			tickets.POST("/redeem", scanLimit, handlers.RedeemTicket)
		}

		codes := v1.Group("/codes")
		{
			codes.POST("/validate", scanLimit, handlers.ValidateCode)
			codes.POST("/consume", scanLimit, handlers.ConsumeCode)
			codes.GET("/:id/image", handlers.GetCodeImage)
		}

		stats := v1.Group("/stats")
		{
			stats.GET("", handlers.GetStats)
			stats.GET("/codes", handlers.GetCodeStats)
		}
	}
	return nil
}

func buildCORSMiddleware(origins []string) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
	}
	return cors.New(corsCfg)
}

func healthHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if deps.Store != nil {
			if err := deps.Store.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database unavailable"})
				return
			}
		}
		if deps.Redis != nil {
			if err := deps.Redis.Ping(ctx).Err(); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "redis unavailable"})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	}
}

func newRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	opts.MaxRetries = 3

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
