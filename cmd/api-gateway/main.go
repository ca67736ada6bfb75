package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/extraction017/temporav3/api/swagger"
	"github.com/extraction017/temporav3/internal/handler"
	"github.com/extraction017/temporav3/internal/middleware"
	"github.com/extraction017/temporav3/internal/repository"
	"github.com/extraction017/temporav3/internal/scheduler"
	"github.com/extraction017/temporav3/internal/service"
	"github.com/extraction017/temporav3/pkg/cache"
	"github.com/extraction017/temporav3/pkg/config"
	"github.com/extraction017/temporav3/pkg/database"
	"github.com/extraction017/temporav3/pkg/jobs"
	"github.com/extraction017/temporav3/pkg/logger"
	corsmiddleware "github.com/extraction017/temporav3/pkg/middleware/cors"
	reqidmiddleware "github.com/extraction017/temporav3/pkg/middleware/requestid"
)

// @title Temporav3 API
// @version 1.0.0
// @description Calendar scheduling and weekly optimization service
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type handlers struct {
	events        *handler.EventHandler
	preferences   *handler.PreferenceHandler
	optimizations *handler.OptimizationHandler
	scores        *handler.ScoreHandler
	exports       *handler.ExportHandler
	ops           *handler.MetricsHandler
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	dependencies := map[string]handler.Pinger{"postgres": db}
	var (
		cacheRepo service.CacheRepository
		proposals service.ProposalStore
	)
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		redisRepo := repository.NewCacheRepository(client, logr)
		defer redisRepo.Close() //nolint:errcheck
		cacheRepo = redisRepo
		proposals = service.NewRedisProposalStore(redisRepo, cfg.Scheduler.ProposalTTL)
		dependencies["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TTL, logr, cfg.Cache.Enabled)

	validate := validator.New()
	finder := scheduler.FinderConfig{MaxCandidates: cfg.Scheduler.MaxCandidates, AllowSleep: cfg.Scheduler.AllowSleep}
	eventRepo := repository.NewEventRepository(db, loc)
	prefRepo := repository.NewPreferenceRepository(db)

	eventSvc := service.NewEventService(eventRepo, prefRepo, cacheSvc, metrics, validate, logr, service.EventServiceConfig{
		Finder:   finder,
		Location: loc,
	})
	prefSvc := service.NewPreferenceService(prefRepo, cacheSvc, validate, logr)
	scoreSvc := service.NewScoreService(eventRepo, prefRepo, cacheSvc, nil, loc, logr)
	exportSvc := service.NewExportService(eventRepo, nil, nil, nil, nil, loc, logr)

	queue := jobs.NewQueue("score-warmup", service.ScoreWarmupHandler(scoreSvc), jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.Retries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	optimizationSvc := service.NewOptimizationService(eventRepo, prefRepo, scoreSvc, proposals, cacheSvc, queue, metrics, validate, logr, service.OptimizationServiceConfig{
		ProposalTTL: cfg.Scheduler.ProposalTTL,
		Finder:      finder,
		Location:    loc,
	})

	housekeeping := jobs.NewScheduler(logr)
	schedule := service.HousekeepingSchedule{PurgeProposals: cfg.Jobs.PurgeSchedule, RefillRecurring: cfg.Jobs.RefillSchedule}
	if err := service.RegisterHousekeeping(housekeeping, schedule, eventSvc, optimizationSvc); err != nil {
		return fmt.Errorf("register housekeeping: %w", err)
	}
	housekeeping.Start()
	defer housekeeping.Stop()

	r := newRouter(cfg, logr, metrics, handlers{
		events:        handler.NewEventHandler(eventSvc),
		preferences:   handler.NewPreferenceHandler(prefSvc),
		optimizations: handler.NewOptimizationHandler(optimizationSvc),
		scores:        handler.NewScoreHandler(scoreSvc),
		exports:       handler.NewExportHandler(exportSvc),
		ops:           handler.NewMetricsHandler(metrics, dependencies),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
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
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, h handlers) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics", "/health", "/ready"))

	r.GET("/health", h.ops.Health)
	r.GET("/ready", h.ops.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", h.ops.Prometheus)
	}
	if cfg.Swagger.Enabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix, middleware.JWT(cfg.Auth))

	events := api.Group("/events")
	events.GET("", h.events.List)
	events.POST("", h.events.Create)
	events.POST("/validate", h.events.Validate)
	events.POST("/recurring", h.events.CreateRecurring)
	events.POST("/floating", h.events.CreateFloating)
	events.GET("/:id", h.events.Get)
	events.PUT("/:id", h.events.Update)
	events.PATCH("/:id/lock", h.events.ToggleLock)
	events.DELETE("/:id", h.events.Delete)

	api.GET("/preferences", h.preferences.Get)
	api.PUT("/preferences", h.preferences.Update)

	api.POST("/optimizations", h.optimizations.Run)
	api.POST("/optimizations/:id/apply", h.optimizations.Apply)

	api.GET("/scores/health", h.scores.Health)
	api.GET("/scores/productivity", h.scores.Productivity)
	api.GET("/statistics", h.scores.Statistics)
	api.GET("/export", h.exports.Week)

	return r
}
