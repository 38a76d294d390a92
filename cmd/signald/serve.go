package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	cronrunner "tradesignal/internal/cron"
	"tradesignal/internal/db"
	"tradesignal/internal/handler"
)

func runServe(ctx context.Context, opts *rootOptions) error {
	a, err := newApp(ctx, opts, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, logger := a.cfg, a.logger

	if err := db.AutoMigrate(a.db); err != nil {
		logger.Error("auto-migrate failed", zap.Error(err))
		return err
	}
	if err := a.settings.EnsureDefaultSwitches(ctx); err != nil {
		logger.Warn("init default system switches failed", zap.Error(err))
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(handler.RequireBearer(cfg.Auth))
	engine.Use(handler.WriteAudit(logger.Named("http")))

	health := &handler.HealthHandler{}
	if a.db != nil {
		health.DB = a.db.SQL
	}
	if a.predictor != nil {
		health.Predictor = handler.PingFunc(a.predictor.Ping)
	}
	health.Register(engine)
	handler.RegisterDocs(engine)

	trigger := []gin.HandlerFunc{handler.RateLimit(handler.NewTriggerLimiter(cfg.Server))}
	(&handler.MarketHandler{Repo: a.store, Symbol: cfg.MarketData.Symbol}).Register(engine)
	(&handler.SignalHandler{Repo: a.store, Symbol: cfg.MarketData.Symbol}).Register(engine)
	(&handler.PipelineHandler{Runner: a.orchestrator, Trigger: trigger}).Register(engine)
	predictorHandler := &handler.PredictorHandler{Trigger: trigger}
	if a.predictor != nil {
		predictorHandler.Predictor = a.predictor
	}
	predictorHandler.Register(engine)
	(&handler.SystemSettingsHandler{Repo: a.store, Settings: a.settings}).Register(engine)

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	cronRunner := cronrunner.New(logger.Named("cron"), ctx, cronrunner.LoadLocation(cfg.Cron.Timezone))
	if cfg.Cron.Enabled {
		id, err := cronRunner.Add(cfg.Cron.Pipeline, a.orchestrator.Run)
		if err != nil {
			logger.Error("cron register pipeline failed", zap.String("spec", cfg.Cron.Pipeline), zap.Error(err))
			return err
		}
		cronRunner.Start()
		defer cronRunner.Stop()
		logger.Info("pipeline scheduled",
			zap.String("spec", cfg.Cron.Pipeline),
			zap.Time("next", cronRunner.Next(id)),
		)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err = <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	return err
}
