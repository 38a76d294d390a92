package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tradesignal/internal/config"
	"tradesignal/internal/db"
	"tradesignal/internal/logger"
	"tradesignal/internal/marketdata"
	"tradesignal/internal/metrics"
	"tradesignal/internal/notify"
	"tradesignal/internal/pipeline"
	"tradesignal/internal/predictor"
	"tradesignal/internal/repository"
	gormrepository "tradesignal/internal/repository/gorm"
	"tradesignal/internal/repository/memory"
	"tradesignal/internal/runlock"
	"tradesignal/internal/service"
	"tradesignal/internal/strategy"
)

type appOptions struct {
	memoryStore bool
	migrateOnly bool
}

// app owns every long-lived handle. Close releases them in reverse order.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	db        *db.DB
	store     repository.Repository
	settings  *service.SystemSettingsService
	source    *marketdata.Binance
	predictor *predictor.MindsDB
	redis     *redis.Client
	notifier  *notify.Dispatcher
	metrics   *metrics.Recorder

	orchestrator *pipeline.Orchestrator

	closers []func()
}

func newApp(ctx context.Context, opts *rootOptions, ao appOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath, opts.envOnly)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	a := &app{cfg: cfg, logger: log}
	a.closers = append(a.closers, func() { _ = log.Sync() })

	if ao.memoryStore {
		a.store = memory.New()
		log.Info("using in-memory store")
	} else {
		conn, err := db.Open(ctx, cfg.DB, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open db: %w", err)
		}
		a.db = conn
		a.closers = append(a.closers, func() { _ = db.Close(conn) })
		if err := db.SetTimezone(conn, cfg.DB.Timezone); err != nil {
			log.Warn("failed to set timezone", zap.Error(err))
		}
		a.store = gormrepository.New(conn.Gorm)
	}
	if ao.migrateOnly {
		return a, nil
	}

	a.settings = &service.SystemSettingsService{Repo: a.store}
	a.metrics = metrics.New(prometheus.DefaultRegisterer)
	a.source = marketdata.NewBinance(cfg.MarketData, log)

	// MindsDB reads candles from Postgres, so it has nothing to learn from
	// an in-memory store.
	if cfg.Predictor.Enabled && !ao.memoryStore {
		p, err := predictor.Open(cfg.Predictor, cfg.MarketData.Symbol, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open predictor: %w", err)
		}
		a.predictor = p
		a.closers = append(a.closers, func() { _ = p.Close() })
	}

	a.notifier = notify.New(cfg.Notify, log, a.metrics)
	a.notifier.Enabled = a.settings.Gate(service.FeatureNotify, true)
	a.closers = append(a.closers, func() { _ = a.notifier.Close() })

	lock, err := a.runLock()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.orchestrator = &pipeline.Orchestrator{
		Source:          a.source,
		Store:           a.store,
		Strategies:      strategy.NewSet(strategy.ParamsFromConfig(cfg.Strategy)),
		PredictionBand:  cfg.Pipeline.PredictionBand,
		HistoryInterval: cfg.Pipeline.HistoryInterval,
		HistoryLimit:    cfg.Pipeline.HistoryLimit,
		RunTimeout:      cfg.Pipeline.RunTimeout,
		Logger:          log.Named("pipeline"),
		Metrics:         a.metrics,
		Lock:            lock,
		Enabled:         a.settings.Gate(service.FeaturePipeline, true),
	}
	// Keep the interfaces nil rather than typed-nil when disabled.
	if a.predictor != nil {
		a.orchestrator.Predictor = a.predictor
	}
	if a.notifier.Len() > 0 {
		a.orchestrator.Notifier = a.notifier
	}
	return a, nil
}

func (a *app) runLock() (runlock.Locker, error) {
	switch a.cfg.Pipeline.Lock {
	case "none":
		return nil, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		a.redis = client
		a.closers = append(a.closers, func() { _ = client.Close() })
		key := fmt.Sprintf("tradesignal:pipeline:%s", a.cfg.MarketData.Symbol)
		return runlock.NewRedis(client, key, a.cfg.Pipeline.LockTTL), nil
	default:
		return runlock.NewLocal(), nil
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
