// Package marketdata fetches OHLCV candles from Binance spot klines.
package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tradesignal/internal/config"
	"tradesignal/internal/models"
)

type Binance struct {
	Client *binance.Client
	Logger *zap.Logger
	// Limiter spaces requests; nil means unlimited.
	Limiter *rate.Limiter

	Symbol         string
	LatestInterval string
}

func NewBinance(cfg config.MarketDataConfig, logger *zap.Logger) *Binance {
	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		client.BaseURL = base
	}
	return &Binance{
		Client:         client,
		Logger:         logger,
		Limiter:        rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
		Symbol:         strings.ToUpper(strings.TrimSpace(cfg.Symbol)),
		LatestInterval: cfg.LatestInterval,
	}
}

// FetchLatest returns the most recent short-interval candle, nil when the
// exchange returns none.
func (b *Binance) FetchLatest(ctx context.Context) (*models.Candle, error) {
	interval := b.LatestInterval
	if interval == "" {
		interval = "1m"
	}
	items, err := b.klines(ctx, interval, 1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[len(items)-1], nil
}

// FetchHistory returns up to limit candles, oldest first.
func (b *Binance) FetchHistory(ctx context.Context, interval string, limit int) ([]models.Candle, error) {
	return b.klines(ctx, interval, limit)
}

func (b *Binance) klines(ctx context.Context, interval string, limit int) ([]models.Candle, error) {
	if b == nil || b.Client == nil {
		return nil, fmt.Errorf("binance client not configured")
	}
	if b.Limiter != nil {
		if err := b.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := b.Client.NewKlinesService().
		Symbol(b.Symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s %s: %w", b.Symbol, interval, err)
	}

	out := make([]models.Candle, 0, len(resp))
	for _, k := range resp {
		if k == nil {
			continue
		}
		c, err := toCandle(b.Symbol, interval, k)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if b.Logger != nil {
		b.Logger.Debug("binance klines fetched",
			zap.String("symbol", b.Symbol),
			zap.String("interval", interval),
			zap.Int("limit", limit),
			zap.Int("count", len(out)),
		)
	}
	return out, nil
}

func toCandle(symbol, interval string, k *binance.Kline) (models.Candle, error) {
	fields := [5]string{k.Open, k.High, k.Low, k.Close, k.Volume}
	var vals [5]decimal.Decimal
	for i, raw := range fields {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return models.Candle{}, fmt.Errorf("binance kline %d: parse %q: %w", k.OpenTime, raw, err)
		}
		vals[i] = v
	}
	return models.Candle{
		Symbol:   symbol,
		Interval: interval,
		OpenTime: time.UnixMilli(k.OpenTime).UTC(),
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
	}, nil
}
