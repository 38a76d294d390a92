// Package notify fans persisted signals out to webhooks, Slack and Kafka.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tradesignal/internal/config"
	"tradesignal/internal/metrics"
	"tradesignal/internal/models"
)

// Notifier delivers one signal record to one channel.
type Notifier interface {
	Notify(ctx context.Context, rec *models.SignalRecord) error
}

// Payload is the JSON body sent to webhook and Kafka consumers.
type Payload struct {
	Event              string          `json:"event"`
	Symbol             string          `json:"symbol"`
	Timestamp          time.Time       `json:"timestamp"`
	Signal             string          `json:"signal"`
	Reason             string          `json:"reason"`
	PredictedPrice     string          `json:"predicted_price"`
	CurrentPrice       string          `json:"current_price"`
	PredictionFallback bool            `json:"prediction_fallback"`
	Strategies         json.RawMessage `json:"strategies,omitempty"`
}

func NewPayload(rec *models.SignalRecord) Payload {
	p := Payload{
		Event:              "signal",
		Symbol:             rec.Symbol,
		Timestamp:          rec.Timestamp.UTC(),
		Signal:             rec.Signal,
		Reason:             rec.Reason,
		PredictedPrice:     rec.PredictedPrice.String(),
		CurrentPrice:       rec.CurrentPrice.String(),
		PredictionFallback: rec.PredictionFallback,
	}
	if len(rec.StrategyDetails) > 0 {
		p.Strategies = json.RawMessage(rec.StrategyDetails)
	}
	return p
}

type channel struct {
	name string
	n    Notifier
}

// Dispatcher sends to every configured channel. HOLD signals are dropped
// unless IncludeHold is set.
type Dispatcher struct {
	Logger      *zap.Logger
	Metrics     *metrics.Recorder
	IncludeHold bool
	Timeout     time.Duration
	// Enabled is consulted per signal; nil means always on.
	Enabled func(ctx context.Context) bool

	channels []channel
	closers  []func() error
}

func (d *Dispatcher) Add(name string, n Notifier) {
	if n == nil {
		return
	}
	d.channels = append(d.channels, channel{name: name, n: n})
}

func (d *Dispatcher) Len() int {
	if d == nil {
		return 0
	}
	return len(d.channels)
}

// Notify tries every channel and returns the combined error of those that
// failed.
func (d *Dispatcher) Notify(ctx context.Context, rec *models.SignalRecord) error {
	if d == nil || rec == nil || len(d.channels) == 0 {
		return nil
	}
	if rec.Signal == "HOLD" && !d.IncludeHold {
		return nil
	}
	if d.Enabled != nil && !d.Enabled(ctx) {
		return nil
	}
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	var errs error
	for _, c := range d.channels {
		if err := c.n.Notify(ctx, rec); err != nil {
			d.Metrics.RecordNotifyError(c.name)
			if d.Logger != nil {
				d.Logger.Warn("signal notification failed", zap.String("channel", c.name), zap.Error(err))
			}
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	var errs error
	for _, c := range d.closers {
		errs = multierr.Append(errs, c())
	}
	return errs
}

// New builds a Dispatcher from config. Channels with missing settings are
// skipped; a disabled config yields an empty Dispatcher.
func New(cfg config.NotifyConfig, logger *zap.Logger, rec *metrics.Recorder) *Dispatcher {
	d := &Dispatcher{
		Logger:      logger,
		Metrics:     rec,
		IncludeHold: cfg.IncludeHold,
		Timeout:     cfg.Timeout,
	}
	if !cfg.Enabled {
		return d
	}
	if cfg.Webhook.URL != "" {
		d.Add("webhook", &Webhook{URL: cfg.Webhook.URL})
	}
	if cfg.Slack.Token != "" && cfg.Slack.Channel != "" {
		d.Add("slack", NewSlack(cfg.Slack.Token, cfg.Slack.Channel))
	}
	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.Topic != "" {
		k := NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		d.Add("kafka", k)
		d.closers = append(d.closers, k.Close)
	}
	if logger != nil {
		names := make([]string, 0, len(d.channels))
		for _, c := range d.channels {
			names = append(names, c.name)
		}
		logger.Info("signal notifications configured", zap.Strings("channels", names))
	}
	return d
}
