// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tradesignal"

// Recorder is nil-safe; a nil *Recorder records nothing.
type Recorder struct {
	runsTotal          *prometheus.CounterVec
	stageFailures      *prometheus.CounterVec
	stageDuration      *prometheus.HistogramVec
	predictionFallback prometheus.Counter
	notifyErrors       *prometheus.CounterVec
	lastSignal         *prometheus.GaugeVec
	lastRun            prometheus.Gauge
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer to
// serve them from promhttp.Handler.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_runs_total",
				Help:      "Pipeline runs by outcome (ok, failed, busy).",
			},
			[]string{"outcome"},
		),
		stageFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_stage_failures_total",
				Help:      "Stage failures, including recovered train and predict failures.",
			},
			[]string{"stage"},
		),
		stageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_stage_duration_seconds",
				Help:      "Duration of each pipeline stage in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		predictionFallback: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_fallbacks_total",
			Help:      "Runs that used the current close in place of a model prediction.",
		}),
		notifyErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notify_errors_total",
				Help:      "Failed signal notifications by channel.",
			},
			[]string{"channel"},
		),
		lastSignal: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_signal",
				Help:      "Last persisted signal: 1 BUY, -1 SELL, 0 HOLD.",
			},
			[]string{"symbol"},
		),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_successful_run_timestamp_seconds",
			Help:      "Unix time of the last run that persisted a signal.",
		}),
	}
}

func (r *Recorder) RecordRun(outcome string) {
	if r == nil {
		return
	}
	r.runsTotal.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordStage(stage string, seconds float64, failed bool) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(seconds)
	if failed {
		r.stageFailures.WithLabelValues(stage).Inc()
	}
}

func (r *Recorder) RecordFallback() {
	if r == nil {
		return
	}
	r.predictionFallback.Inc()
}

func (r *Recorder) RecordNotifyError(channel string) {
	if r == nil {
		return
	}
	r.notifyErrors.WithLabelValues(channel).Inc()
}

// RecordSignal stores the signal as a gauge value and stamps the run time.
func (r *Recorder) RecordSignal(symbol, signal string, unixSeconds float64) {
	if r == nil {
		return
	}
	v := 0.0
	switch signal {
	case "BUY":
		v = 1
	case "SELL":
		v = -1
	}
	r.lastSignal.WithLabelValues(symbol).Set(v)
	r.lastRun.Set(unixSeconds)
}
