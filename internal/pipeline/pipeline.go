// Package pipeline runs one ingest-predict-signal cycle per tick.
//
// Stages run strictly in order:
//
//	fetch_latest -> persist_latest -> fetch_history -> train -> predict ->
//	compute_signal -> persist_signal
//
// Fetch and persist failures end the run. Train and predict failures are
// recorded on the result and the run goes on; a missing prediction falls back
// to the latest close.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"tradesignal/internal/metrics"
	"tradesignal/internal/models"
	"tradesignal/internal/predictor"
	"tradesignal/internal/runlock"
	"tradesignal/internal/strategy"
)

type DataSource interface {
	FetchLatest(ctx context.Context) (*models.Candle, error)
	// FetchHistory returns candles ascending by open time.
	FetchHistory(ctx context.Context, interval string, limit int) ([]models.Candle, error)
}

// Store upserts keyed by symbol and timestamp.
type Store interface {
	UpsertCandle(ctx context.Context, item *models.Candle) error
	UpsertSignal(ctx context.Context, item *models.SignalRecord) error
}

// Predictor returns nil, nil from Predict when the model has no answer.
type Predictor interface {
	Train(ctx context.Context) error
	Predict(ctx context.Context) (*predictor.Prediction, error)
}

type Notifier interface {
	Notify(ctx context.Context, rec *models.SignalRecord) error
}

type Stage string

const (
	StageLock          Stage = "lock"
	StageFetchLatest   Stage = "fetch_latest"
	StagePersistLatest Stage = "persist_latest"
	StageFetchHistory  Stage = "fetch_history"
	StageTrain         Stage = "train"
	StagePredict       Stage = "predict"
	StageComputeSignal Stage = "compute_signal"
	StagePersistSignal Stage = "persist_signal"
	StageDone          Stage = "done"
)

var (
	ErrNoLatestCandle = errors.New("no latest candle")
	ErrEmptyHistory   = errors.New("empty candle history")
	ErrRunInProgress  = errors.New("pipeline run already in progress")
	ErrNoPrediction   = errors.New("predictor returned no result")
)

const (
	DefaultHistoryInterval = "1h"
	DefaultHistoryLimit    = 200
)

type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// RunResult describes one run. Err is nil only when Stage is StageDone.
type RunResult struct {
	ID                 string               `json:"id"`
	StartedAt          time.Time            `json:"started_at"`
	FinishedAt         time.Time            `json:"finished_at"`
	Stage              Stage                `json:"stage"`
	Timestamp          time.Time            `json:"timestamp,omitempty"`
	HistoryLen         int                  `json:"history_len"`
	PredictionFallback bool                 `json:"prediction_fallback"`
	Signal             *models.SignalRecord `json:"signal,omitempty"`
	Tally              *strategy.Tally      `json:"tally,omitempty"`
	TrainError         string               `json:"train_error,omitempty"`
	PredictError       string               `json:"predict_error,omitempty"`
	Error              string               `json:"error,omitempty"`

	Err        error `json:"-"`
	TrainErr   error `json:"-"`
	PredictErr error `json:"-"`
}

func (r *RunResult) OK() bool {
	return r != nil && r.Err == nil && r.Stage == StageDone
}

type Orchestrator struct {
	Source     DataSource
	Store      Store
	Predictor  Predictor
	Strategies strategy.Set

	PredictionBand  float64
	HistoryInterval string
	HistoryLimit    int
	RunTimeout      time.Duration

	Logger   *zap.Logger
	Metrics  *metrics.Recorder
	Notifier Notifier
	Lock     runlock.Locker
	// Enabled gates scheduled runs only; nil means always on.
	Enabled func(ctx context.Context) bool

	mu   sync.RWMutex
	last *RunResult
}

// RunOnce executes every stage once and returns the result together with
// the run-level error. It never panics. Re-running for the same candle
// overwrites the stored candle and signal.
func (o *Orchestrator) RunOnce(ctx context.Context) (*RunResult, error) {
	if o == nil || o.Source == nil || o.Store == nil {
		return nil, errors.New("pipeline not configured")
	}
	if o.Lock != nil {
		release, ok, err := o.Lock.TryLock(ctx)
		if err != nil {
			o.Metrics.RecordRun("failed")
			return nil, &StageError{Stage: StageLock, Err: err}
		}
		if !ok {
			o.Metrics.RecordRun("busy")
			return nil, ErrRunInProgress
		}
		defer release()
	}
	if o.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.RunTimeout)
		defer cancel()
	}

	res := &RunResult{ID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := o.logger().With(zap.String("run_id", res.ID))

	func() {
		defer func() {
			if r := recover(); r != nil {
				res.Err = &StageError{Stage: res.Stage, Err: fmt.Errorf("panic: %v", r)}
				log.Error("pipeline panic", zap.String("stage", string(res.Stage)), zap.Any("panic", r), zap.Stack("stack"))
			}
		}()
		res.Err = o.run(ctx, res, log)
	}()

	res.FinishedAt = time.Now().UTC()
	if res.Err != nil {
		res.Error = res.Err.Error()
		o.Metrics.RecordRun("failed")
	} else {
		res.Stage = StageDone
		o.Metrics.RecordRun("ok")
	}
	o.setLast(res)
	return res, res.Err
}

func (o *Orchestrator) run(ctx context.Context, res *RunResult, log *zap.Logger) error {
	var latest *models.Candle
	err := o.stage(res, StageFetchLatest, func() error {
		c, err := o.Source.FetchLatest(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNoLatestCandle, err)
		}
		if c == nil {
			return ErrNoLatestCandle
		}
		latest = c
		return nil
	})
	if err != nil {
		return err
	}
	res.Timestamp = latest.OpenTime.UTC()
	log = log.With(zap.String("symbol", latest.Symbol), zap.Time("timestamp", res.Timestamp))

	if err := o.stage(res, StagePersistLatest, func() error {
		return o.Store.UpsertCandle(ctx, latest)
	}); err != nil {
		return err
	}

	var history []models.Candle
	if err := o.stage(res, StageFetchHistory, func() error {
		h, err := o.Source.FetchHistory(ctx, o.historyInterval(), o.historyLimit())
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEmptyHistory, err)
		}
		if len(h) == 0 {
			return ErrEmptyHistory
		}
		history = h
		return nil
	}); err != nil {
		return err
	}
	res.HistoryLen = len(history)

	if o.Predictor != nil {
		if err := o.stage(res, StageTrain, func() error { return o.Predictor.Train(ctx) }); err != nil {
			res.TrainErr = err
			res.TrainError = err.Error()
			log.Warn("model training failed, continuing", zap.Error(err))
		}
	}

	predicted := latest.Close
	err = o.stage(res, StagePredict, func() error {
		if o.Predictor == nil {
			return ErrNoPrediction
		}
		p, err := o.Predictor.Predict(ctx)
		if err != nil {
			return err
		}
		if p == nil {
			return ErrNoPrediction
		}
		predicted = p.PredictedClose
		return nil
	})
	if err != nil {
		res.PredictErr = err
		res.PredictError = err.Error()
		res.PredictionFallback = true
		o.Metrics.RecordFallback()
		log.Warn("prediction unavailable, using latest close", zap.Error(err), zap.String("fallback", predicted.String()))
	}

	var rec *models.SignalRecord
	if err := o.stage(res, StageComputeSignal, func() error {
		d := strategy.Generate(o.Strategies, history, predicted, o.PredictionBand)
		details, err := json.Marshal(d.Details)
		if err != nil {
			return err
		}
		res.Tally = &d.Tally
		rec = &models.SignalRecord{
			Symbol:             latest.Symbol,
			Timestamp:          res.Timestamp,
			PredictedPrice:     predicted,
			CurrentPrice:       history[len(history)-1].Close,
			PredictionFallback: res.PredictionFallback,
			Signal:             d.Signal.String(),
			Reason:             d.Reason,
			StrategyDetails:    datatypes.JSON(details),
		}
		return nil
	}); err != nil {
		return err
	}

	if err := o.stage(res, StagePersistSignal, func() error {
		return o.Store.UpsertSignal(ctx, rec)
	}); err != nil {
		return err
	}
	res.Signal = rec
	o.Metrics.RecordSignal(rec.Symbol, rec.Signal, float64(time.Now().Unix()))
	log.Info("signal generated",
		zap.String("signal", rec.Signal),
		zap.String("reason", rec.Reason),
		zap.String("predicted", rec.PredictedPrice.String()),
		zap.String("current", rec.CurrentPrice.String()),
		zap.Bool("fallback", rec.PredictionFallback),
	)

	if o.Notifier != nil {
		if err := o.Notifier.Notify(ctx, rec); err != nil {
			log.Warn("signal notification failed", zap.Error(err))
		}
	}
	return nil
}

// stage times fn and wraps its error with the stage name.
func (o *Orchestrator) stage(res *RunResult, stage Stage, fn func() error) error {
	res.Stage = stage
	start := time.Now()
	err := fn()
	o.Metrics.RecordStage(string(stage), time.Since(start).Seconds(), err != nil)
	if err != nil {
		return &StageError{Stage: stage, Err: err}
	}
	return nil
}

// Run is the scheduler entry point. It logs the outcome and swallows every
// failure so the schedule keeps firing.
func (o *Orchestrator) Run(ctx context.Context) {
	if o == nil {
		return
	}
	log := o.logger()
	if o.Enabled != nil && !o.Enabled(ctx) {
		log.Info("scheduled pipeline run skipped: disabled")
		return
	}
	res, err := o.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		log.Warn("scheduled pipeline run skipped: previous run still in progress")
	case err != nil:
		fields := []zap.Field{zap.Error(err)}
		if res != nil {
			fields = append(fields, zap.String("run_id", res.ID), zap.String("stage", string(res.Stage)))
		}
		log.Error("scheduled pipeline run failed", fields...)
	default:
		log.Info("scheduled pipeline run done",
			zap.String("run_id", res.ID),
			zap.Duration("took", res.FinishedAt.Sub(res.StartedAt)),
		)
	}
}

// Last returns a copy of the most recent run, or nil before the first run.
func (o *Orchestrator) Last() *RunResult {
	if o == nil {
		return nil
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.last == nil {
		return nil
	}
	cp := *o.last
	return &cp
}

func (o *Orchestrator) setLast(res *RunResult) {
	o.mu.Lock()
	o.last = res
	o.mu.Unlock()
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o *Orchestrator) historyInterval() string {
	if o.HistoryInterval == "" {
		return DefaultHistoryInterval
	}
	return o.HistoryInterval
}

func (o *Orchestrator) historyLimit() int {
	if o.HistoryLimit <= 0 {
		return DefaultHistoryLimit
	}
	return o.HistoryLimit
}
