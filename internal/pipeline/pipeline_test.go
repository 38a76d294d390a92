package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tradesignal/internal/metrics"
	"tradesignal/internal/models"
	"tradesignal/internal/predictor"
	"tradesignal/internal/repository"
	"tradesignal/internal/repository/memory"
	"tradesignal/internal/runlock"
	"tradesignal/internal/strategy"
)

var t0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func candle(i int, close float64) models.Candle {
	c := decimal.NewFromFloat(close)
	return models.Candle{
		Symbol:   "BTCUSDT",
		Interval: "1h",
		OpenTime: t0.Add(time.Duration(i) * time.Hour),
		Open:     c,
		High:     c.Add(decimal.NewFromInt(2)),
		Low:      c,
		Close:    c,
		Volume:   decimal.NewFromInt(3),
	}
}

func series(closes []float64) []models.Candle {
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = candle(i, c)
	}
	return out
}

// crossingCloses declines for 150 candles, flattens, then ticks up on the
// 200th candle so the 10/50 average crosses upward.
func crossingCloses() []float64 {
	closes := make([]float64, 0, 200)
	for i := 0; i <= 150; i++ {
		closes = append(closes, 300-float64(i))
	}
	for len(closes) < 199 {
		closes = append(closes, 150)
	}
	return append(closes, 150.1)
}

func flatCloses(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

type fakeSource struct {
	latest     *models.Candle
	latestErr  error
	history    []models.Candle
	historyErr error
	panicOn    Stage

	latestCalls  atomic.Int32
	historyCalls atomic.Int32
	gotInterval  string
	gotLimit     int
}

func (f *fakeSource) FetchLatest(context.Context) (*models.Candle, error) {
	f.latestCalls.Add(1)
	if f.panicOn == StageFetchLatest {
		panic("exchange exploded")
	}
	if f.latest == nil {
		return nil, f.latestErr
	}
	c := *f.latest
	return &c, f.latestErr
}

func (f *fakeSource) FetchHistory(_ context.Context, interval string, limit int) ([]models.Candle, error) {
	f.historyCalls.Add(1)
	f.gotInterval, f.gotLimit = interval, limit
	if f.panicOn == StageFetchHistory {
		panic("history exploded")
	}
	return f.history, f.historyErr
}

type mockPredictor struct {
	mock.Mock
}

func (m *mockPredictor) Train(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockPredictor) Predict(ctx context.Context) (*predictor.Prediction, error) {
	args := m.Called(ctx)
	p, _ := args.Get(0).(*predictor.Prediction)
	return p, args.Error(1)
}

type failingSignalStore struct {
	*memory.Store
}

func (failingSignalStore) UpsertSignal(context.Context, *models.SignalRecord) error {
	return errors.New("db gone")
}

type recordingNotifier struct {
	got []*models.SignalRecord
	err error
}

func (n *recordingNotifier) Notify(_ context.Context, rec *models.SignalRecord) error {
	n.got = append(n.got, rec)
	return n.err
}

func newOrchestrator(src DataSource, store Store, p Predictor) *Orchestrator {
	o := &Orchestrator{
		Source:         src,
		Store:          store,
		Strategies:     strategy.NewSet(strategy.DefaultParams()),
		PredictionBand: strategy.DefaultPredictionBand,
		Metrics:        metrics.New(prometheus.NewRegistry()),
	}
	if p != nil {
		o.Predictor = p
	}
	return o
}

func countSignals(t *testing.T, s *memory.Store) int64 {
	t.Helper()
	n, err := s.CountSignals(context.Background(), repository.ListSignalsParams{})
	require.NoError(t, err)
	return n
}

func countCandles(t *testing.T, s *memory.Store) int64 {
	t.Helper()
	n, err := s.CountCandles(context.Background(), repository.ListCandlesParams{})
	require.NoError(t, err)
	return n
}

func TestRunOnce_EndToEndBuy(t *testing.T) {
	history := series(crossingCloses())
	last := history[len(history)-1]
	src := &fakeSource{latest: &last, history: history}
	store := memory.New()
	p := &mockPredictor{}
	p.On("Train", mock.Anything).Return(nil).Once()
	p.On("Predict", mock.Anything).Return(&predictor.Prediction{PredictedClose: last.Close, BaseTime: last.OpenTime}, nil).Once()
	notifier := &recordingNotifier{}

	o := newOrchestrator(src, store, p)
	o.Notifier = notifier
	res, err := o.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, res.OK())
	p.AssertExpectations(t)

	assert.Equal(t, "1h", src.gotInterval)
	assert.Equal(t, 200, src.gotLimit)
	assert.Equal(t, 200, res.HistoryLen)
	assert.False(t, res.PredictionFallback)
	assert.True(t, res.Timestamp.Equal(last.OpenTime))

	rec, err := store.LatestSignal(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "BUY", rec.Signal)
	assert.True(t, rec.Timestamp.Equal(last.OpenTime))
	assert.Equal(t, "150.1", rec.PredictedPrice.String())

	var details []strategy.Verdict
	require.NoError(t, json.Unmarshal(rec.StrategyDetails, &details))
	require.Len(t, details, 6)
	for i, k := range strategy.Kinds {
		assert.Equal(t, k.Name(), details[i].Strategy)
	}
	assert.Equal(t, strategy.Buy, details[0].Signal)

	require.Len(t, notifier.got, 1)
	assert.Equal(t, "BUY", notifier.got[0].Signal)
	assert.Equal(t, res.ID, o.Last().ID)
}

func TestRunOnce_IsIdempotentPerTimestamp(t *testing.T) {
	history := series(flatCloses(60, 100))
	latest := candle(59, 100)
	src := &fakeSource{latest: &latest, history: history}
	store := memory.New()
	o := newOrchestrator(src, store, nil)

	_, err := o.RunOnce(context.Background())
	require.NoError(t, err)

	latest2 := candle(59, 101)
	src.latest = &latest2
	_, err = o.RunOnce(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 1, countCandles(t, store))
	assert.EqualValues(t, 1, countSignals(t, store))

	c, err := store.LatestCandle(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "101", c.Close.String())

	rec, err := store.LatestSignal(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "101", rec.PredictedPrice.String())
	assert.True(t, rec.PredictionFallback)
}

func TestRunOnce_NoLatestCandleAborts(t *testing.T) {
	for name, src := range map[string]*fakeSource{
		"nil candle": {},
		"error":      {latestErr: errors.New("binance 503")},
	} {
		t.Run(name, func(t *testing.T) {
			store := memory.New()
			o := newOrchestrator(src, store, nil)

			res, err := o.RunOnce(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNoLatestCandle)
			var se *StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, StageFetchLatest, se.Stage)
			assert.False(t, res.OK())

			assert.Zero(t, src.historyCalls.Load())
			assert.Zero(t, countCandles(t, store))
			assert.Zero(t, countSignals(t, store))
		})
	}
}

func TestRunOnce_HistoryFailureStoresNoSignal(t *testing.T) {
	latest := candle(0, 100)
	for name, src := range map[string]*fakeSource{
		"error": {latest: &latest, historyErr: errors.New("timeout")},
		"empty": {latest: &latest, history: []models.Candle{}},
	} {
		t.Run(name, func(t *testing.T) {
			store := memory.New()
			p := &mockPredictor{}
			o := newOrchestrator(src, store, p)

			res, err := o.RunOnce(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrEmptyHistory)
			assert.Equal(t, StageFetchHistory, res.Stage)

			// The latest candle is persisted before history is requested.
			assert.EqualValues(t, 1, countCandles(t, store))
			assert.Zero(t, countSignals(t, store))
			p.AssertNotCalled(t, "Train", mock.Anything)
			p.AssertNotCalled(t, "Predict", mock.Anything)
		})
	}
}

func TestRunOnce_PredictorFailureFallsBack(t *testing.T) {
	history := series(flatCloses(60, 100))
	latest := candle(59, 100.25)
	for name, setup := range map[string]func(p *mockPredictor){
		"error": func(p *mockPredictor) {
			p.On("Predict", mock.Anything).Return(nil, errors.New("mindsdb down"))
		},
		"no result": func(p *mockPredictor) {
			p.On("Predict", mock.Anything).Return(nil, nil)
		},
	} {
		t.Run(name, func(t *testing.T) {
			p := &mockPredictor{}
			p.On("Train", mock.Anything).Return(nil)
			setup(p)
			store := memory.New()
			o := newOrchestrator(&fakeSource{latest: &latest, history: history}, store, p)

			res, err := o.RunOnce(context.Background())
			require.NoError(t, err)
			assert.True(t, res.PredictionFallback)
			assert.NotEmpty(t, res.PredictError)

			rec, err := store.LatestSignal(context.Background(), "BTCUSDT")
			require.NoError(t, err)
			require.NotNil(t, rec)
			assert.Equal(t, "100.25", rec.PredictedPrice.String())
			assert.True(t, rec.PredictionFallback)
		})
	}
}

func TestRunOnce_TrainFailureContinues(t *testing.T) {
	history := series(flatCloses(60, 100))
	latest := history[59]
	p := &mockPredictor{}
	p.On("Train", mock.Anything).Return(errors.New("model busy"))
	p.On("Predict", mock.Anything).Return(&predictor.Prediction{PredictedClose: decimal.NewFromInt(110)}, nil)
	store := memory.New()
	o := newOrchestrator(&fakeSource{latest: &latest, history: history}, store, p)

	res, err := o.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Contains(t, res.TrainError, "model busy")
	assert.Error(t, res.TrainErr)
	assert.False(t, res.PredictionFallback)
	p.AssertExpectations(t)

	rec, err := store.LatestSignal(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "110", rec.PredictedPrice.String())
}

func TestRunOnce_PersistFailureIsRunFailure(t *testing.T) {
	history := series(flatCloses(60, 100))
	latest := history[59]
	notifier := &recordingNotifier{}
	o := newOrchestrator(&fakeSource{latest: &latest, history: history}, failingSignalStore{memory.New()}, nil)
	o.Notifier = notifier

	res, err := o.RunOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, StagePersistSignal, res.Stage)
	assert.Contains(t, res.Error, "db gone")
	assert.Nil(t, res.Signal)
	assert.Empty(t, notifier.got)
}

func TestRunOnce_RecoversPanics(t *testing.T) {
	latest := candle(0, 100)
	store := memory.New()
	o := newOrchestrator(&fakeSource{latest: &latest, panicOn: StageFetchHistory}, store, nil)

	var (
		res *RunResult
		err error
	)
	require.NotPanics(t, func() { res, err = o.RunOnce(context.Background()) })
	require.Error(t, err)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageFetchHistory, se.Stage)
	assert.Contains(t, err.Error(), "history exploded")
	assert.Zero(t, countSignals(t, store))
	assert.Equal(t, res.ID, o.Last().ID)
}

func TestRunOnce_NotifierErrorDoesNotFailRun(t *testing.T) {
	history := series(crossingCloses())
	latest := history[len(history)-1]
	o := newOrchestrator(&fakeSource{latest: &latest, history: history}, memory.New(), nil)
	o.Notifier = &recordingNotifier{err: errors.New("slack down")}

	res, err := o.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.OK())
}

func TestRunOnce_LockBusy(t *testing.T) {
	history := series(flatCloses(60, 100))
	latest := history[59]
	src := &fakeSource{latest: &latest, history: history}
	lock := runlock.NewLocal()
	o := newOrchestrator(src, memory.New(), nil)
	o.Lock = lock

	release, ok, err := lock.TryLock(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	_, err = o.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.Zero(t, src.latestCalls.Load())

	release()
	_, err = o.RunOnce(context.Background())
	assert.NoError(t, err)
}

func TestRun_SurvivesFailuresAndHonoursGate(t *testing.T) {
	src := &fakeSource{panicOn: StageFetchLatest}
	o := newOrchestrator(src, memory.New(), nil)

	assert.NotPanics(t, func() { o.Run(context.Background()) })
	assert.NotPanics(t, func() { o.Run(context.Background()) })
	assert.EqualValues(t, 2, src.latestCalls.Load())

	o.Enabled = func(context.Context) bool { return false }
	o.Run(context.Background())
	assert.EqualValues(t, 2, src.latestCalls.Load())
}

func TestRunOnce_NotConfigured(t *testing.T) {
	var o *Orchestrator
	_, err := o.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Nil(t, o.Last())
}
