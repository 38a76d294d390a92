package predictor

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesignal/internal/config"
)

func newMock(t *testing.T) (*MindsDB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.PredictorConfig{
		Model:      "btc_price_predictor",
		Datasource: "signal_store",
		Table:      "candles",
		Window:     24,
		Horizon:    1,
		Timeout:    time.Second,
		Source: config.PredictorDataSource{
			Engine:   "postgres",
			Host:     "postgres",
			Port:     5432,
			User:     "postgres",
			Password: `p"w`,
			Database: "tradesignal",
		},
	}
	return New(sqlx.NewDb(db, "mysql"), cfg, "btcusdt", nil), mock
}

func TestTrain(t *testing.T) {
	m, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta(`CREATE DATABASE IF NOT EXISTS signal_store WITH ENGINE = 'postgres', PARAMETERS = {`) +
		`.*` + regexp.QuoteMeta(`"password":"p\"w"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(
		`CREATE MODEL IF NOT EXISTS btc_price_predictor FROM signal_store ` +
			`(SELECT open_time, open, high, low, close, volume FROM candles WHERE symbol = 'BTCUSDT') ` +
			`PREDICT close ORDER BY open_time GROUP BY NULL WINDOW 24 HORIZON 1`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, m.Train(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTrain_DatasourceFailureStops(t *testing.T) {
	m, mock := newMock(t)
	mock.ExpectExec(`CREATE DATABASE`).WillReturnError(errors.New("mindsdb down"))

	err := m.Train(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create datasource signal_store")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPredict(t *testing.T) {
	m, mock := newMock(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT open_time, close FROM signal_store.candles WHERE symbol = ? ORDER BY open_time DESC LIMIT 1`)).
		WithArgs("BTCUSDT").
		WillReturnRows(sqlmock.NewRows([]string{"open_time", "close"}).AddRow(base, "60150.00"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT m.close AS predicted_close FROM signal_store.candles AS t JOIN btc_price_predictor AS m`)).
		WithArgs("BTCUSDT", base).
		WillReturnRows(sqlmock.NewRows([]string{"predicted_close"}).AddRow(60321.5))

	got, err := m.Predict(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "60321.5", got.PredictedClose.String())
	assert.True(t, got.BaseTime.Equal(base))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPredict_NoStoredCandles(t *testing.T) {
	m, mock := newMock(t)
	mock.ExpectQuery(`SELECT open_time, close FROM signal_store.candles`).
		WillReturnRows(sqlmock.NewRows([]string{"open_time", "close"}))

	got, err := m.Predict(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPredict_NullPrediction(t *testing.T) {
	m, mock := newMock(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT open_time, close`).
		WillReturnRows(sqlmock.NewRows([]string{"open_time", "close"}).AddRow(base, "1"))
	mock.ExpectQuery(`SELECT m.close AS predicted_close`).
		WillReturnRows(sqlmock.NewRows([]string{"predicted_close"}).AddRow(nil))

	got, err := m.Predict(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPredict_QueryError(t *testing.T) {
	m, mock := newMock(t)
	mock.ExpectQuery(`SELECT open_time, close`).WillReturnError(errors.New("boom"))

	_, err := m.Predict(context.Background())
	require.Error(t, err)
}

func TestRejectsUnsafeIdentifiers(t *testing.T) {
	m, _ := newMock(t)
	m.Table = "candles; DROP TABLE x"
	assert.Error(t, m.Train(context.Background()))

	m, _ = newMock(t)
	m.Symbol = "BTC'USDT"
	_, err := m.Predict(context.Background())
	assert.Error(t, err)
}
