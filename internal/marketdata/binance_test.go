package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesignal/internal/config"
)

const klinesBody = `[
  [1714557600000,"60000.10","60100.00","59950.00","60050.50","12.345",1714561199999,"741000.0",1200,"6.1","366000.0","0"],
  [1714561200000,"60050.50","60200.00","60000.00","60150.00","8.5",1714564799999,"511000.0",900,"4.0","240000.0","0"]
]`

func newTestSource(t *testing.T, handler http.HandlerFunc) *Binance {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewBinance(config.MarketDataConfig{
		BaseURL:        srv.URL,
		Symbol:         "btcusdt",
		LatestInterval: "1m",
	}, nil)
}

func TestFetchHistory(t *testing.T) {
	var calls atomic.Int32
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		assert.Equal(t, "200", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(klinesBody))
	})

	got, err := src.FetchHistory(context.Background(), "1h", 200)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.EqualValues(t, 1, calls.Load())

	first := got[0]
	assert.Equal(t, "BTCUSDT", first.Symbol)
	assert.Equal(t, "1h", first.Interval)
	assert.True(t, first.OpenTime.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "60050.5", first.Close.String())
	assert.Equal(t, "12.345", first.Volume.String())
	assert.NoError(t, first.Validate())
	assert.True(t, got[1].OpenTime.After(first.OpenTime))
}

func TestFetchLatest(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1m", r.URL.Query().Get("interval"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(klinesBody))
	})

	got, err := src.FetchLatest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "60150", got.Close.String())
}

func TestFetchLatest_EmptyIsNil(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	got, err := src.FetchLatest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFetchHistory_APIError(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	})
	_, err := src.FetchHistory(context.Background(), "1h", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "binance klines BTCUSDT 1h")
}

func TestFetchHistory_BadNumber(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[1714557600000,"x","1","1","1","1",1714561199999,"1",1,"1","1","0"]]`))
	})
	_, err := src.FetchHistory(context.Background(), "1h", 1)
	require.Error(t, err)
}
