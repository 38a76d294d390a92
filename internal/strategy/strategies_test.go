package strategy

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesignal/internal/config"
)

func TestKindsOrderAndNames(t *testing.T) {
	want := []string{"MAC", "RSI", "Scalping", "Swing/Day", "TrendFollowing", "Range/Reversal"}
	require.Len(t, Kinds, len(want))
	for i, k := range Kinds {
		assert.Equal(t, want[i], k.Name())
	}
}

func TestEvaluate_AlwaysSixInOrder(t *testing.T) {
	for _, n := range []int{0, 1, 30, 250} {
		out := NewSet(DefaultParams()).Evaluate(candlesFromCloses(flat(n, 100)...))
		require.Len(t, out, 6)
		for i, v := range out {
			if v.Strategy != Kinds[i].Name() {
				t.Fatalf("n=%d idx=%d strategy=%s want=%s", n, i, v.Strategy, Kinds[i].Name())
			}
			assert.True(t, v.Signal.Valid())
		}
	}
}

func TestInsufficientDataHolds(t *testing.T) {
	lookback := map[Kind]int{
		MovingAverageCrossover: 50,
		RSIMomentum:            15,
		Scalping:               2,
		SwingDay:               24,
		TrendFollowing:         200,
		RangeReversal:          48,
	}
	rng := rand.New(rand.NewSource(7))
	set := NewSet(DefaultParams())
	for k, need := range lookback {
		for n := 0; n < need; n++ {
			closes := make([]float64, n)
			for i := range closes {
				closes[i] = 100 + rng.Float64()*50
			}
			v := set.evaluate(k, candlesFromCloses(closes...))
			if v.Signal != Hold {
				t.Fatalf("%s n=%d signal=%s want=HOLD", k.Name(), n, v.Signal)
			}
			if !strings.HasPrefix(v.Reason, "Insufficient data") {
				t.Fatalf("%s n=%d reason=%q", k.Name(), n, v.Reason)
			}
		}
	}
}

func TestZeroSetUsesDefaults(t *testing.T) {
	var s Set
	out := s.Evaluate(candlesFromCloses(flat(20, 100)...))
	assert.Equal(t, "Insufficient data for MA Crossover.", out[0].Reason)
	assert.Equal(t, "RSI (100.00) is overbought.", out[1].Reason)
}

func TestMAC_CrossAboveOnLastCandle(t *testing.T) {
	// non-decreasing: flat, then one uptick
	closes := append(flat(199, 100), 100.1)
	v := NewSet(DefaultParams()).evaluate(MovingAverageCrossover, candlesFromCloses(closes...))
	assert.Equal(t, Buy, v.Signal)
	assert.Equal(t, "Short MA crossed above Long MA.", v.Reason)
}

func TestMAC_CrossBelowOnLastCandle(t *testing.T) {
	closes := append(flat(80, 100), 99.9)
	v := NewSet(DefaultParams()).evaluate(MovingAverageCrossover, candlesFromCloses(closes...))
	assert.Equal(t, Sell, v.Signal)
}

func TestMAC_NoCrossInSteadyTrend(t *testing.T) {
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	v := NewSet(DefaultParams()).evaluate(MovingAverageCrossover, candlesFromCloses(closes...))
	assert.Equal(t, Hold, v.Signal)
	assert.Equal(t, "No MA crossover detected.", v.Reason)
}

func TestMAC_ExactLookbackComparesAgainstSentinel(t *testing.T) {
	// With exactly 50 closes the previous long SMA is the zero sentinel,
	// so any short-below-long state reads as a cross below.
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 200 - float64(i)
	}
	v := NewSet(DefaultParams()).evaluate(MovingAverageCrossover, candlesFromCloses(closes...))
	assert.Equal(t, Sell, v.Signal)
}

func TestRSIMomentum(t *testing.T) {
	set := NewSet(DefaultParams())

	up := make([]float64, 20)
	down := make([]float64, 20)
	for i := range up {
		up[i] = 100 + float64(i)
		down[i] = 100 - float64(i)
	}
	v := set.evaluate(RSIMomentum, candlesFromCloses(up...))
	assert.Equal(t, Sell, v.Signal)
	assert.Equal(t, "RSI (100.00) is overbought.", v.Reason)

	v = set.evaluate(RSIMomentum, candlesFromCloses(down...))
	assert.Equal(t, Buy, v.Signal)
	assert.Equal(t, "RSI (0.00) is oversold.", v.Reason)

	zigzag := make([]float64, 21)
	for i := range zigzag {
		zigzag[i] = 100 + float64(i%2)
	}
	v = set.evaluate(RSIMomentum, candlesFromCloses(zigzag...))
	assert.Equal(t, Hold, v.Signal)
	assert.Contains(t, v.Reason, "is neutral.")
}

func TestScalping(t *testing.T) {
	set := NewSet(DefaultParams())

	v := set.evaluate(Scalping, candlesFromCloses(100, 100.1))
	assert.Equal(t, Buy, v.Signal)
	assert.Equal(t, "Price increased by 0.0010%.", v.Reason)

	v = set.evaluate(Scalping, candlesFromCloses(100, 99.9))
	assert.Equal(t, Sell, v.Signal)

	// 0.04% stays under the 0.05% threshold.
	v = set.evaluate(Scalping, candlesFromCloses(100, 100.04))
	assert.Equal(t, Hold, v.Signal)
	assert.Equal(t, "No significant short-term price change.", v.Reason)
}

func TestSwingDay(t *testing.T) {
	set := NewSet(DefaultParams())

	// Close at the window high: resistance.
	closes := make([]float64, 24)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	v := set.evaluate(SwingDay, candlesFromCloses(closes...))
	assert.Equal(t, Sell, v.Signal)
	assert.Equal(t, "Price (123.00) near resistance (123.00).", v.Reason)

	// Close at the window low: support.
	for i := range closes {
		closes[i] = 200 - float64(i)
	}
	v = set.evaluate(SwingDay, candlesFromCloses(closes...))
	assert.Equal(t, Buy, v.Signal)
	assert.Equal(t, "Price (177.00) near support (177.00).", v.Reason)

	// Mid-range close.
	closes = append(flat(12, 90), flat(11, 110)...)
	closes = append(closes, 100)
	v = set.evaluate(SwingDay, candlesFromCloses(closes...))
	assert.Equal(t, Hold, v.Signal)
	assert.Equal(t, "Price is within recent range.", v.Reason)
}

func TestSwingDay_ResistanceCheckedFirst(t *testing.T) {
	// A flat window is both within 1% of its high and its low.
	v := NewSet(DefaultParams()).evaluate(SwingDay, candlesFromCloses(flat(24, 100)...))
	assert.Equal(t, Sell, v.Signal)
}

func TestTrendFollowing(t *testing.T) {
	set := NewSet(DefaultParams())

	closes := append(flat(249, 100), 100.1)
	v := set.evaluate(TrendFollowing, candlesFromCloses(closes...))
	assert.Equal(t, Buy, v.Signal)
	assert.Equal(t, "Short-term MA crossed above Long-term MA (bullish).", v.Reason)

	closes = append(flat(249, 100), 99.9)
	v = set.evaluate(TrendFollowing, candlesFromCloses(closes...))
	assert.Equal(t, Sell, v.Signal)
	assert.Equal(t, "Short-term MA crossed below Long-term MA (bearish).", v.Reason)

	v = set.evaluate(TrendFollowing, candlesFromCloses(flat(250, 100)...))
	assert.Equal(t, Hold, v.Signal)
}

func TestRangeReversal(t *testing.T) {
	set := NewSet(DefaultParams())

	// 1% wide range, close at the bottom.
	closes := append(flat(24, 101), flat(23, 100.5)...)
	closes = append(closes, 100)
	v := set.evaluate(RangeReversal, candlesFromCloses(closes...))
	assert.Equal(t, Buy, v.Signal)
	assert.Equal(t, "Price (100.00) is near range bottom (100.00).", v.Reason)

	closes = append(flat(24, 100), flat(23, 100.5)...)
	closes = append(closes, 101)
	v = set.evaluate(RangeReversal, candlesFromCloses(closes...))
	assert.Equal(t, Sell, v.Signal)
	assert.Equal(t, "Price (101.00) is near range top (101.00).", v.Reason)

	// 10% wide: not ranging.
	closes = append(flat(47, 110), 100)
	v = set.evaluate(RangeReversal, candlesFromCloses(closes...))
	assert.Equal(t, Hold, v.Signal)
	assert.Equal(t, "Not in a clear range or no reversal opportunity.", v.Reason)
}

func TestParamsFromConfig(t *testing.T) {
	p := ParamsFromConfig(config.StrategyConfig{MACShortPeriod: 5, RangePct: 0.05})
	want := DefaultParams()
	want.MACShort = 5
	want.RangePct = 0.05
	assert.Equal(t, want, p)

	assert.Equal(t, DefaultParams(), ParamsFromConfig(config.StrategyConfig{}))
}
