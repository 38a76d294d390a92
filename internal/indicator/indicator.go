// Package indicator holds the pure price-series math used by the strategies.
//
// SMA, EMA and RSI return 0 when the series is too short for the period.
// Strategies check lengths before trusting a value, and several crossover
// rules depend on that zero, so it is part of the contract. The ok-returning
// variants report the same condition explicitly.
package indicator

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const DefaultRSIPeriod = 14

func SMA(prices []float64, period int) float64 {
	v, _ := SimpleMovingAverage(prices, period)
	return v
}

// EMA is not consumed by any strategy today.
func EMA(prices []float64, period int) float64 {
	v, _ := ExponentialMovingAverage(prices, period)
	return v
}

func RSI(prices []float64, period int) float64 {
	v, _ := RelativeStrengthIndex(prices, period)
	return v
}

// SimpleMovingAverage is the mean of the last period prices.
func SimpleMovingAverage(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}
	return floats.Sum(prices[len(prices)-period:]) / float64(period), true
}

// ExponentialMovingAverage seeds with the SMA of the first period prices and
// folds in the rest with k = 2/(period+1).
func ExponentialMovingAverage(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period {
		return 0, false
	}
	seed, _ := SimpleMovingAverage(prices[:period], period)
	k := 2 / float64(period+1)
	ema := seed
	for _, p := range prices[period:] {
		ema = (p-ema)*k + ema
	}
	return ema, true
}

// RelativeStrengthIndex uses Wilder smoothing. It needs period+1 prices and
// saturates at 100 when the smoothed loss is zero.
func RelativeStrengthIndex(prices []float64, period int) (float64, bool) {
	if period <= 0 || len(prices) < period+1 {
		return 0, false
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		d := prices[i] - prices[i-1]
		if d > 0 {
			avgGain += d
		} else {
			avgLoss += math.Abs(d)
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	n := float64(period)
	for i := period + 1; i < len(prices); i++ {
		d := prices[i] - prices[i-1]
		if d > 0 {
			avgGain = (avgGain*(n-1) + d) / n
			avgLoss = (avgLoss * (n - 1)) / n
		} else {
			avgLoss = (avgLoss*(n-1) + math.Abs(d)) / n
			avgGain = (avgGain * (n - 1)) / n
		}
	}

	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// Max and Min return 0 for an empty slice.
func Max(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Max(values)
}

func Min(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Min(values)
}
