package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"tradesignal/internal/models"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// candlesFromCloses builds hourly candles with open=high=low=close.
func candlesFromCloses(closes ...float64) []models.Candle {
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		d := decimal.NewFromFloat(c)
		out[i] = models.Candle{
			Symbol:   "BTCUSDT",
			Interval: "1h",
			OpenTime: t0.Add(time.Duration(i) * time.Hour),
			Open:     d,
			High:     d,
			Low:      d,
			Close:    d,
			Volume:   decimal.NewFromInt(1),
		}
	}
	return out
}

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func verdicts(signals ...Signal) []Verdict {
	out := make([]Verdict, len(signals))
	for i, s := range signals {
		out[i] = Verdict{Strategy: Kinds[i%len(Kinds)].Name(), Signal: s, Reason: "test"}
	}
	return out
}
