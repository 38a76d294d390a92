package strategy

import (
	"fmt"

	"tradesignal/internal/indicator"
	"tradesignal/internal/models"
)

// Kind enumerates the six strategies. The order is the order verdicts are
// produced and persisted in.
type Kind int

const (
	MovingAverageCrossover Kind = iota
	RSIMomentum
	Scalping
	SwingDay
	TrendFollowing
	RangeReversal
)

var Kinds = []Kind{
	MovingAverageCrossover,
	RSIMomentum,
	Scalping,
	SwingDay,
	TrendFollowing,
	RangeReversal,
}

func (k Kind) Name() string {
	switch k {
	case MovingAverageCrossover:
		return "MAC"
	case RSIMomentum:
		return "RSI"
	case Scalping:
		return "Scalping"
	case SwingDay:
		return "Swing/Day"
	case TrendFollowing:
		return "TrendFollowing"
	case RangeReversal:
		return "Range/Reversal"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Set evaluates every strategy with one parameter set.
type Set struct {
	Params Params
}

func NewSet(p Params) Set {
	return Set{Params: p}
}

// Evaluate returns one verdict per Kind, in Kinds order.
func (s Set) Evaluate(candles []models.Candle) []Verdict {
	out := make([]Verdict, 0, len(Kinds))
	for _, k := range Kinds {
		out = append(out, s.evaluate(k, candles))
	}
	return out
}

func (s Set) evaluate(k Kind, candles []models.Candle) Verdict {
	p := s.Params
	if p == (Params{}) {
		p = DefaultParams()
	}
	switch k {
	case MovingAverageCrossover:
		return crossover(k, candles, p.MACShort, p.MACLong, crossoverReasons{
			insufficient: "Insufficient data for MA Crossover.",
			up:           "Short MA crossed above Long MA.",
			down:         "Short MA crossed below Long MA.",
			none:         "No MA crossover detected.",
		})
	case RSIMomentum:
		return rsiMomentum(candles, p)
	case Scalping:
		return scalping(candles, p)
	case SwingDay:
		return swingDay(candles, p)
	case TrendFollowing:
		return crossover(k, candles, p.TrendShort, p.TrendLong, crossoverReasons{
			insufficient: "Insufficient data for Trend Following.",
			up:           "Short-term MA crossed above Long-term MA (bullish).",
			down:         "Short-term MA crossed below Long-term MA (bearish).",
			none:         "No significant long-term trend change.",
		})
	case RangeReversal:
		return rangeReversal(candles, p)
	default:
		return Verdict{Strategy: k.Name(), Signal: Hold, Reason: "Unknown strategy."}
	}
}

type crossoverReasons struct {
	insufficient string
	up           string
	down         string
	none         string
}

// crossover fires only on the candle where the short SMA crosses the long
// one. The previous pair is computed on the series minus its last candle, so
// at exactly long candles the previous long SMA is the zero sentinel.
func crossover(k Kind, candles []models.Candle, short, long int, r crossoverReasons) Verdict {
	closes := models.Closes(candles)
	if long <= 0 || len(closes) < long {
		return Verdict{Strategy: k.Name(), Signal: Hold, Reason: r.insufficient}
	}

	shortMA := indicator.SMA(closes, short)
	longMA := indicator.SMA(closes, long)
	prev := closes[:len(closes)-1]
	prevShort := indicator.SMA(prev, short)
	prevLong := indicator.SMA(prev, long)

	switch {
	case shortMA > longMA && prevShort <= prevLong:
		return Verdict{Strategy: k.Name(), Signal: Buy, Reason: r.up}
	case shortMA < longMA && prevShort >= prevLong:
		return Verdict{Strategy: k.Name(), Signal: Sell, Reason: r.down}
	}
	return Verdict{Strategy: k.Name(), Signal: Hold, Reason: r.none}
}

func rsiMomentum(candles []models.Candle, p Params) Verdict {
	name := RSIMomentum.Name()
	closes := models.Closes(candles)
	if len(closes) < p.RSIPeriod+1 {
		return Verdict{Strategy: name, Signal: Hold, Reason: "Insufficient data for RSI."}
	}

	rsi := indicator.RSI(closes, p.RSIPeriod)
	switch {
	case rsi > p.RSIOverbought:
		return Verdict{Strategy: name, Signal: Sell, Reason: fmt.Sprintf("RSI (%.2f) is overbought.", rsi)}
	case rsi < p.RSIOversold:
		return Verdict{Strategy: name, Signal: Buy, Reason: fmt.Sprintf("RSI (%.2f) is oversold.", rsi)}
	}
	return Verdict{Strategy: name, Signal: Hold, Reason: fmt.Sprintf("RSI (%.2f) is neutral.", rsi)}
}

func scalping(candles []models.Candle, p Params) Verdict {
	name := Scalping.Name()
	if len(candles) < 2 {
		return Verdict{Strategy: name, Signal: Hold, Reason: "Insufficient data for scalping."}
	}
	last := candles[len(candles)-1].Close.InexactFloat64()
	prev := candles[len(candles)-2].Close.InexactFloat64()
	if prev == 0 {
		return Verdict{Strategy: name, Signal: Hold, Reason: "No significant short-term price change."}
	}

	change := (last - prev) / prev
	switch {
	case change > p.ScalpThreshold:
		return Verdict{Strategy: name, Signal: Buy, Reason: fmt.Sprintf("Price increased by %.4f%%.", change)}
	case change < -p.ScalpThreshold:
		return Verdict{Strategy: name, Signal: Sell, Reason: fmt.Sprintf("Price decreased by %.4f%%.", change)}
	}
	return Verdict{Strategy: name, Signal: Hold, Reason: "No significant short-term price change."}
}

// swingDay checks resistance before support, so a window narrow enough to
// satisfy both reads as SELL.
func swingDay(candles []models.Candle, p Params) Verdict {
	name := SwingDay.Name()
	if p.SwingLookback <= 0 || len(candles) < p.SwingLookback {
		return Verdict{Strategy: name, Signal: Hold, Reason: "Insufficient data for Swing/Day Trading."}
	}

	recent := candles[len(candles)-p.SwingLookback:]
	current := recent[len(recent)-1].Close.InexactFloat64()
	maxHigh := indicator.Max(models.Highs(recent))
	minLow := indicator.Min(models.Lows(recent))

	switch {
	case current > maxHigh*(1-p.SwingBand):
		return Verdict{Strategy: name, Signal: Sell, Reason: fmt.Sprintf("Price (%.2f) near resistance (%.2f).", current, maxHigh)}
	case current < minLow*(1+p.SwingBand):
		return Verdict{Strategy: name, Signal: Buy, Reason: fmt.Sprintf("Price (%.2f) near support (%.2f).", current, minLow)}
	}
	return Verdict{Strategy: name, Signal: Hold, Reason: "Price is within recent range."}
}

func rangeReversal(candles []models.Candle, p Params) Verdict {
	name := RangeReversal.Name()
	if p.RangeLookback <= 0 || len(candles) < p.RangeLookback {
		return Verdict{Strategy: name, Signal: Hold, Reason: "Insufficient data for Range/Reversal Trading."}
	}

	closes := models.Closes(candles[len(candles)-p.RangeLookback:])
	maxPrice := indicator.Max(closes)
	minPrice := indicator.Min(closes)
	current := closes[len(closes)-1]
	width := maxPrice - minPrice

	if width < maxPrice*p.RangePct {
		switch {
		case current <= minPrice+width*p.RangeEdge:
			return Verdict{Strategy: name, Signal: Buy, Reason: fmt.Sprintf("Price (%.2f) is near range bottom (%.2f).", current, minPrice)}
		case current >= maxPrice-width*p.RangeEdge:
			return Verdict{Strategy: name, Signal: Sell, Reason: fmt.Sprintf("Price (%.2f) is near range top (%.2f).", current, maxPrice)}
		}
	}
	return Verdict{Strategy: name, Signal: Hold, Reason: "Not in a clear range or no reversal opportunity."}
}
