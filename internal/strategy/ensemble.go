package strategy

import (
	"github.com/shopspring/decimal"

	"tradesignal/internal/models"
)

// DefaultPredictionBand is how far the predicted price must sit from the
// current price, as a fraction, before it casts a vote.
const DefaultPredictionBand = 0.005

const (
	reasonNoConsensus   = "No clear consensus from strategies."
	reasonPredictedUp   = "Predicted price significantly higher."
	reasonPredictedDown = "Predicted price significantly lower."
	reasonMajorityBuy   = "Majority of strategies indicate BUY."
	reasonMajoritySell  = "Majority of strategies indicate SELL."
	reasonSplitDecision = "Strategies are split, resulting in HOLD."
)

type Tally struct {
	Buy  int `json:"buy"`
	Sell int `json:"sell"`
	Hold int `json:"hold"`
	// Prediction is the vote cast by the predicted price, empty when it
	// stayed inside the band. It is already counted in Buy or Sell.
	Prediction Signal `json:"prediction,omitempty"`
}

type Decision struct {
	Signal  Signal    `json:"signal"`
	Reason  string    `json:"reason"`
	Tally   Tally     `json:"tally"`
	Details []Verdict `json:"details"`
}

// Vote reduces the verdicts and the predicted-vs-current price to one
// signal. A direction wins only with a strict plurality over both others;
// equal buy and sell counts are always HOLD.
func Vote(verdicts []Verdict, predicted, current decimal.Decimal, band float64) Decision {
	if band <= 0 {
		band = DefaultPredictionBand
	}

	var t Tally
	for _, v := range verdicts {
		switch v.Signal {
		case Buy:
			t.Buy++
		case Sell:
			t.Sell++
		default:
			t.Hold++
		}
	}

	reason := reasonNoConsensus
	b := decimal.NewFromFloat(band)
	upper := current.Mul(decimal.NewFromInt(1).Add(b))
	lower := current.Mul(decimal.NewFromInt(1).Sub(b))
	switch {
	case predicted.GreaterThan(upper):
		t.Buy++
		t.Prediction = Buy
		reason = reasonPredictedUp
	case predicted.LessThan(lower):
		t.Sell++
		t.Prediction = Sell
		reason = reasonPredictedDown
	}

	signal := Hold
	switch {
	case t.Buy > t.Sell && t.Buy > t.Hold:
		signal = Buy
		reason = reasonMajorityBuy
	case t.Sell > t.Buy && t.Sell > t.Hold:
		signal = Sell
		reason = reasonMajoritySell
	case t.Buy == t.Sell && t.Buy > 0:
		reason = reasonSplitDecision
	}

	details := make([]Verdict, len(verdicts))
	copy(details, verdicts)
	return Decision{Signal: signal, Reason: reason, Tally: t, Details: details}
}

// Generate evaluates the set over candles and votes with the last close as
// the current price.
func Generate(set Set, candles []models.Candle, predicted decimal.Decimal, band float64) Decision {
	current := decimal.Zero
	if n := len(candles); n > 0 {
		current = candles[n-1].Close
	}
	return Vote(set.Evaluate(candles), predicted, current, band)
}
