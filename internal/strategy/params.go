package strategy

import "tradesignal/internal/config"

// Params are the lookbacks and thresholds of the six strategies.
type Params struct {
	MACShort int
	MACLong  int

	RSIPeriod     int
	RSIOversold   float64
	RSIOverbought float64

	// Fractional close-to-close move, 0.0005 = 0.05%.
	ScalpThreshold float64

	SwingLookback int
	SwingBand     float64

	TrendShort int
	TrendLong  int

	RangeLookback int
	RangePct      float64
	RangeEdge     float64
}

func DefaultParams() Params {
	return Params{
		MACShort:       10,
		MACLong:        50,
		RSIPeriod:      14,
		RSIOversold:    30,
		RSIOverbought:  70,
		ScalpThreshold: 0.0005,
		SwingLookback:  24,
		SwingBand:      0.01,
		TrendShort:     50,
		TrendLong:      200,
		RangeLookback:  48,
		RangePct:       0.02,
		RangeEdge:      0.2,
	}
}

// ParamsFromConfig overlays non-zero config values on DefaultParams.
func ParamsFromConfig(cfg config.StrategyConfig) Params {
	p := DefaultParams()
	setInt(&p.MACShort, cfg.MACShortPeriod)
	setInt(&p.MACLong, cfg.MACLongPeriod)
	setInt(&p.RSIPeriod, cfg.RSIPeriod)
	setFloat(&p.RSIOversold, cfg.RSIOversold)
	setFloat(&p.RSIOverbought, cfg.RSIOverbought)
	setFloat(&p.ScalpThreshold, cfg.ScalpThreshold)
	setInt(&p.SwingLookback, cfg.SwingLookback)
	setFloat(&p.SwingBand, cfg.SwingBand)
	setInt(&p.TrendShort, cfg.TrendShortPeriod)
	setInt(&p.TrendLong, cfg.TrendLongPeriod)
	setInt(&p.RangeLookback, cfg.RangeLookback)
	setFloat(&p.RangePct, cfg.RangePct)
	setFloat(&p.RangeEdge, cfg.RangeEdge)
	return p
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}
