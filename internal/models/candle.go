package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one OHLCV bar. A symbol has at most one candle per open time,
// regardless of interval; re-ingesting a timestamp overwrites it.
type Candle struct {
	ID       uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	Symbol   string    `gorm:"type:varchar(20);not null;uniqueIndex:uq_candles_symbol_open_time,priority:1" json:"symbol"`
	Interval string    `gorm:"column:timeframe;type:varchar(8);not null" json:"interval"`
	OpenTime time.Time `gorm:"type:timestamptz;not null;uniqueIndex:uq_candles_symbol_open_time,priority:2;index" json:"timestamp"`

	Open   decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"open"`
	High   decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"high"`
	Low    decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"low"`
	Close  decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"close"`
	Volume decimal.Decimal `gorm:"type:numeric(28,8);not null" json:"volume"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"-"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"-"`
}

func (Candle) TableName() string {
	return "candles"
}

var (
	ErrCandleTimestamp = errors.New("candle: zero open time")
	ErrCandleNegative  = errors.New("candle: negative value")
	ErrCandleRange     = errors.New("candle: open/close outside low..high")
)

func (c Candle) Validate() error {
	if c.OpenTime.IsZero() {
		return ErrCandleTimestamp
	}
	for _, v := range []decimal.Decimal{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if v.IsNegative() {
			return ErrCandleNegative
		}
	}
	if c.Low.GreaterThan(c.High) ||
		c.Open.LessThan(c.Low) || c.Open.GreaterThan(c.High) ||
		c.Close.LessThan(c.Low) || c.Close.GreaterThan(c.High) {
		return ErrCandleRange
	}
	return nil
}

// Closes returns the close prices as float64 for indicator math.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].Close.InexactFloat64()
	}
	return out
}

func Highs(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].High.InexactFloat64()
	}
	return out
}

func Lows(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i := range candles {
		out[i] = candles[i].Low.InexactFloat64()
	}
	return out
}
