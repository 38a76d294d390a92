package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// SignalRecord is one persisted ensemble decision. StrategyDetails holds the
// six per-strategy verdicts in evaluation order and is written only.
type SignalRecord struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Symbol    string    `gorm:"type:varchar(20);not null;uniqueIndex:uq_signals_symbol_ts,priority:1" json:"symbol"`
	Timestamp time.Time `gorm:"type:timestamptz;not null;uniqueIndex:uq_signals_symbol_ts,priority:2;index" json:"timestamp"`

	PredictedPrice     decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"predicted_price"`
	CurrentPrice       decimal.Decimal `gorm:"type:numeric(20,8);not null" json:"current_price"`
	PredictionFallback bool            `gorm:"not null;default:false" json:"prediction_fallback"`

	Signal          string         `gorm:"type:varchar(4);not null;index" json:"signal"`
	Reason          string         `gorm:"type:text" json:"reason"`
	StrategyDetails datatypes.JSON `gorm:"type:jsonb" json:"strategy_details" swaggertype:"array,object"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime" json:"updated_at"`
}

func (SignalRecord) TableName() string {
	return "signals"
}

var (
	ErrSignalTimestamp = errors.New("signal: zero timestamp")
	ErrSignalValue     = errors.New("signal: value must be BUY, SELL or HOLD")
)

func (r SignalRecord) Validate() error {
	if r.Timestamp.IsZero() {
		return ErrSignalTimestamp
	}
	switch r.Signal {
	case "BUY", "SELL", "HOLD":
		return nil
	default:
		return ErrSignalValue
	}
}
