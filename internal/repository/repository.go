package repository

import (
	"context"
	"time"

	"tradesignal/internal/models"
)

// CandleRepository persists candles keyed by (symbol, open_time).
type CandleRepository interface {
	UpsertCandle(ctx context.Context, item *models.Candle) error
	// LatestCandle returns nil, nil when the symbol has no candles.
	LatestCandle(ctx context.Context, symbol string) (*models.Candle, error)
	ListCandles(ctx context.Context, params ListCandlesParams) ([]models.Candle, error)
	CountCandles(ctx context.Context, params ListCandlesParams) (int64, error)
}

// SignalRepository persists ensemble decisions keyed by (symbol, timestamp).
type SignalRepository interface {
	UpsertSignal(ctx context.Context, item *models.SignalRecord) error
	LatestSignal(ctx context.Context, symbol string) (*models.SignalRecord, error)
	ListSignals(ctx context.Context, params ListSignalsParams) ([]models.SignalRecord, error)
	CountSignals(ctx context.Context, params ListSignalsParams) (int64, error)
}

type SettingsRepository interface {
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSystemSettings(ctx context.Context, params ListSystemSettingsParams) ([]models.SystemSetting, error)
	CountSystemSettings(ctx context.Context, params ListSystemSettingsParams) (int64, error)
}

type Repository interface {
	CandleRepository
	SignalRepository
	SettingsRepository
}

type ListCandlesParams struct {
	Limit    int
	Offset   int
	Symbol   *string
	Interval *string
	Since    *time.Time
	Until    *time.Time
	Asc      *bool
}

type ListSignalsParams struct {
	Limit  int
	Offset int
	Symbol *string
	Signal *string
	Since  *time.Time
	Until  *time.Time
	Asc    *bool
}

type ListSystemSettingsParams struct {
	Limit   int
	Offset  int
	Prefix  *string
	OrderBy string
	Asc     *bool
}
