package gormrepository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradesignal/internal/models"
	"tradesignal/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- candles ----------------------------------------------------------------

func (s *Store) UpsertCandle(ctx context.Context, item *models.Candle) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Symbol = strings.TrimSpace(item.Symbol)
	if item.Symbol == "" {
		return errors.New("candle: empty symbol")
	}
	if err := item.Validate(); err != nil {
		return err
	}
	// Uniqueness is enforced by uq_candles_symbol_open_time.
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}, {Name: "open_time"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"timeframe",
			"open",
			"high",
			"low",
			"close",
			"volume",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) LatestCandle(ctx context.Context, symbol string) (*models.Candle, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Candle
	err := s.db.WithContext(ctx).
		Where("symbol = ?", strings.TrimSpace(symbol)).
		Order("open_time desc").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListCandles(ctx context.Context, params repository.ListCandlesParams) ([]models.Candle, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := candleFilters(s.db.WithContext(ctx).Model(&models.Candle{}), params)
	query = applyOrder(query, "", params.Asc, "open_time")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.Candle
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountCandles(ctx context.Context, params repository.ListCandlesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := candleFilters(s.db.WithContext(ctx).Model(&models.Candle{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func candleFilters(query *gorm.DB, params repository.ListCandlesParams) *gorm.DB {
	if params.Symbol != nil && strings.TrimSpace(*params.Symbol) != "" {
		query = query.Where("symbol = ?", strings.TrimSpace(*params.Symbol))
	}
	if params.Interval != nil && strings.TrimSpace(*params.Interval) != "" {
		query = query.Where("timeframe = ?", strings.TrimSpace(*params.Interval))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("open_time >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("open_time < ?", *params.Until)
	}
	return query
}

// --- signals ----------------------------------------------------------------

func (s *Store) UpsertSignal(ctx context.Context, item *models.SignalRecord) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Symbol = strings.TrimSpace(item.Symbol)
	if item.Symbol == "" {
		return errors.New("signal: empty symbol")
	}
	if err := item.Validate(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}, {Name: "timestamp"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"predicted_price",
			"current_price",
			"prediction_fallback",
			"signal",
			"reason",
			"strategy_details",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) LatestSignal(ctx context.Context, symbol string) (*models.SignalRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.SignalRecord
	err := s.db.WithContext(ctx).
		Where("symbol = ?", strings.TrimSpace(symbol)).
		Order("timestamp desc").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSignals(ctx context.Context, params repository.ListSignalsParams) ([]models.SignalRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := signalFilters(s.db.WithContext(ctx).Model(&models.SignalRecord{}), params)
	query = applyOrder(query, "", params.Asc, "timestamp")
	limit := normalizeLimit(params.Limit, 100)
	offset := normalizeOffset(params.Offset)
	var items []models.SignalRecord
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountSignals(ctx context.Context, params repository.ListSignalsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := signalFilters(s.db.WithContext(ctx).Model(&models.SignalRecord{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func signalFilters(query *gorm.DB, params repository.ListSignalsParams) *gorm.DB {
	if params.Symbol != nil && strings.TrimSpace(*params.Symbol) != "" {
		query = query.Where("symbol = ?", strings.TrimSpace(*params.Symbol))
	}
	if params.Signal != nil && strings.TrimSpace(*params.Signal) != "" {
		query = query.Where("signal = ?", strings.ToUpper(strings.TrimSpace(*params.Signal)))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("timestamp >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("timestamp < ?", *params.Until)
	}
	return query
}

// --- system settings --------------------------------------------------------

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Key = strings.TrimSpace(item.Key)
	if item.Key == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"value",
			"description",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var item models.SystemSetting
	err := s.db.WithContext(ctx).Model(&models.SystemSetting{}).Where("key = ?", key).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := settingFilters(s.db.WithContext(ctx).Model(&models.SystemSetting{}), params)
	query = applyOrder(query, params.OrderBy, params.Asc, "key")
	limit := normalizeLimit(params.Limit, 500)
	offset := normalizeOffset(params.Offset)
	var items []models.SystemSetting
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := settingFilters(s.db.WithContext(ctx).Model(&models.SystemSetting{}), params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func settingFilters(query *gorm.DB, params repository.ListSystemSettingsParams) *gorm.DB {
	if params.Prefix != nil && strings.TrimSpace(*params.Prefix) != "" {
		pattern := strings.TrimSpace(*params.Prefix) + "%"
		query = query.Where("key LIKE ?", pattern)
	}
	return query
}

// --- helpers ----------------------------------------------------------------

var sortableColumns = map[string]struct{}{
	"key":        {},
	"created_at": {},
	"updated_at": {},
	"open_time":  {},
	"timestamp":  {},
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if _, ok := sortableColumns[column]; !ok {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(fmt.Sprintf("%s %s", column, direction))
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

var _ repository.Repository = (*Store)(nil)
