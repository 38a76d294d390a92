// Package memory is an in-process repository.Repository used by tests and
// by run-once invocations without a database.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"tradesignal/internal/models"
	"tradesignal/internal/repository"
)

type Store struct {
	mu sync.RWMutex

	// Keyed by symbol|open_time.
	candles map[string]models.Candle
	// Keyed by symbol|timestamp.
	signals map[string]models.SignalRecord
	// Keyed by setting key.
	settings map[string]models.SystemSetting

	nextID uint64
}

func New() *Store {
	return &Store{
		candles:  make(map[string]models.Candle),
		signals:  make(map[string]models.SignalRecord),
		settings: make(map[string]models.SystemSetting),
	}
}

func key(symbol string, ts time.Time) string {
	return strings.ToUpper(strings.TrimSpace(symbol)) + "|" + ts.UTC().Format(time.RFC3339Nano)
}

// -------- candles --------

func (m *Store) UpsertCandle(_ context.Context, item *models.Candle) error {
	if item == nil {
		return nil
	}
	if strings.TrimSpace(item.Symbol) == "" {
		return errors.New("candle: empty symbol")
	}
	if err := item.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(item.Symbol, item.OpenTime)
	now := time.Now().UTC()
	c := *item
	c.OpenTime = c.OpenTime.UTC()
	if prev, ok := m.candles[k]; ok {
		c.ID = prev.ID
		c.CreatedAt = prev.CreatedAt
	} else {
		m.nextID++
		c.ID = m.nextID
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	m.candles[k] = c
	item.ID = c.ID
	return nil
}

func (m *Store) LatestCandle(_ context.Context, symbol string) (*models.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out *models.Candle
	for _, c := range m.candles {
		if !strings.EqualFold(c.Symbol, strings.TrimSpace(symbol)) {
			continue
		}
		if out == nil || c.OpenTime.After(out.OpenTime) {
			cp := c
			out = &cp
		}
	}
	return out, nil
}

func (m *Store) ListCandles(_ context.Context, params repository.ListCandlesParams) ([]models.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := m.filterCandles(params)
	sortByTime(items, func(c models.Candle) time.Time { return c.OpenTime }, asc(params.Asc))
	return page(items, params.Limit, params.Offset, 200), nil
}

func (m *Store) CountCandles(_ context.Context, params repository.ListCandlesParams) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.filterCandles(params))), nil
}

func (m *Store) filterCandles(params repository.ListCandlesParams) []models.Candle {
	out := make([]models.Candle, 0, len(m.candles))
	for _, c := range m.candles {
		if params.Symbol != nil && *params.Symbol != "" && !strings.EqualFold(c.Symbol, *params.Symbol) {
			continue
		}
		if params.Interval != nil && *params.Interval != "" && c.Interval != *params.Interval {
			continue
		}
		if !inRange(c.OpenTime, params.Since, params.Until) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// -------- signals --------

func (m *Store) UpsertSignal(_ context.Context, item *models.SignalRecord) error {
	if item == nil {
		return nil
	}
	if strings.TrimSpace(item.Symbol) == "" {
		return errors.New("signal: empty symbol")
	}
	if err := item.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key(item.Symbol, item.Timestamp)
	now := time.Now().UTC()
	r := *item
	r.Timestamp = r.Timestamp.UTC()
	r.StrategyDetails = append([]byte(nil), item.StrategyDetails...)
	if prev, ok := m.signals[k]; ok {
		r.ID = prev.ID
		r.CreatedAt = prev.CreatedAt
	} else {
		m.nextID++
		r.ID = m.nextID
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	m.signals[k] = r
	item.ID = r.ID
	return nil
}

func (m *Store) LatestSignal(_ context.Context, symbol string) (*models.SignalRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out *models.SignalRecord
	for _, r := range m.signals {
		if !strings.EqualFold(r.Symbol, strings.TrimSpace(symbol)) {
			continue
		}
		if out == nil || r.Timestamp.After(out.Timestamp) {
			cp := r
			out = &cp
		}
	}
	return out, nil
}

func (m *Store) ListSignals(_ context.Context, params repository.ListSignalsParams) ([]models.SignalRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := m.filterSignals(params)
	sortByTime(items, func(r models.SignalRecord) time.Time { return r.Timestamp }, asc(params.Asc))
	return page(items, params.Limit, params.Offset, 100), nil
}

func (m *Store) CountSignals(_ context.Context, params repository.ListSignalsParams) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.filterSignals(params))), nil
}

func (m *Store) filterSignals(params repository.ListSignalsParams) []models.SignalRecord {
	out := make([]models.SignalRecord, 0, len(m.signals))
	for _, r := range m.signals {
		if params.Symbol != nil && *params.Symbol != "" && !strings.EqualFold(r.Symbol, *params.Symbol) {
			continue
		}
		if params.Signal != nil && *params.Signal != "" && !strings.EqualFold(r.Signal, strings.TrimSpace(*params.Signal)) {
			continue
		}
		if !inRange(r.Timestamp, params.Since, params.Until) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// -------- system settings --------

func (m *Store) UpsertSystemSetting(_ context.Context, item *models.SystemSetting) error {
	if item == nil {
		return nil
	}
	item.Key = strings.TrimSpace(item.Key)
	if item.Key == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	s := *item
	if prev, ok := m.settings[s.Key]; ok {
		s.ID = prev.ID
		s.CreatedAt = prev.CreatedAt
	} else {
		m.nextID++
		s.ID = m.nextID
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	m.settings[s.Key] = s
	item.ID = s.ID
	return nil
}

func (m *Store) GetSystemSettingByKey(_ context.Context, key string) (*models.SystemSetting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.settings[strings.TrimSpace(key)]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *Store) ListSystemSettings(_ context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := m.filterSettings(params)
	sort.Slice(items, func(i, j int) bool {
		if asc(params.Asc) {
			return items[i].Key < items[j].Key
		}
		return items[i].Key > items[j].Key
	})
	return page(items, params.Limit, params.Offset, 500), nil
}

func (m *Store) CountSystemSettings(_ context.Context, params repository.ListSystemSettingsParams) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.filterSettings(params))), nil
}

func (m *Store) filterSettings(params repository.ListSystemSettingsParams) []models.SystemSetting {
	out := make([]models.SystemSetting, 0, len(m.settings))
	for _, s := range m.settings {
		if params.Prefix != nil && !strings.HasPrefix(s.Key, strings.TrimSpace(*params.Prefix)) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// -------- helpers --------

func asc(v *bool) bool { return v != nil && *v }

func inRange(ts time.Time, since, until *time.Time) bool {
	if since != nil && !since.IsZero() && ts.Before(*since) {
		return false
	}
	if until != nil && !until.IsZero() && !ts.Before(*until) {
		return false
	}
	return true
}

func sortByTime[T any](items []T, at func(T) time.Time, ascending bool) {
	sort.Slice(items, func(i, j int) bool {
		if ascending {
			return at(items[i]).Before(at(items[j]))
		}
		return at(items[i]).After(at(items[j]))
	})
}

func page[T any](items []T, limit, offset, fallback int) []T {
	if limit <= 0 {
		limit = fallback
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

var _ repository.Repository = (*Store)(nil)
