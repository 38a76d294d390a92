// Package predictor drives a MindsDB time-series model over its MySQL
// wire protocol.
package predictor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradesignal/internal/config"
)

// Prediction is the model's next close for the candle at BaseTime.
type Prediction struct {
	PredictedClose decimal.Decimal
	BaseTime       time.Time
}

var (
	identRe  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	symbolRe = regexp.MustCompile(`^[A-Z0-9]+$`)
)

type MindsDB struct {
	DB     *sqlx.DB
	Logger *zap.Logger

	Model      string
	Datasource string
	Table      string
	Symbol     string
	Window     int
	Horizon    int
	Timeout    time.Duration
	Source     config.PredictorDataSource
}

// Open connects to MindsDB. MindsDB does not support server-side prepared
// statements, so parameters are always interpolated client-side.
func Open(cfg config.PredictorConfig, symbol string, logger *zap.Logger) (*MindsDB, error) {
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("predictor dsn: %w", err)
	}
	mc.InterpolateParams = true
	mc.ParseTime = true
	mc.Loc = time.UTC

	db, err := sqlx.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	m := New(db, cfg, symbol, logger)
	if err := m.validate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

func New(db *sqlx.DB, cfg config.PredictorConfig, symbol string, logger *zap.Logger) *MindsDB {
	return &MindsDB{
		DB:         db,
		Logger:     logger,
		Model:      cfg.Model,
		Datasource: cfg.Datasource,
		Table:      cfg.Table,
		Symbol:     strings.ToUpper(strings.TrimSpace(symbol)),
		Window:     cfg.Window,
		Horizon:    cfg.Horizon,
		Timeout:    cfg.Timeout,
		Source:     cfg.Source,
	}
}

func (m *MindsDB) validate() error {
	for name, v := range map[string]string{"model": m.Model, "datasource": m.Datasource, "table": m.Table} {
		if !identRe.MatchString(v) {
			return fmt.Errorf("predictor %s %q is not a plain identifier", name, v)
		}
	}
	if !symbolRe.MatchString(m.Symbol) {
		return fmt.Errorf("predictor symbol %q is not alphanumeric", m.Symbol)
	}
	return nil
}

func (m *MindsDB) Close() error {
	if m == nil || m.DB == nil {
		return nil
	}
	return m.DB.Close()
}

func (m *MindsDB) Ping(ctx context.Context) error {
	if m == nil || m.DB == nil {
		return errors.New("predictor not configured")
	}
	return m.DB.PingContext(ctx)
}

// Train registers the candle store as a MindsDB datasource and creates the
// model if either is missing. Existing ones are left as they are.
func (m *MindsDB) Train(ctx context.Context) error {
	if m == nil || m.DB == nil {
		return errors.New("predictor not configured")
	}
	if err := m.validate(); err != nil {
		return err
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	params, err := json.Marshal(map[string]any{
		"host":     m.Source.Host,
		"port":     m.Source.Port,
		"user":     m.Source.User,
		"password": m.Source.Password,
		"database": m.Source.Database,
	})
	if err != nil {
		return err
	}
	engine := m.Source.Engine
	if engine == "" {
		engine = "postgres"
	}
	if !identRe.MatchString(engine) {
		return fmt.Errorf("predictor source engine %q is not a plain identifier", engine)
	}

	createDatasource := fmt.Sprintf(
		"CREATE DATABASE IF NOT EXISTS %s WITH ENGINE = '%s', PARAMETERS = %s",
		m.Datasource, engine, params,
	)
	if _, err := m.DB.ExecContext(ctx, createDatasource); err != nil {
		return fmt.Errorf("create datasource %s: %w", m.Datasource, err)
	}

	createModel := fmt.Sprintf(
		"CREATE MODEL IF NOT EXISTS %s FROM %s "+
			"(SELECT open_time, open, high, low, close, volume FROM %s WHERE symbol = '%s') "+
			"PREDICT close ORDER BY open_time GROUP BY NULL WINDOW %d HORIZON %d",
		m.Model, m.Datasource, m.Table, m.Symbol, m.window(), m.horizon(),
	)
	if _, err := m.DB.ExecContext(ctx, createModel); err != nil {
		return fmt.Errorf("create model %s: %w", m.Model, err)
	}
	if m.Logger != nil {
		m.Logger.Info("mindsdb model ensured", zap.String("model", m.Model), zap.String("datasource", m.Datasource))
	}
	return nil
}

type latestRow struct {
	OpenTime time.Time `db:"open_time"`
	Close    string    `db:"close"`
}

type predictionRow struct {
	PredictedClose sql.NullFloat64 `db:"predicted_close"`
}

// Predict forecasts the close following the latest stored candle. It
// returns nil, nil when there is nothing to predict from or the model
// yields no row.
func (m *MindsDB) Predict(ctx context.Context) (*Prediction, error) {
	if m == nil || m.DB == nil {
		return nil, errors.New("predictor not configured")
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	var latest latestRow
	latestQuery := fmt.Sprintf(
		"SELECT open_time, close FROM %s.%s WHERE symbol = ? ORDER BY open_time DESC LIMIT 1",
		m.Datasource, m.Table,
	)
	err := m.DB.GetContext(ctx, &latest, latestQuery, m.Symbol)
	if errors.Is(err, sql.ErrNoRows) {
		if m.Logger != nil {
			m.Logger.Warn("mindsdb predict: no stored candles", zap.String("symbol", m.Symbol))
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest candle: %w", err)
	}

	var row predictionRow
	predictQuery := fmt.Sprintf(
		"SELECT m.close AS predicted_close FROM %s.%s AS t JOIN %s AS m "+
			"WHERE t.symbol = ? AND t.open_time = ? LIMIT 1",
		m.Datasource, m.Table, m.Model,
	)
	err = m.DB.GetContext(ctx, &row, predictQuery, m.Symbol, latest.OpenTime.UTC())
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !row.PredictedClose.Valid) {
		if m.Logger != nil {
			m.Logger.Warn("mindsdb predict: empty result", zap.Time("base_time", latest.OpenTime))
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("predict %s: %w", m.Model, err)
	}
	return &Prediction{
		PredictedClose: decimal.NewFromFloat(row.PredictedClose.Float64),
		BaseTime:       latest.OpenTime.UTC(),
	}, nil
}

func (m *MindsDB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.Timeout)
}

func (m *MindsDB) window() int {
	if m.Window <= 0 {
		return 24
	}
	return m.Window
}

func (m *MindsDB) horizon() int {
	if m.Horizon <= 0 {
		return 1
	}
	return m.Horizon
}
