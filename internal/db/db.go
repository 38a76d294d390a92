package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tradesignal/internal/config"
)

type DB struct {
	Gorm *gorm.DB
	SQL  *sql.DB
}

// Open connects and pings, retrying with exponential backoff until
// cfg.ConnectTimeout elapses. Compose brings Postgres up alongside the
// service, so the first attempts usually fail.
func Open(ctx context.Context, cfg config.DBConfig, log *zap.Logger) (*DB, error) {
	gcfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = cfg.ConnectTimeout

	var out *DB
	op := func() error {
		gdb, err := gorm.Open(postgres.Open(cfg.DSN), gcfg)
		if err != nil {
			return err
		}
		sqldb, err := gdb.DB()
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := sqldb.PingContext(ctx); err != nil {
			_ = sqldb.Close()
			return err
		}
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
		sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
		out = &DB{Gorm: gdb, SQL: sqldb}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		if log != nil {
			log.Warn("db connect retry", zap.Error(err), zap.Duration("wait", wait))
		}
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	return out, nil
}

func Close(db *DB) error {
	if db == nil || db.SQL == nil {
		return nil
	}
	return db.SQL.Close()
}

func Ping(db *DB) error {
	if db == nil || db.SQL == nil {
		return nil
	}
	return db.SQL.Ping()
}

func SetTimezone(db *DB, tz string) error {
	if tz == "" {
		return nil
	}
	_, err := db.SQL.Exec("SET TIME ZONE '" + tz + "'")
	return err
}

func NowUTC() time.Time {
	return time.Now().UTC()
}
