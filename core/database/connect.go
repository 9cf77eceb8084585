package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/bekksaar/intakebot/core/logger"
)

const (
	dbComponent  = "db"
	driverName   = "postgres"
	connectLimit = 5 * time.Second
	readyPoll    = 2 * time.Second
)

// DSN returns the libpq key/value form of the settings.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

func (c Config) logTarget() []slog.Attr {
	return []slog.Attr{
		slog.String("driver", driverName),
		slog.String("host", c.Host),
		slog.String("port", c.Port),
		slog.String("db", c.Name),
	}
}

// Connect opens a pooled handle and pings it once.
func Connect(cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectLimit)
	defer cancel()

	began := time.Now()
	db, err := sqlx.ConnectContext(ctx, driverName, cfg.DSN())
	attrs := append(cfg.logTarget(), slog.Duration("duration", logger.RoundMS(time.Since(began))))
	if err != nil {
		logger.Error(ctx, dbComponent, "db.connect", append(attrs, slog.String("err", err.Error()))...)
		return nil, fmt.Errorf("database: connect %s:%s: %w", cfg.Host, cfg.Port, err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	logger.Info(ctx, dbComponent, "db.connect", append(attrs, slog.Int("pool_open", cfg.MaxConnections))...)
	return db, nil
}

// waitReady pings dsn every readyPoll until it answers or ctx ends.
func waitReady(ctx context.Context, dsn string) error {
	tick := time.NewTicker(readyPoll)
	defer tick.Stop()
	for {
		err := pingOnce(ctx, dsn)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("database: not ready: %w", err)
		case <-tick.C:
		}
	}
}

func pingOnce(ctx context.Context, dsn string) error {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.PingContext(ctx)
}
