// Package bootstrap brings up logging and the optional database before the
// bot starts polling.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/bekksaar/intakebot/core/config"
	coredatabase "github.com/bekksaar/intakebot/core/database"
	"github.com/bekksaar/intakebot/core/logger"
)

// Options selects the infrastructure to start. Nil hooks use the real
// implementations.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	// Migrations is applied by the default Migrate hook.
	Migrations fs.FS

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

func (o *Options) fill() {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.Init
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
	if o.Migrate == nil {
		src := o.Migrations
		o.Migrate = func(cfg coredatabase.Config) error { return coredatabase.RunMigrations(cfg, src) }
	}
}

// Result holds what Run started. DB is nil without a configured database.
type Result struct {
	DB *sqlx.DB
}

// Run starts the logger and, when a database host is set, connects and
// migrates. A failed migration closes the connection it opened.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, errors.New("bootstrap: config is nil")
	}
	opts.fill()

	if err := opts.LoggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger: %w", err)
	}
	if !opts.Database.Enabled() {
		logger.Info(context.Background(), "db", "db.skip",
			slog.String("status", "skip"),
			slog.String("reason", "not_configured"),
		)
		return &Result{}, nil
	}

	dbCfg := opts.Database.WithDefaults()
	db, err := opts.Connect(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database: %w", err)
	}
	if err := opts.Migrate(dbCfg); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations: %w", err)
	}
	return &Result{DB: db}, nil
}
