package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/bekksaar/intakebot/core/logger"
)

const (
	migrateComponent = "db.migrate"
	readyLimit       = 30 * time.Second
	previewFiles     = 6
)

// URL returns the postgres:// form of the connection settings.
func (c Config) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// RunMigrations waits for the server and applies every pending up migration
// found at the root of src.
func RunMigrations(cfg Config, src fs.FS) error {
	if src == nil {
		return errors.New("database: nil migrations source")
	}
	ctx := context.Background()

	waitCtx, cancel := context.WithTimeout(ctx, readyLimit)
	err := waitReady(waitCtx, cfg.DSN())
	cancel()
	if err != nil {
		logger.Error(ctx, migrateComponent, "db.not_ready", slog.String("err", err.Error()))
		return err
	}

	ups := upFiles(src)
	logger.Debug(ctx, migrateComponent, "migrate.resolve", fileAttrs("files", ups)...)

	source, err := iofs.New(src, ".")
	if err != nil {
		return fmt.Errorf("database: migrations source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, cfg.URL())
	if err != nil {
		logger.Error(ctx, migrateComponent, "migrate.init", slog.String("err", err.Error()))
		return fmt.Errorf("database: migrations init: %w", err)
	}
	defer m.Close()

	before := currentVersion(m)
	began := time.Now()
	err = m.Up()
	took := logger.RoundMS(time.Since(began))
	if errors.Is(err, migrate.ErrNoChange) {
		err = nil
	}
	if err != nil {
		logger.Error(ctx, migrateComponent, "migrate.up",
			slog.Uint64("from_ver", before),
			slog.Duration("duration", took),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("database: migrate up: %w", err)
	}

	after := currentVersion(m)
	ran := between(ups, before, after)
	attrs := []slog.Attr{
		slog.Uint64("from_ver", before),
		slog.Uint64("to_ver", after),
		slog.Duration("duration", took),
	}
	logger.Info(ctx, migrateComponent, "migrate.up", append(attrs, fileAttrs("applied", ran)...)...)
	return nil
}

func currentVersion(m *migrate.Migrate) uint64 {
	v, _, err := m.Version()
	if err != nil {
		return 0
	}
	return uint64(v)
}

func fileAttrs(prefix string, files []string) []slog.Attr {
	attrs := []slog.Attr{slog.Int(prefix+"_total", len(files))}
	if preview, cut := logger.SummarizeStrings(files, previewFiles); preview != "" {
		attrs = append(attrs, slog.String(prefix+"_preview", preview))
		if cut {
			attrs = append(attrs, slog.Bool(prefix+"_truncated", true))
		}
	}
	return attrs
}

// upFiles lists the *.up.sql names at the root of src in version order.
func upFiles(src fs.FS) []string {
	names, err := fs.Glob(src, "*.up.sql")
	if err != nil {
		return nil
	}
	sort.Slice(names, func(i, j int) bool { return version(names[i]) < version(names[j]) })
	return names
}

// version reads the numeric prefix of a migration file name.
func version(name string) uint64 {
	head, _, _ := strings.Cut(path.Base(name), "_")
	v, _ := strconv.ParseUint(head, 10, 64)
	return v
}

// between keeps the files whose version lies in (from, to].
func between(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if v := version(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
