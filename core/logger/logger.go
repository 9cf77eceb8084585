// Package logger is the process-wide structured logger. Lines are emitted as
// events: every record carries a component and an event name, plus the update
// metadata found in the context.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/bekksaar/intakebot/core/buildinfo"
	coreconfig "github.com/bekksaar/intakebot/core/config"
)

// Default debug sampling: one line in fifty.
const (
	defaultSampleNum = 1
	defaultSampleDen = 50
)

var (
	initOnce sync.Once
	closeMu  sync.Mutex
	out      *asyncWriter
	logFile  *os.File

	level slog.LevelVar
	debug sampler
	trace bool

	// L is the base logger; nil until Init runs, in which case events are dropped.
	L *slog.Logger
)

// Init configures L from cfg and installs it as the slog default. Only the
// first call has any effect.
func Init(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		lc := coreconfig.LoggingConfig{}
		if cfg != nil {
			lc = cfg.Logging
		}
		level.Set(parseLevel(lc.Level))
		num, den := parseSampleRate(lc.DebugSample)
		debug.set(num, den)
		trace = truthy(os.Getenv("TRACE")) || truthy(os.Getenv("LOG_TRACE"))

		var sink io.Writer = os.Stdout
		if logFile, err = openLogFile(lc.Dir, lc.BotFile); err != nil {
			return
		}
		if logFile != nil {
			sink = io.MultiWriter(os.Stdout, logFile)
		}
		out = newAsyncWriter(sink, 1024)
		L = slog.New(newHandler(out, textFormat(lc), &level))
		slog.SetDefault(L)

		Info(context.Background(), "app", "startup",
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("profile", profile(lc)),
		)
	})
	return err
}

// Shutdown flushes queued lines and closes the log file. It is safe to call
// more than once.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	var errs []error
	if out != nil {
		errs = append(errs, out.Close())
		out = nil
	}
	if logFile != nil {
		errs = append(errs, logFile.Close())
		logFile = nil
	}
	return errors.Join(errs...)
}

// Debug logs a debug event for component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelDebug, component, event, attrs)
}

// Info logs an info event for component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelInfo, component, event, attrs)
}

// Warn logs a warning event for component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelWarn, component, event, attrs)
}

// Error logs an error event for component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelError, component, event, attrs)
}

func emit(ctx context.Context, lvl slog.Level, component, event string, attrs []slog.Attr) {
	l := L
	if l == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.Enabled(ctx, lvl) {
		return
	}
	if component = strings.TrimSpace(component); component == "" {
		component = "app"
	}
	l.With(slog.String("component", component)).LogAttrs(ctx, lvl, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug line should be written.
// TRACE=1 in the environment disables sampling.
func ShouldSampleDebug() bool {
	return trace || debug.allow()
}

func openLogFile(dir, name string) (*os.File, error) {
	dir, name = strings.TrimSpace(dir), strings.TrimSpace(name)
	if dir == "" || name == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logger: create %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logger: open log file: %w", err)
	}
	return f, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// textFormat picks key=value output for explicit kv formats and for the
// debug and dev profiles when no format is set.
func textFormat(lc coreconfig.LoggingConfig) bool {
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		return true
	case "json":
		return false
	}
	p := profile(lc)
	return p == "debug" || p == "dev"
}

func profile(lc coreconfig.LoggingConfig) string {
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		return p
	}
	return "prod"
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
