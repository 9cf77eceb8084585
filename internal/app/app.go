// Package app wires configuration, infrastructure and the intake bot together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/bekksaar/intakebot/core/bootstrap"
	"github.com/bekksaar/intakebot/core/logger"
	tg "github.com/bekksaar/intakebot/core/telegram"
	"github.com/bekksaar/intakebot/core/telegram/middleware"
	"github.com/bekksaar/intakebot/core/telegram/router"
	"github.com/bekksaar/intakebot/core/telegram/sender"
	"github.com/bekksaar/intakebot/core/telegram/state"
	"github.com/bekksaar/intakebot/internal/bot"
	"github.com/bekksaar/intakebot/internal/delivery"
	"github.com/bekksaar/intakebot/internal/funnel"
	"github.com/bekksaar/intakebot/internal/httpserver"
	"github.com/bekksaar/intakebot/internal/i18n"
	"github.com/bekksaar/intakebot/internal/intake"
	"github.com/bekksaar/intakebot/internal/leads"
	"github.com/bekksaar/intakebot/migrations"
)

const component = "app"

// App holds the initialized application.
type App struct {
	cfg *Config

	db    *sqlx.DB
	redis *redis.Client
	leads *leads.Repository

	registry   *prometheus.Registry
	updates    *middleware.UpdateMetrics
	funnel     *funnel.Funnel
	deliveries *sender.Dispatcher
	engine     *intake.Engine
	shell      *bot.Shell
	metrics    *httpserver.Server
}

// Deps overrides infrastructure hooks, mainly for tests.
type Deps struct {
	Bootstrap func(bootstrap.Options) (*bootstrap.Result, error)
	Redis     *redis.Client
}

// Bootstrap initializes logging and storage, then builds the engine and shell.
func Bootstrap(cfg *Config) (*App, error) {
	return BootstrapWith(cfg, Deps{})
}

// BootstrapWith is Bootstrap with injectable dependencies.
func BootstrapWith(cfg *Config, deps Deps) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	run := deps.Bootstrap
	if run == nil {
		run = bootstrap.Run
	}
	res, err := run(bootstrap.Options{Config: &cfg.Config, Database: cfg.Database, Migrations: migrations.FS})
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, db: res.DB, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if a.db != nil {
		a.leads = leads.NewRepository(a.db)
	}

	store, err := a.buildStore(deps.Redis)
	if err != nil {
		a.close()
		return nil, err
	}

	catalog, err := i18n.Load()
	if err != nil {
		a.close()
		return nil, fmt.Errorf("app: %w", err)
	}

	a.funnel = funnel.New(a.registry)
	a.updates = middleware.NewUpdateMetrics(a.registry)
	a.deliveries = delivery.NewDispatcher(cfg.Delivery.Timeout())
	opts := []delivery.AsyncOption{
		delivery.WithRecorder(a.funnel),
		delivery.WithTimeout(cfg.Delivery.Timeout()),
	}
	if a.leads != nil {
		opts = append(opts, delivery.WithArchive(a.leads))
	}
	submitter := delivery.NewAsync(delivery.NewClient(cfg.Delivery.URL, cfg.Delivery.Timeout()), a.deliveries, opts...)

	a.engine, err = intake.NewEngine(store, catalog, submitter, intake.WithObserver(a.funnel))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("app: %w", err)
	}

	var stats bot.StatsFunc
	if cfg.Telegram.AdminID != 0 {
		stats = a.stats
	}
	a.shell = bot.New(a.engine, stats)

	logger.Info(context.Background(), component, "app.bootstrap",
		slog.String("status", "ok"),
		slog.String("state", cfg.State.Backend),
		slog.Bool("db", a.db != nil),
		slog.String("listen", cfg.Metrics.Listen),
	)
	return a, nil
}

func (a *App) buildStore(client *redis.Client) (intake.Store, error) {
	if a.cfg.State.Backend != BackendRedis {
		return state.NewMemoryStore[intake.Record](), nil
	}
	rc := a.cfg.State.Redis
	if client == nil {
		client = redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("app: redis ping %s: %w", rc.Addr, err)
	}
	a.redis = client

	var opts []state.RedisOption
	if rc.Prefix != "" {
		opts = append(opts, state.WithPrefix(rc.Prefix))
	}
	if rc.TTLSeconds > 0 {
		opts = append(opts, state.WithTTL(time.Duration(rc.TTLSeconds)*time.Second))
	}
	return state.NewRedisStore[intake.Record](client, opts...), nil
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg := tg.NewRegistry()
	if err := a.shell.Register(reg); err != nil {
		return tg.RunOptions{}, err
	}

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: a.cfg.Telegram.AdminID})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.shell, reg, router.TextOptions{})...)

	return tg.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    reg,
		Middlewares: tg.DefaultMiddlewares(&a.cfg.Config, nil, a.updates),
		Routes:      routes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, _ tg.Runtime) error {
	listen := strings.TrimSpace(a.cfg.Metrics.Listen)
	if listen == "" {
		return nil
	}
	srv, err := httpserver.Listen(listen, httpserver.NewHandler(a.registry, a.health))
	if err != nil {
		return fmt.Errorf("app: metrics listener: %w", err)
	}
	a.metrics = srv
	srv.Start(ctx)
	return nil
}

func (a *App) onStop(ctx context.Context, _ tg.Runtime) error {
	var errs []error
	if a.metrics != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := a.metrics.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
		}
		cancel()
	}
	errs = append(errs, a.close())
	return errors.Join(errs...)
}

// close drains pending submissions and releases storage.
func (a *App) close() error {
	if a.deliveries != nil {
		a.deliveries.Close()
	}
	var errs []error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("db close: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) health(ctx context.Context) error {
	if a.redis != nil {
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if a.db != nil {
		if err := a.db.PingContext(ctx); err != nil {
			return fmt.Errorf("db: %w", err)
		}
	}
	return nil
}

// stats renders the admin report: the funnel chart plus archive totals.
func (a *App) stats(ctx context.Context) (string, error) {
	report := a.funnel.Chart()
	if a.leads == nil {
		return report, nil
	}
	counts, err := a.leads.CountByStatus(ctx)
	if err != nil {
		return "", err
	}
	statuses := make([]string, 0, len(counts))
	for st := range counts {
		statuses = append(statuses, string(st))
	}
	sort.Strings(statuses)
	var b strings.Builder
	b.WriteString(report)
	b.WriteString("\narchive:")
	for _, st := range statuses {
		fmt.Fprintf(&b, " %s=%d", st, counts[leads.Status(st)])
	}
	return b.String(), nil
}
