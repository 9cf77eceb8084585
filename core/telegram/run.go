// Package telegram runs a telebot bot: it builds the poller and API client,
// installs middlewares and routes, and owns the outbound send dispatcher.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/bekksaar/intakebot/core/config"
	"github.com/bekksaar/intakebot/core/logger"
	tghelpers "github.com/bekksaar/intakebot/core/telegram/helpers"
	"github.com/bekksaar/intakebot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware is a named global middleware.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// Route binds a handler to a telebot endpoint (a command, or tele.OnText and
// friends).
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions configures RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	// Dispatcher tunes the queue that helper sends go through.
	Dispatcher sender.Options

	Middlewares []Middleware
	Routes      []Route

	// OnStart runs after wiring and before polling; an error aborts the run.
	OnStart func(ctx context.Context, rt Runtime) error
	// OnStop runs once polling has stopped.
	OnStop func(ctx context.Context, rt Runtime) error
}

// Runtime is what lifecycle hooks get to see.
type Runtime struct {
	Dispatcher *sender.Dispatcher
	Registry   *Registry
}

// RunTelegram runs the bot until ctx is cancelled or the poller stops.
// Cancellation is a clean exit.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	cfg := opts.Config
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	start := time.Now()
	poller := newPoller(cfg)
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  poller,
		Client:  apiClient(cfg),
		OnError: reportError,
	})
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	logMode(ctx, bot, poller, time.Since(start))

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
	publishCommands(bot, reg)

	dispatcher := sender.NewDispatcher(opts.Dispatcher)
	tghelpers.SetDispatcher(dispatcher)
	defer func() {
		dispatcher.Close()
		tghelpers.SetDispatcher(nil)
	}()
	rt := Runtime{Dispatcher: dispatcher, Registry: reg}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		bot.Start()
	}()
	select {
	case <-ctx.Done():
		bot.Stop()
		<-stopped
	case <-stopped:
	}

	if opts.OnStop != nil {
		return opts.OnStop(context.WithoutCancel(ctx), rt)
	}
	return nil
}

// logMode reports how updates arrive. A long poller also clears any webhook
// left over from a previous deployment, since Telegram refuses getUpdates
// while one is set.
func logMode(ctx context.Context, bot *tele.Bot, poller tele.Poller, took time.Duration) {
	hook, ok := poller.(*tele.Webhook)
	if ok {
		logger.Info(ctx, "tg", "mode",
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", hook.Listen),
			slog.String("public_url", hook.Endpoint.PublicURL),
			slog.Duration("duration", took),
		)
		return
	}
	attrs := []slog.Attr{
		slog.String("mode", coreconfig.RunModeLongpoll),
		slog.Duration("poll_timeout", poller.(*tele.LongPoller).Timeout),
		slog.Duration("duration", took),
	}
	if err := bot.RemoveWebhook(false); err != nil {
		logger.Warn(ctx, "tg", "mode", append(attrs, slog.String("status", "fail"), slog.String("err", sender.Redact(err)))...)
		return
	}
	logger.Info(ctx, "tg", "mode", attrs...)
}

// reportError routes telebot's handler and polling errors into the log.
func reportError(err error, c tele.Context) {
	ctx := context.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	logger.Error(ctx, "tg", "tg.error",
		slog.String("status", "fail"),
		slog.String("err", logger.SanitizeLimit(sender.Redact(err), 256)),
	)
}
