package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/bekksaar/intakebot/core/logger"
	"github.com/bekksaar/intakebot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var outbox atomic.Pointer[sender.Dispatcher]

// SetDispatcher routes outgoing calls through d. nil makes sends synchronous.
func SetDispatcher(d *sender.Dispatcher) {
	outbox.Store(d)
}

// deliver queues call on the outbox. A full or closed queue degrades to an
// inline call so the user still gets an answer.
func deliver(c tele.Context, action string, call func() error) error {
	d := outbox.Load()
	if d == nil {
		return call()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, action, "sendMessage", call)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sender.ErrQueueFull), errors.Is(err, sender.ErrQueueClosed):
		logger.Warn(ctx, "tg.sender", "send.inline",
			slog.String("action", action),
			slog.String("reason", err.Error()),
		)
		return call()
	default:
		return err
	}
}

// SendMD sends text in legacy Markdown, with an optional keyboard.
func SendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown}
	if len(markup) > 0 {
		opts.ReplyMarkup = markup[0]
	}
	return deliver(c, "send.md", func() error { return c.Send(text, opts) })
}

// SendSequence runs steps as one queued job so messages reach the chat in
// order. A retried job resumes at the step that failed.
func SendSequence(c tele.Context, action string, steps ...func() error) error {
	done := 0
	return deliver(c, action, func() error {
		for ; done < len(steps); done++ {
			if err := steps[done](); err != nil {
				return err
			}
		}
		return nil
	})
}
