package router

import (
	"log/slog"

	tg "github.com/bekksaar/intakebot/core/telegram"
	"github.com/bekksaar/intakebot/core/telegram/callbacks"
	"github.com/bekksaar/intakebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound answers keys with no handler when the registry has no fallback.
	NotFound tele.HandlerFunc
}

// CallbackRoute acknowledges every callback and dispatches it by key.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		key, _ := callbacks.ParseCallbackData(cb)
		_ = c.Respond()

		extras := []slog.Attr{slog.String("cb_key", key)}
		h, ok := reg.GetCallback(key)
		if !ok || h == nil {
			h = reg.CallbackNotFound()
			if h == nil {
				h = opts.NotFound
			}
			extras = append(extras, slog.String("reason", "not_found"))
		}
		return serve(c, "callback."+handlerName(key), h, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
