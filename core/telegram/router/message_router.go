package router

import (
	"strings"

	tg "github.com/bekksaar/intakebot/core/telegram"
	"github.com/bekksaar/intakebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// FSM is the conversation that consumes free text and shared contacts.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// TextOptions sets the handlers for text and contacts nobody expects.
type TextOptions struct {
	UnknownText    tele.HandlerFunc
	UnknownContact tele.HandlerFunc
}

// TextRoutes routes text and shared contacts to the FSM while the sender has
// a conversation in progress. Command-shaped text never reaches the FSM: it
// is looked up in reg and otherwise treated as unknown.
func TextRoutes(fsm FSM, reg *tg.Registry, opts TextOptions) []tg.Route {
	active := func(c tele.Context) bool {
		return fsm != nil && c.Sender() != nil && fsm.InProgress(c.Sender().ID)
	}

	onText := func(c tele.Context) error {
		text := c.Text()
		command := strings.HasPrefix(strings.TrimSpace(text), "/")
		if !command && active(c) {
			return serve(c, "fsm", fsm.ManagerHandler)
		}
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				return serve(c, handlerName(key), cmd.Handler)
			}
		}
		return serve(c, "unknown_text", opts.UnknownText)
	}

	onContact := func(c tele.Context) error {
		if active(c) {
			return serve(c, "fsm_contact", fsm.ManagerHandler)
		}
		return serve(c, "unexpected_contact", opts.UnknownContact)
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(onText)},
		{Endpoint: tele.OnContact, Handler: wrap(onContact)},
	}
}
