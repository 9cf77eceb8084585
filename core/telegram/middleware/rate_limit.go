package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bekksaar/intakebot/core/logger"
	tghelpers "github.com/bekksaar/intakebot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures RateLimitMiddleware.
type RateLimitOptions struct {
	// Interval is the minimum gap between two updates from one user.
	Interval time.Duration
	// Exclude lists update kinds that are never limited: callback, message
	// or inline_query.
	Exclude map[string]struct{}
	// OnLimited, when set, answers a dropped update.
	OnLimited tele.HandlerFunc
}

type lastSeen struct {
	mu   sync.Mutex
	at   map[int64]time.Time
	span time.Duration
}

// admit records now for userID unless the previous update is too recent.
func (l *lastSeen) admit(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.at[userID]; ok && now.Sub(prev) < l.span {
		return false
	}
	l.at[userID] = now
	return true
}

// RateLimitMiddleware drops updates that arrive from a user sooner than
// opts.Interval after the previous one.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	seen := &lastSeen{at: make(map[int64]time.Time), span: opts.Interval}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := rateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if seen.admit(user.ID, time.Now()) {
				return next(c)
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.String("status", "rate_limited"),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}

func rateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	case upd.Query != nil:
		return "inline_query"
	}
	return "other"
}
