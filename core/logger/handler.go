package logger

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// newHandler returns the slog handler behind L. Lines are JSON unless text is
// set, in which case they are key=value.
func newHandler(w io.Writer, text bool, lvl slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: lvl, ReplaceAttr: replaceAttr}
	if text {
		return metaHandler{next: slog.NewTextHandler(w, opts)}
	}
	return metaHandler{next: slog.NewJSONHandler(w, opts), fullRID: true}
}

// metaHandler prepends the update metadata stored in the context to every
// record. JSON output keeps the uncompacted rid next to the short one.
type metaHandler struct {
	next    slog.Handler
	fullRID bool
}

func (h metaHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

func (h metaHandler) Handle(ctx context.Context, r slog.Record) error {
	extra := metaFrom(ctx).attrs(h.fullRID)
	if len(extra) == 0 {
		return h.next.Handle(ctx, r)
	}
	rec := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	rec.AddAttrs(extra...)
	r.Attrs(func(a slog.Attr) bool {
		rec.AddAttrs(a)
		return true
	})
	return h.next.Handle(ctx, rec)
}

func (h metaHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return metaHandler{next: h.next.WithAttrs(attrs), fullRID: h.fullRID}
}

func (h metaHandler) WithGroup(name string) slog.Handler {
	return metaHandler{next: h.next.WithGroup(name), fullRID: h.fullRID}
}

// replaceAttr renames the built-in keys to ts and event, drops blank strings,
// lowercases status and reports durations as whole milliseconds.
func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 {
		switch a.Key {
		case slog.TimeKey:
			return slog.String("ts", a.Value.Time().UTC().Format(timeLayout))
		case slog.MessageKey:
			a.Key = "event"
			return a
		}
	}
	switch a.Value.Kind() {
	case slog.KindString:
		s := strings.TrimSpace(a.Value.String())
		if s == "" {
			return slog.Attr{}
		}
		if a.Key == "status" {
			s = strings.ToLower(s)
		}
		return slog.String(a.Key, s)
	case slog.KindDuration:
		return slog.Int64(msKey(a.Key), RoundMS(a.Value.Duration()).Milliseconds())
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			return slog.String(a.Key, err.Error())
		}
	}
	return a
}

func msKey(key string) string {
	if key == "duration" {
		return "duration_ms"
	}
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}
