package middleware

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	tele "gopkg.in/telebot.v4"
)

const tallyKey = "reply_tally"

// replyTally counts what handlers sent back for one update.
type replyTally struct {
	sent     int
	keyboard bool
}

func (t *replyTally) add(markup bool) {
	t.sent++
	t.keyboard = t.keyboard || markup
}

// countingContext forwards Send and Edit and records successful replies.
type countingContext struct {
	tele.Context
	tally *replyTally
}

func carriesMarkup(opts []interface{}) bool {
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok && so != nil && so.ReplyMarkup != nil {
			return true
		}
		if rm, ok := o.(*tele.ReplyMarkup); ok && rm != nil {
			return true
		}
	}
	return false
}

func (cc countingContext) Send(what interface{}, opts ...interface{}) error {
	if err := cc.Context.Send(what, opts...); err != nil {
		return err
	}
	cc.tally.add(carriesMarkup(opts))
	return nil
}

// Edit with a bare *tele.ReplyMarkup is a keyboard swap.
func (cc countingContext) Edit(what interface{}, opts ...interface{}) error {
	if err := cc.Context.Edit(what, opts...); err != nil {
		return err
	}
	_, swap := what.(*tele.ReplyMarkup)
	cc.tally.add(swap || carriesMarkup(opts))
	return nil
}

// UpdateMetrics exports per-update Prometheus series.
type UpdateMetrics struct {
	updates  *prometheus.CounterVec
	replies  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewUpdateMetrics registers the update collectors with reg.
func NewUpdateMetrics(reg prometheus.Registerer) *UpdateMetrics {
	f := promauto.With(reg)
	return &UpdateMetrics{
		updates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tg_updates_total",
			Help: "Telegram updates handled, by kind and result.",
		}, []string{"kind", "result"}),
		replies: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tg_replies_total",
			Help: "Messages sent or edited in response to updates.",
		}, []string{"keyboard"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tg_update_duration_seconds",
			Help:    "Time spent in update handlers.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
	}
}

// Middleware counts replies on the wrapped context and reports them with the
// handler duration once the update is done. A nil receiver only counts.
func (u *UpdateMetrics) Middleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		tally := &replyTally{}
		c.Set(tallyKey, tally)
		start := time.Now()
		err := next(countingContext{Context: c, tally: tally})
		if u != nil {
			u.observe(c, time.Since(start), err)
		}
		return err
	}
}

func (u *UpdateMetrics) observe(c tele.Context, elapsed time.Duration, err error) {
	kind := updateKind(c.Update())
	result := "ok"
	if err != nil {
		result = "fail"
	}
	u.updates.WithLabelValues(kind, result).Inc()
	u.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
	if msgs, kb := Replies(c); msgs > 0 {
		u.replies.WithLabelValues(strconv.FormatBool(kb)).Add(float64(msgs))
	}
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil && upd.Message.Contact != nil:
		return "contact"
	case upd.Message != nil:
		return "message"
	}
	return "other"
}

// Replies reports how many messages the handler sent and whether any of them
// carried a keyboard. Zero values mean the counting middleware did not run.
func Replies(c tele.Context) (sent int, keyboard bool) {
	t, ok := c.Get(tallyKey).(*replyTally)
	if !ok || t == nil {
		return 0, false
	}
	return t.sent, t.keyboard
}
