package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bekksaar/intakebot/core/logger"
	"github.com/bekksaar/intakebot/core/telegram/state"
	"github.com/bekksaar/intakebot/internal/i18n"
	"github.com/bekksaar/intakebot/internal/validate"
)

const component = "intake"

// skipToken is the answer that leaves an optional field empty.
const skipToken = "-"

// Submitter hands a finished record to the external collector.
//
// The engine ignores the returned error: the user is thanked whatever the
// delivery outcome, and implementations are expected to log failures.
type Submitter interface {
	Submit(ctx context.Context, rec Record) error
}

// Observer receives flow milestones, e.g. for funnel metrics.
type Observer interface {
	FlowStarted()
	StateEntered(st State)
	FlowCompleted()
	FlowCancelled()
}

type nopObserver struct{}

func (nopObserver) FlowStarted()       {}
func (nopObserver) StateEntered(State) {}
func (nopObserver) FlowCompleted()     {}
func (nopObserver) FlowCancelled()     {}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithObserver registers a milestone observer.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// Engine drives intake flows. It is safe for concurrent use; events of the
// same user are serialized.
type Engine struct {
	store     Store
	catalog   *i18n.Catalog
	submitter Submitter
	observer  Observer
	locks     *state.Locks
}

// NewEngine validates the catalog against every key the flow renders and
// returns a ready engine.
func NewEngine(store Store, catalog *i18n.Catalog, submitter Submitter, opts ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, errors.New("intake: nil store")
	}
	if catalog == nil {
		return nil, errors.New("intake: nil catalog")
	}
	if submitter == nil {
		return nil, errors.New("intake: nil submitter")
	}
	if err := catalog.Validate(RequiredKeys...); err != nil {
		return nil, fmt.Errorf("intake: catalog incomplete: %w", err)
	}
	e := &Engine{
		store:     store,
		catalog:   catalog,
		submitter: submitter,
		observer:  nopObserver{},
		locks:     state.NewLocks(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Start begins a fresh flow for the user, discarding any flow in progress.
func (e *Engine) Start(ctx context.Context, userID int64) (Reply, error) {
	unlock := e.locks.Lock(userID)
	defer unlock()

	sess := Session{
		State: StateAwaitingLanguage,
		Data:  Record{Locale: i18n.Default},
	}
	if err := e.store.Start(ctx, userID, sess); err != nil {
		return Reply{}, fmt.Errorf("intake: start flow: %w", err)
	}
	e.observer.FlowStarted()
	e.observer.StateEntered(StateAwaitingLanguage)
	logger.Info(ctx, component, "flow.start",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
	)

	return reply(Message{
		Text:   e.text(i18n.Default, keyWelcome),
		Layout: e.languageLayout(),
	}), nil
}

// Current returns the user's active session or state.ErrNoSession.
func (e *Engine) Current(ctx context.Context, userID int64) (Session, error) {
	return e.store.Get(ctx, userID)
}

// InProgress reports whether the user has an active flow.
func (e *Engine) InProgress(ctx context.Context, userID int64) bool {
	_, err := e.store.Get(ctx, userID)
	return err == nil
}

// step is the outcome of one accepted event.
type step struct {
	next  State
	reply Reply
	// finish ends the flow after the reply is produced.
	finish bool
	// rejected marks input that failed validation and is asked again.
	rejected bool
}

// Handle applies ev to the user's flow and returns the resulting state and the
// messages to render. Events not accepted in the current state, and any event
// without an active flow, are ignored: the state is unchanged and the reply empty.
func (e *Engine) Handle(ctx context.Context, userID int64, ev Event) (State, Reply, error) {
	unlock := e.locks.Lock(userID)
	defer unlock()

	sess, err := e.store.Get(ctx, userID)
	if errors.Is(err, state.ErrNoSession) {
		e.logIgnored(ctx, userID, StateIdle, ev)
		return StateIdle, Reply{}, nil
	}
	if err != nil {
		return StateIdle, Reply{}, fmt.Errorf("intake: load session: %w", err)
	}

	if _, ok := ev.(CancelRequested); ok {
		return e.cancel(ctx, userID, sess)
	}

	st, ok := e.transition(&sess.Data, sess.State, ev)
	if !ok {
		e.logIgnored(ctx, userID, sess.State, ev)
		return sess.State, Reply{}, nil
	}

	if st.finish {
		return e.complete(ctx, userID, sess, st.reply)
	}
	if st.rejected {
		logger.Info(ctx, component, "flow.input_rejected",
			slog.String("status", "retry"),
			slog.Int64("user_id", userID),
			slog.String("state", string(sess.State)),
		)
		return sess.State, st.reply, nil
	}

	prev := sess.State
	sess.State = st.next
	if err := e.store.Save(ctx, userID, sess); err != nil {
		return prev, Reply{}, fmt.Errorf("intake: save session: %w", err)
	}
	if st.next != prev {
		e.observer.StateEntered(st.next)
		logger.Info(ctx, component, "flow.transition",
			slog.String("status", "ok"),
			slog.Int64("user_id", userID),
			slog.String("from", string(prev)),
			slog.String("to", string(st.next)),
			slog.String("op", EventName(ev)),
		)
	}
	return st.next, st.reply, nil
}

// transition implements the per-state rules. It mutates rec only when the
// event is accepted.
func (e *Engine) transition(rec *Record, current State, ev Event) (step, bool) {
	loc := rec.Locale
	switch current {
	case StateAwaitingLanguage:
		if v, ok := ev.(LanguageChosen); ok {
			chosen, valid := i18n.ParseLocale(string(v.Locale))
			if !valid {
				return step{}, false
			}
			rec.Locale = chosen
			return step{next: StateAwaitingFirstName, reply: reply(e.prompt(chosen, keyFirst))}, true
		}

	case StateAwaitingFirstName:
		if v, ok := ev.(TextInput); ok {
			rec.FirstName = strings.TrimSpace(v.Text)
			return step{next: StateAwaitingLastName, reply: reply(e.prompt(loc, keyLast))}, true
		}

	case StateAwaitingLastName:
		if v, ok := ev.(TextInput); ok {
			rec.LastName = optional(v.Text)
			return step{next: StateAwaitingEmail, reply: reply(e.prompt(loc, keyEmail))}, true
		}

	case StateAwaitingEmail:
		if v, ok := ev.(TextInput); ok {
			email := strings.TrimSpace(v.Text)
			if !validate.Email(email) {
				return step{next: StateAwaitingEmail, reply: reply(e.prompt(loc, keyEmailBad)), rejected: true}, true
			}
			rec.Email = email
			msg := e.prompt(loc, keyPhone)
			msg.Layout = &Layout{ContactButton: e.text(loc, keyShare)}
			return step{next: StateAwaitingPhone, reply: reply(msg)}, true
		}

	case StateAwaitingPhone:
		var phone string
		typed := false
		switch v := ev.(type) {
		case ContactShared:
			phone = strings.TrimSpace(v.Phone)
		case TextInput:
			phone = strings.TrimSpace(v.Text)
			typed = true
		default:
			return step{}, false
		}
		if !validate.Phone(phone) {
			return step{next: StateAwaitingPhone, reply: reply(e.prompt(loc, keyPhoneBad)), rejected: true}, true
		}
		rec.Phone = phone
		msg := e.prompt(loc, keyProject)
		msg.Layout = projectLayout()
		if !typed {
			return step{next: StateAwaitingProjectType, reply: reply(msg)}, true
		}
		// The one-time contact keyboard only closes itself when tapped.
		saved := Message{Text: e.text(loc, keyPhoneSaved), Layout: &Layout{RemoveKeyboard: true}}
		return step{next: StateAwaitingProjectType, reply: reply(saved, msg)}, true

	case StateAwaitingProjectType:
		if v, ok := ev.(ProjectChosen); ok {
			p, found := LookupProjectType(v.Key)
			if !found {
				return step{}, false
			}
			rec.ProjectType = p.Label
			rec.Services = []string{}
			msg := e.prompt(loc, keyServices)
			msg.Layout = e.servicesLayout(loc, rec.Services)
			return step{next: StateSelectingServices, reply: reply(msg)}, true
		}

	case StateSelectingServices:
		switch v := ev.(type) {
		case OptionToggled:
			if v.Index < 0 || v.Index >= len(Services) {
				return step{}, false
			}
			rec.Services = toggle(rec.Services, Services[v.Index])
			return step{
				next:  StateSelectingServices,
				reply: reply(Message{Layout: e.servicesLayout(loc, rec.Services), EditLayout: true}),
			}, true
		case OptionsDone:
			return step{next: StateAwaitingExtraNotes, reply: reply(e.prompt(loc, keyExtra))}, true
		}

	case StateAwaitingExtraNotes:
		if v, ok := ev.(TextInput); ok {
			rec.ExtraNotes = optional(v.Text)
			msg := Message{Text: e.summary(*rec), Markdown: true, Layout: e.reviewLayout(loc)}
			return step{next: StateReviewingSummary, reply: reply(msg)}, true
		}

	case StateReviewingSummary:
		switch ev.(type) {
		case ReviewConfirmed:
			return step{
				next:   StateIdle,
				reply:  reply(Message{Text: e.text(loc, keyThanks)}, Message{Text: e.text(loc, keyPrivacy)}),
				finish: true,
			}, true
		case ReviewEditRequested:
			return step{next: StateAwaitingFirstName, reply: reply(e.prompt(loc, keyFirst))}, true
		}
	}
	return step{}, false
}

// complete hands the record to the submitter and ends the flow. The user is
// thanked regardless of the submission outcome.
func (e *Engine) complete(ctx context.Context, userID int64, sess Session, out Reply) (State, Reply, error) {
	_ = e.submitter.Submit(ctx, sess.Data)

	if err := e.store.Clear(ctx, userID); err != nil {
		logger.Error(ctx, component, "flow.clear",
			slog.String("status", "fail"),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}
	e.observer.FlowCompleted()
	logger.Info(ctx, component, "flow.complete",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("lang", string(sess.Data.Locale)),
		slog.Int("count", len(sess.Data.Services)),
	)
	return StateIdle, out, nil
}

func (e *Engine) cancel(ctx context.Context, userID int64, sess Session) (State, Reply, error) {
	if err := e.store.Clear(ctx, userID); err != nil {
		return sess.State, Reply{}, fmt.Errorf("intake: clear session: %w", err)
	}
	e.observer.FlowCancelled()
	logger.Info(ctx, component, "flow.cancel",
		slog.String("status", "cancelled"),
		slog.Int64("user_id", userID),
		slog.String("from", string(sess.State)),
	)
	return StateIdle, reply(Message{Text: e.text(sess.Data.Locale, keyCancelled)}), nil
}

func (e *Engine) logIgnored(ctx context.Context, userID int64, st State, ev Event) {
	logger.Debug(ctx, component, "flow.event_ignored",
		slog.String("status", "skip"),
		slog.Int64("user_id", userID),
		slog.String("state", string(st)),
		slog.String("op", EventName(ev)),
	)
}

// optional trims the answer and maps the skip token to an empty value.
func optional(text string) string {
	t := strings.TrimSpace(text)
	if t == skipToken {
		return ""
	}
	return t
}
