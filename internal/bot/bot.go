package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bekksaar/intakebot/core/logger"
	tg "github.com/bekksaar/intakebot/core/telegram"
	"github.com/bekksaar/intakebot/core/telegram/callbacks"
	tghelpers "github.com/bekksaar/intakebot/core/telegram/helpers"
	"github.com/bekksaar/intakebot/internal/i18n"
	"github.com/bekksaar/intakebot/internal/intake"

	tele "gopkg.in/telebot.v4"
)

const component = "bot"

// Engine is the conversation core driven by the shell.
type Engine interface {
	Start(ctx context.Context, userID int64) (intake.Reply, error)
	Handle(ctx context.Context, userID int64, ev intake.Event) (intake.State, intake.Reply, error)
	InProgress(ctx context.Context, userID int64) bool
}

// StatsFunc renders the admin statistics report.
type StatsFunc func(ctx context.Context) (string, error)

// Shell binds an Engine to Telegram. It satisfies router.FSM.
type Shell struct {
	engine Engine
	stats  StatsFunc
}

// New returns a shell for engine. stats may be nil, which disables /stats.
func New(engine Engine, stats StatsFunc) *Shell {
	return &Shell{engine: engine, stats: stats}
}

// Register adds the shell's commands and callbacks to reg.
func (s *Shell) Register(reg *tg.Registry) error {
	cmds := map[string]tg.Command{
		"/start":  {Handler: s.handleStart, Description: "Start a new request"},
		"/cancel": {Handler: s.handleCancel, Description: "Cancel the current request"},
	}
	if s.stats != nil {
		cmds["/stats"] = tg.Command{Handler: s.handleStats, Description: "Funnel statistics", AdminOnly: true, Hidden: true}
	}
	for name, cmd := range cmds {
		if err := reg.RegisterCommand(name, cmd); err != nil {
			return fmt.Errorf("bot: %w", err)
		}
	}

	cbs := map[string]tele.HandlerFunc{
		intake.ActionLanguage:     s.onLanguage,
		intake.ActionProject:      s.onProject,
		intake.ActionService:      s.onService,
		intake.ActionServicesDone: s.onServicesDone,
		intake.ActionReview:       s.onReview,
	}
	for key, h := range cbs {
		if err := reg.RegisterCallback(key, h); err != nil {
			return fmt.Errorf("bot: %w", err)
		}
	}
	// Taps on stale keyboards are ignored.
	reg.SetCallbackNotFound(func(tele.Context) error { return nil })
	return nil
}

// InProgress reports whether userID has an active flow.
func (s *Shell) InProgress(userID int64) bool {
	return s.engine.InProgress(context.Background(), userID)
}

// ManagerHandler decodes text and shared contacts into events.
func (s *Shell) ManagerHandler(c tele.Context) error {
	msg := c.Message()
	if msg == nil {
		return nil
	}
	if msg.Contact != nil {
		return s.dispatch(c, intake.ContactShared{Phone: msg.Contact.PhoneNumber})
	}
	// Unregistered commands are not answers.
	if strings.HasPrefix(strings.TrimSpace(msg.Text), "/") {
		logger.Debug(tghelpers.BuildContext(c), component, "command.ignored", slog.String("text", msg.Text))
		return nil
	}
	return s.dispatch(c, intake.TextInput{Text: msg.Text})
}

func (s *Shell) handleStart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	r, err := s.engine.Start(ctx, c.Sender().ID)
	if err != nil {
		return err
	}
	return render(c, r)
}

func (s *Shell) handleCancel(c tele.Context) error {
	return s.dispatch(c, intake.CancelRequested{})
}

func (s *Shell) handleStats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	report, err := s.stats(ctx)
	if err != nil {
		return err
	}
	return tghelpers.SendMD(c, "```\n"+report+"\n```")
}

func (s *Shell) onLanguage(c tele.Context) error {
	return s.dispatch(c, intake.LanguageChosen{Locale: i18n.Locale(callbacks.CallbackPayload(c))})
}

func (s *Shell) onProject(c tele.Context) error {
	return s.dispatch(c, intake.ProjectChosen{Key: callbacks.CallbackPayload(c)})
}

func (s *Shell) onService(c tele.Context) error {
	idx, err := callbacks.PayloadInt(c)
	if err != nil {
		logger.Debug(tghelpers.BuildContext(c), component, "callback.bad_payload",
			slog.String("status", "skip"),
			slog.String("cb_key", intake.ActionService),
			slog.String("payload", callbacks.CallbackPayload(c)),
		)
		return nil
	}
	return s.dispatch(c, intake.OptionToggled{Index: idx})
}

func (s *Shell) onServicesDone(c tele.Context) error {
	return s.dispatch(c, intake.OptionsDone{})
}

func (s *Shell) onReview(c tele.Context) error {
	switch strings.TrimSpace(callbacks.CallbackPayload(c)) {
	case intake.ReviewSubmit:
		return s.dispatch(c, intake.ReviewConfirmed{})
	case intake.ReviewEdit:
		return s.dispatch(c, intake.ReviewEditRequested{})
	}
	return nil
}

func (s *Shell) dispatch(c tele.Context, ev intake.Event) error {
	if c.Sender() == nil {
		return errors.New("bot: update without sender")
	}
	ctx := tghelpers.BuildContext(c)
	_, r, err := s.engine.Handle(ctx, c.Sender().ID, ev)
	if err != nil {
		return err
	}
	return render(c, r)
}
