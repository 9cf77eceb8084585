package bot

import (
	tghelpers "github.com/bekksaar/intakebot/core/telegram/helpers"
	"github.com/bekksaar/intakebot/core/telegram/keyboard"
	"github.com/bekksaar/intakebot/internal/intake"

	tele "gopkg.in/telebot.v4"
)

// render delivers r to the chat behind c. Messages are sent in order; a
// layout edit targets the message whose button was tapped.
func render(c tele.Context, r intake.Reply) error {
	if r.Empty() {
		return nil
	}
	steps := make([]func() error, 0, len(r.Messages))
	for _, msg := range r.Messages {
		msg := msg
		markup := buildMarkup(msg.Layout)
		if msg.EditLayout {
			if c.Callback() == nil || markup == nil {
				continue
			}
			steps = append(steps, func() error { return c.Edit(markup) })
			continue
		}
		steps = append(steps, func() error {
			opts := &tele.SendOptions{ReplyMarkup: markup}
			if msg.Markdown {
				opts.ParseMode = tele.ModeMarkdown
			}
			return c.Send(msg.Text, opts)
		})
	}
	if len(steps) == 0 {
		return nil
	}
	return tghelpers.SendSequence(c, "send.reply", steps...)
}

// buildMarkup converts a layout into Telegram markup. A contact request
// becomes a one-time reply keyboard; options become an inline keyboard.
func buildMarkup(l *intake.Layout) *tele.ReplyMarkup {
	if l.Empty() {
		return nil
	}
	if l.RemoveKeyboard {
		return keyboard.RemoveKeyboard()
	}
	if l.ContactButton != "" {
		return keyboard.ContactRequest(l.ContactButton)
	}
	rows := make([][]keyboard.Button, 0, len(l.Rows))
	for _, row := range l.Rows {
		btns := make([]keyboard.Button, 0, len(row))
		for _, opt := range row {
			btns = append(btns, keyboard.Button{Text: opt.Label, Unique: opt.Action, Data: opt.Payload})
		}
		rows = append(rows, btns)
	}
	return keyboard.Inline(rows...)
}
