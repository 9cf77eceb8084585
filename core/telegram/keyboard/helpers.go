package keyboard

import tele "gopkg.in/telebot.v4"

// Button is one inline callback button. Unique selects the handler and Data
// is passed to it.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// Inline lays out rows of callback buttons.
func Inline(rows ...[]Button) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	for _, row := range rows {
		line := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			line = append(line, tele.InlineButton{Text: b.Text, Unique: b.Unique, Data: b.Data})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, line)
	}
	return markup
}

// ContactRequest returns a one-time reply keyboard with a single button that
// shares the user's phone number.
func ContactRequest(label string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
	markup.Reply(markup.Row(markup.Contact(label)))
	return markup
}

// RemoveKeyboard hides the reply keyboard currently shown to the user.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}
