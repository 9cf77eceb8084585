package intake

import "github.com/bekksaar/intakebot/internal/i18n"

// Event is an inbound user action decoded at the transport boundary.
type Event interface {
	event()
}

// LanguageChosen is a tap on a language button.
type LanguageChosen struct{ Locale i18n.Locale }

// TextInput is a free-text message.
type TextInput struct{ Text string }

// ContactShared carries the phone number of a shared contact.
type ContactShared struct{ Phone string }

// ProjectChosen is a tap on a project category button.
type ProjectChosen struct{ Key string }

// OptionToggled is a tap on the service at Index.
type OptionToggled struct{ Index int }

// OptionsDone finishes service selection.
type OptionsDone struct{}

// ReviewConfirmed submits the reviewed record.
type ReviewConfirmed struct{}

// ReviewEditRequested restarts answering from the first name.
type ReviewEditRequested struct{}

// CancelRequested abandons the flow.
type CancelRequested struct{}

func (LanguageChosen) event()      {}
func (TextInput) event()           {}
func (ContactShared) event()       {}
func (ProjectChosen) event()       {}
func (OptionToggled) event()       {}
func (OptionsDone) event()         {}
func (ReviewConfirmed) event()     {}
func (ReviewEditRequested) event() {}
func (CancelRequested) event()     {}

// EventName returns a short label for logs and metrics.
func EventName(ev Event) string {
	switch ev.(type) {
	case LanguageChosen:
		return "language_chosen"
	case TextInput:
		return "text_input"
	case ContactShared:
		return "contact_shared"
	case ProjectChosen:
		return "project_chosen"
	case OptionToggled:
		return "option_toggled"
	case OptionsDone:
		return "options_done"
	case ReviewConfirmed:
		return "review_confirmed"
	case ReviewEditRequested:
		return "review_edit_requested"
	case CancelRequested:
		return "cancel_requested"
	default:
		return "unknown"
	}
}
