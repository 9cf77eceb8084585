package intake

// Callback actions carried by option buttons.
const (
	ActionLanguage     = "lang"
	ActionProject      = "project"
	ActionService      = "svc"
	ActionServicesDone = "svc_done"
	ActionReview       = "review"

	ReviewSubmit = "ok"
	ReviewEdit   = "edit"
)

// Option is a tappable button. Action and Payload identify the event it produces.
type Option struct {
	Label   string
	Action  string
	Payload string
}

// Layout is the set of options attached to a message.
type Layout struct {
	Rows [][]Option
	// ContactButton, when set, asks the client to show a one-shot
	// share-contact button with this label instead of inline options.
	ContactButton string
	// RemoveKeyboard hides a reply keyboard left open on the client.
	RemoveKeyboard bool
}

// Empty reports whether the layout carries nothing to render.
func (l *Layout) Empty() bool {
	return l == nil || (len(l.Rows) == 0 && l.ContactButton == "" && !l.RemoveKeyboard)
}

// Message is one outbound render instruction.
type Message struct {
	Text     string
	Markdown bool
	Layout   *Layout
	// EditLayout re-renders the options of the message the user tapped
	// instead of sending a new message. Text is ignored.
	EditLayout bool
}

// Reply is the ordered output of handling one event. An empty reply means
// the event was ignored.
type Reply struct {
	Messages []Message
}

// Empty reports whether there is nothing to send.
func (r Reply) Empty() bool {
	return len(r.Messages) == 0
}

func reply(msgs ...Message) Reply {
	return Reply{Messages: msgs}
}
