package intake

import (
	"strconv"
	"strings"

	"github.com/bekksaar/intakebot/core/telegram/format"
	"github.com/bekksaar/intakebot/internal/i18n"
)

// Catalog keys used by the engine.
const (
	keyLanguageName = "language_name"
	keyWelcome      = "welcome"
	keyFirst        = "first"
	keyLast         = "last"
	keyEmail        = "email"
	keyEmailBad     = "email_bad"
	keyPhone        = "phone"
	keyPhoneBad     = "phone_bad"
	keyPhoneSaved   = "phone_saved"
	keyProject      = "project"
	keyServices     = "services"
	keyDone         = "done"
	keyExtra        = "extra"
	keyResume       = "resume"
	keySend         = "send"
	keyEdit         = "edit"
	keyThanks       = "thanks"
	keyPrivacy      = "privacy"
	keyShare        = "share"
	keyCancelled    = "cancelled"
)

// RequiredKeys lists every catalog key the engine renders.
var RequiredKeys = []string{
	keyLanguageName, keyWelcome, keyFirst, keyLast, keyEmail, keyEmailBad, keyPhone,
	keyPhoneBad, keyPhoneSaved, keyProject, keyServices, keyDone, keyExtra, keyResume, keySend, keyEdit,
	keyThanks, keyPrivacy, keyShare, keyCancelled,
}

const emptyPlaceholder = "—"

func (e *Engine) text(loc i18n.Locale, key string) string {
	return e.catalog.MustRender(loc, key, nil)
}

func (e *Engine) prompt(loc i18n.Locale, key string) Message {
	return Message{Text: e.text(loc, key), Markdown: true}
}

func (e *Engine) languageLayout() *Layout {
	row := make([]Option, 0, len(i18n.Locales))
	for _, loc := range i18n.Locales {
		row = append(row, Option{
			Label:   e.text(loc, keyLanguageName),
			Action:  ActionLanguage,
			Payload: string(loc),
		})
	}
	return &Layout{Rows: [][]Option{row}}
}

func projectLayout() *Layout {
	rows := make([][]Option, 0, len(ProjectTypes))
	for _, p := range ProjectTypes {
		rows = append(rows, []Option{{Label: p.Label, Action: ActionProject, Payload: p.Key}})
	}
	return &Layout{Rows: rows}
}

func (e *Engine) servicesLayout(loc i18n.Locale, selected []string) *Layout {
	rows := make([][]Option, 0, len(Services)+1)
	for i, s := range Services {
		label := s
		if contains(selected, s) {
			label = "✅ " + s
		}
		rows = append(rows, []Option{{Label: label, Action: ActionService, Payload: strconv.Itoa(i)}})
	}
	rows = append(rows, []Option{{Label: e.text(loc, keyDone), Action: ActionServicesDone}})
	return &Layout{Rows: rows}
}

func (e *Engine) reviewLayout(loc i18n.Locale) *Layout {
	return &Layout{Rows: [][]Option{{
		{Label: e.text(loc, keySend), Action: ActionReview, Payload: ReviewSubmit},
		{Label: e.text(loc, keyEdit), Action: ActionReview, Payload: ReviewEdit},
	}}}
}

// summary renders the review message. User supplied values are escaped so
// they cannot break the Markdown of the template.
func (e *Engine) summary(rec Record) string {
	services := strings.Join(rec.Services, ", ")
	if services == "" {
		services = emptyPlaceholder
	}
	extra := format.EscapeMD(rec.ExtraNotes)
	if extra == "" {
		extra = emptyPlaceholder
	}
	return e.catalog.MustRender(rec.Locale, keyResume, i18n.Params{
		"first": format.EscapeMD(rec.FirstName),
		"last":  format.EscapeMD(rec.LastName),
		"email": format.EscapeMD(rec.Email),
		"phone": format.EscapeMD(rec.Phone),
		"proj":  rec.ProjectType,
		"serv":  services,
		"extra": extra,
	})
}
