package intake

import (
	"github.com/bekksaar/intakebot/core/telegram/state"
	"github.com/bekksaar/intakebot/internal/i18n"
)

// State is a step of the intake conversation.
type State = state.State

const (
	// StateIdle means the user has no active flow.
	StateIdle                State = state.StateIdle
	StateAwaitingLanguage    State = "awaiting_language"
	StateAwaitingFirstName   State = "awaiting_first_name"
	StateAwaitingLastName    State = "awaiting_last_name"
	StateAwaitingEmail       State = "awaiting_email"
	StateAwaitingPhone       State = "awaiting_phone"
	StateAwaitingProjectType State = "awaiting_project_type"
	StateSelectingServices   State = "selecting_services"
	StateAwaitingExtraNotes  State = "awaiting_extra_notes"
	StateReviewingSummary    State = "reviewing_summary"
)

// States lists the flow steps in conversation order.
var States = []State{
	StateAwaitingLanguage,
	StateAwaitingFirstName,
	StateAwaitingLastName,
	StateAwaitingEmail,
	StateAwaitingPhone,
	StateAwaitingProjectType,
	StateSelectingServices,
	StateAwaitingExtraNotes,
	StateReviewingSummary,
}

// Record accumulates the answers of one flow.
type Record struct {
	Locale      i18n.Locale `json:"locale"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	Email       string      `json:"email"`
	Phone       string      `json:"phone"`
	ProjectType string      `json:"project_type"`
	Services    []string    `json:"services"`
	ExtraNotes  string      `json:"extra_notes"`
}

// Session is the store entry of one user's flow.
type Session = state.Session[Record]

// Store keeps intake sessions keyed by user.
type Store = state.Store[Record]

// ProjectType is a labeled project category offered as a button.
type ProjectType struct {
	Key   string
	Label string
}

// ProjectTypes is the closed set of project categories, in display order.
var ProjectTypes = []ProjectType{
	{Key: "Apartment", Label: "🏢 Apartment"},
	{Key: "House", Label: "🏠 House"},
	{Key: "Commercial", Label: "🏭 Commercial"},
	{Key: "Other", Label: "🛠 Other"},
}

// LookupProjectType returns the category with the given key.
func LookupProjectType(key string) (ProjectType, bool) {
	for _, p := range ProjectTypes {
		if p.Key == key {
			return p, true
		}
	}
	return ProjectType{}, false
}

// Services is the selectable service catalog. Labels must stay unique:
// selection is tracked by label.
var Services = []string{
	"Concept design",
	"Space replanning",
	"3D visualization",
	"Material & Finishes Selection",
	"Technical Documentation",
	"Custom Furniture Design",
	"Interior Styling & Décor",
	"Turn-key Project Realisation & Management",
}

// toggle adds the label if absent and removes it otherwise. The result is a
// new slice; selection order is kept for display.
func toggle(selected []string, label string) []string {
	out := make([]string, 0, len(selected)+1)
	found := false
	for _, s := range selected {
		if s == label {
			found = true
			continue
		}
		out = append(out, s)
	}
	if !found {
		out = append(out, label)
	}
	return out
}

func contains(selected []string, label string) bool {
	for _, s := range selected {
		if s == label {
			return true
		}
	}
	return false
}
