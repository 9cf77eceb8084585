// Package leads archives finished intake records.
package leads

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/bekksaar/intakebot/internal/intake"
)

// Status is the delivery outcome stored with a lead.
type Status string

const (
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Lead is one archived submission.
type Lead struct {
	ID          uuid.UUID      `db:"id"`
	UserID      int64          `db:"user_id"`
	Locale      string         `db:"locale"`
	FirstName   string         `db:"first_name"`
	LastName    string         `db:"last_name"`
	Email       string         `db:"email"`
	Phone       string         `db:"phone"`
	ProjectType string         `db:"project_type"`
	Services    pq.StringArray `db:"services"`
	Extra       string         `db:"extra"`
	Status      Status         `db:"status"`
	CreatedAt   time.Time      `db:"created_at"`
}

// FromRecord builds a lead for the submission id of userID.
func FromRecord(id uuid.UUID, userID int64, rec intake.Record, status Status) Lead {
	return Lead{
		ID:          id,
		UserID:      userID,
		Locale:      string(rec.Locale),
		FirstName:   rec.FirstName,
		LastName:    rec.LastName,
		Email:       rec.Email,
		Phone:       rec.Phone,
		ProjectType: rec.ProjectType,
		Services:    pq.StringArray(append([]string{}, rec.Services...)),
		Extra:       rec.ExtraNotes,
		Status:      status,
	}
}
