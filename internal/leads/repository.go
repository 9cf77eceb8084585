package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const insertLead = `
INSERT INTO leads (id, user_id, locale, first_name, last_name, email, phone,
                   project_type, services, extra, status, created_at)
VALUES (:id, :user_id, :locale, :first_name, :last_name, :email, :phone,
        :project_type, :services, :extra, :status, :created_at)`

// Repository persists leads with sqlx.
type Repository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewRepository wraps an open database handle.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Save inserts lead. CreatedAt is stamped when zero.
func (r *Repository) Save(ctx context.Context, lead Lead) error {
	if r == nil || r.db == nil {
		return errors.New("leads: repository not initialized")
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = r.now().UTC()
	}
	if lead.Services == nil {
		lead.Services = []string{}
	}
	if _, err := r.db.NamedExecContext(ctx, insertLead, lead); err != nil {
		return fmt.Errorf("leads: insert %s: %w", lead.ID, err)
	}
	return nil
}

// Get loads one lead by id.
func (r *Repository) Get(ctx context.Context, id string) (Lead, error) {
	var lead Lead
	q := r.db.Rebind(`SELECT id, user_id, locale, first_name, last_name, email, phone,
       project_type, services, extra, status, created_at FROM leads WHERE id = ?`)
	if err := r.db.GetContext(ctx, &lead, q, id); err != nil {
		return Lead{}, fmt.Errorf("leads: get %s: %w", id, err)
	}
	return lead, nil
}

// CountByStatus returns the number of archived leads per delivery status.
func (r *Repository) CountByStatus(ctx context.Context) (map[Status]int, error) {
	var rows []struct {
		Status Status `db:"status"`
		N      int    `db:"n"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS n FROM leads GROUP BY status`); err != nil {
		return nil, fmt.Errorf("leads: count: %w", err)
	}
	out := make(map[Status]int, len(rows))
	for _, row := range rows {
		out[row.Status] = row.N
	}
	return out, nil
}
