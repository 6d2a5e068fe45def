package postgres

import (
	"context"
	"time"

	"github.com/hongminglow/istc-be/internal/models"
)

// CreateContact stores a contact form submission.
func (s *Store) CreateContact(ctx context.Context, c models.Contact) (models.Contact, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	const query = `
		INSERT INTO contacts (name, email, subject, message, phone, category, status, priority, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, name, email, subject, message, phone, category, status, priority, user_id, created_at`
	var out models.Contact
	err := s.pool.QueryRow(ctx, query, c.Name, c.Email, c.Subject, c.Message, c.Phone, c.Category, c.Status,
		c.Priority, c.UserID, c.CreatedAt).
		Scan(&out.ID, &out.Name, &out.Email, &out.Subject, &out.Message, &out.Phone, &out.Category, &out.Status,
			&out.Priority, &out.UserID, &out.CreatedAt)
	if err != nil {
		return models.Contact{}, mapError(err)
	}
	return out, nil
}

// HasRecentContact reports whether email submitted the form at or after since.
func (s *Store) HasRecentContact(ctx context.Context, email string, since time.Time) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM contacts WHERE email = $1 AND created_at >= $2)`, email, since).Scan(&exists)
	return exists, mapError(err)
}
