package service

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/hongminglow/istc-be/internal/models"
	"github.com/hongminglow/istc-be/internal/storage"
)

// ContactService accepts contact form submissions.
type ContactService struct {
	store    storage.ContactStore
	notifier Notifier
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
}

func NewContactService(store storage.ContactStore, notifier Notifier, interval time.Duration, log *slog.Logger, now func() time.Time) *ContactService {
	if now == nil {
		now = time.Now
	}
	return &ContactService{store: store, notifier: notifier, interval: interval, log: log, now: now}
}

type ContactInput struct {
	Name     string
	Email    string
	Subject  string
	Message  string
	Phone    string
	Category string
}

// Submit stores the message and notifies both the sender and the admin inbox.
// userID is set when the submitter is signed in.
func (s *ContactService) Submit(ctx context.Context, in ContactInput, userID *int64) (models.Contact, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	if in.Name == "" || in.Email == "" || in.Subject == "" || in.Message == "" {
		return models.Contact{}, badRequest("name, email, subject, and message are required")
	}
	if in.Category == "" {
		in.Category = models.ContactCategoryGeneral
	}

	var errs fieldErrors
	errs.length("name", in.Name, 1, 100)
	errs.email(in.Email)
	errs.length("subject", in.Subject, 1, 200)
	errs.length("message", in.Message, 10, 2000)
	if !slices.Contains(models.ContactCategories, in.Category) {
		errs.add("category must be one of: " + strings.Join(models.ContactCategories, ", "))
	}
	if err := errs.err(); err != nil {
		return models.Contact{}, err
	}

	now := s.now()
	recent, err := s.store.HasRecentContact(ctx, in.Email, now.Add(-s.interval))
	if err != nil {
		return models.Contact{}, internal("failed to submit contact form", err)
	}
	if recent {
		return models.Contact{}, ErrContactRateLimited
	}

	contact, err := s.store.CreateContact(ctx, models.Contact{
		Name:      in.Name,
		Email:     in.Email,
		Subject:   in.Subject,
		Message:   in.Message,
		Phone:     in.Phone,
		Category:  in.Category,
		Status:    models.ContactStatusPending,
		Priority:  models.ContactPriorityMedium,
		UserID:    userID,
		CreatedAt: now,
	})
	if err != nil {
		return models.Contact{}, fromStore(err, "contact", "submit contact form")
	}

	if err := s.notifier.ContactReceived(ctx, contact); err != nil {
		s.log.WarnContext(ctx, "contact emails failed", "contact_id", contact.ID, "error", err)
	}
	return contact, nil
}
