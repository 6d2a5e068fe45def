package mail

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/hongminglow/istc-be/internal/models"
)

// Notifier renders and sends the API's transactional emails.
type Notifier struct {
	sender      Sender
	appName     string
	frontendURL string
	adminEmail  string
	resetTTL    time.Duration
}

// NotifierConfig carries the values templates link to.
type NotifierConfig struct {
	AppName     string
	FrontendURL string
	AdminEmail  string
	ResetTTL    time.Duration
}

func NewNotifier(sender Sender, cfg NotifierConfig) *Notifier {
	return &Notifier{
		sender:      sender,
		appName:     cfg.AppName,
		frontendURL: cfg.FrontendURL,
		adminEmail:  cfg.AdminEmail,
		resetTTL:    cfg.ResetTTL,
	}
}

func (n *Notifier) Welcome(ctx context.Context, user models.User) error {
	body, err := render("welcome", map[string]any{
		"Name":     user.Name,
		"AppName":  n.appName,
		"LoginURL": n.frontendURL + "/login",
	})
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, user.Email, "Welcome to "+n.appName, body)
}

func (n *Notifier) PasswordReset(ctx context.Context, user models.User, token string) error {
	body, err := render("password-reset", map[string]any{
		"Name":      user.Name,
		"ResetURL":  n.frontendURL + "/reset-password?token=" + url.QueryEscape(token),
		"ExpiresIn": humanMinutes(n.resetTTL),
	})
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, user.Email, "Password Reset Request", body)
}

func (n *Notifier) PasswordChanged(ctx context.Context, user models.User) error {
	body, err := render("password-changed", map[string]any{
		"Name":    user.Name,
		"AppName": n.appName,
	})
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, user.Email, "Your password was changed", body)
}

// ContactReceived confirms receipt to the submitter and alerts the admin inbox.
// Both sends are attempted; their errors are joined.
func (n *Notifier) ContactReceived(ctx context.Context, c models.Contact) error {
	var errs []error

	confirmation, err := render("contact-confirmation", map[string]any{
		"Name":    c.Name,
		"Message": c.Message,
		"AppName": n.appName,
	})
	if err == nil {
		err = n.sender.Send(ctx, c.Email, "We received your message", confirmation)
	}
	if err != nil {
		errs = append(errs, fmt.Errorf("contact confirmation: %w", err))
	}

	if n.adminEmail != "" {
		notification, err := render("contact-notification", map[string]any{
			"Name":      c.Name,
			"Email":     c.Email,
			"Subject":   c.Subject,
			"Category":  c.Category,
			"Phone":     c.Phone,
			"Message":   c.Message,
			"Submitted": c.CreatedAt.Format(time.RFC1123),
		})
		if err == nil {
			err = n.sender.Send(ctx, n.adminEmail, "New contact: "+c.Subject, notification)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("contact notification: %w", err))
		}
	}
	return errors.Join(errs...)
}

func humanMinutes(d time.Duration) string {
	m := int(d.Minutes())
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
