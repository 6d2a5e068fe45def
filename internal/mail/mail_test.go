package mail

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/istc-be/internal/config"
	"github.com/hongminglow/istc-be/internal/logging"
	"github.com/hongminglow/istc-be/internal/models"
)

type sentMessage struct {
	to, subject, body string
}

type recordingSender struct {
	sent []sentMessage
	fail map[string]error
}

func (r *recordingSender) Send(_ context.Context, to, subject, body string) error {
	if err := r.fail[to]; err != nil {
		return err
	}
	r.sent = append(r.sent, sentMessage{to: to, subject: subject, body: body})
	return nil
}

func newTestNotifier(sender Sender) *Notifier {
	return NewNotifier(sender, NotifierConfig{
		AppName:     "ISTC",
		FrontendURL: "https://istc.test",
		AdminEmail:  "admin@istc.test",
		ResetTTL:    15 * time.Minute,
	})
}

func TestNotifier_PasswordResetLink(t *testing.T) {
	rec := &recordingSender{}
	n := newTestNotifier(rec)

	err := n.PasswordReset(context.Background(), models.User{Name: "Alice", Email: "alice@example.com"}, "abc123")
	require.NoError(t, err)
	require.Len(t, rec.sent, 1)

	msg := rec.sent[0]
	assert.Equal(t, "alice@example.com", msg.to)
	assert.Contains(t, msg.body, "https://istc.test/reset-password?token=abc123")
	assert.Contains(t, msg.body, "15 minutes")
}

func TestNotifier_EscapesUserInput(t *testing.T) {
	rec := &recordingSender{}
	n := newTestNotifier(rec)

	err := n.Welcome(context.Background(), models.User{Name: "<script>x</script>", Email: "a@example.com"})
	require.NoError(t, err)
	require.Len(t, rec.sent, 1)
	assert.NotContains(t, rec.sent[0].body, "<script>")
	assert.Contains(t, rec.sent[0].body, "https://istc.test/login")
}

func TestNotifier_ContactReceived(t *testing.T) {
	rec := &recordingSender{}
	n := newTestNotifier(rec)
	contact := models.Contact{Name: "Bob", Email: "bob@example.com", Subject: "Courses", Message: "Hello there", Category: "general"}

	require.NoError(t, n.ContactReceived(context.Background(), contact))
	require.Len(t, rec.sent, 2)
	assert.Equal(t, "bob@example.com", rec.sent[0].to)
	assert.Equal(t, "admin@istc.test", rec.sent[1].to)
	assert.Contains(t, rec.sent[1].body, "bob@example.com")
}

func TestNotifier_ContactReceivedJoinsErrors(t *testing.T) {
	boom := errors.New("relay down")
	rec := &recordingSender{fail: map[string]error{"bob@example.com": boom}}
	n := newTestNotifier(rec)

	err := n.ContactReceived(context.Background(), models.Contact{Name: "Bob", Email: "bob@example.com", Subject: "Hi", Message: "Hello there"})
	require.ErrorIs(t, err, boom)
	// admin notification still goes out
	require.Len(t, rec.sent, 1)
	assert.Equal(t, "admin@istc.test", rec.sent[0].to)
}

func TestBuildMessage(t *testing.T) {
	from := &mail.Address{Name: "ISTC", Address: "noreply@istc.test"}
	to := &mail.Address{Address: "alice@example.com"}
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	raw := string(buildMessage(from, to, "Password Reset Request", "<p>hi</p>\n<p>there</p>", now))

	assert.Contains(t, raw, "From: \"ISTC\" <noreply@istc.test>\r\n")
	assert.Contains(t, raw, "To: <alice@example.com>\r\n")
	assert.Contains(t, raw, "Content-Type: text/html; charset=\"utf-8\"\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\n<p>hi</p>\r\n<p>there</p>"))
}

func TestLogSender(t *testing.T) {
	s := NewLogSender(logging.Discard())
	assert.NoError(t, s.Send(context.Background(), "a@example.com", "subject", "body"))
	assert.Error(t, s.Send(context.Background(), "", "subject", "body"))
}

func TestSMTPSender_RejectsBadAddresses(t *testing.T) {
	s := NewSMTPSender(config.SMTPConfig{Host: "localhost", Port: 1, From: "not an address"})
	err := s.Send(context.Background(), "alice@example.com", "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse from address")
}
