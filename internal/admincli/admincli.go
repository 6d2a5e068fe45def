// Package admincli implements the operator commands of the istc-admin binary.
package admincli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/hongminglow/istc-be/internal/auth"
	"github.com/hongminglow/istc-be/internal/models"
	"github.com/hongminglow/istc-be/internal/service"
	"github.com/hongminglow/istc-be/internal/storage"
)

// Test seams over golang.org/x/term.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

// ErrUsage is returned for unknown commands or bad flags.
var ErrUsage = errors.New("usage error")

const usage = `usage: istc-admin <command> [flags]

commands:
  migrate              apply database migrations and exit
  create-admin         create a user with the admin role
  prune-reset-tokens   delete password reset tokens that expired before a cutoff
`

// Store is what the commands need from persistence.
type Store interface {
	storage.UserStore
	storage.RoleStore
	storage.ResetTokenStore
}

// App runs one command against a store.
type App struct {
	Store  Store
	Hasher *auth.PasswordHasher
	In     io.Reader
	Out    io.Writer
	Now    func() time.Time

	lines *bufio.Reader
}

// Run dispatches args[0] to its command.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.Out, usage)
		return ErrUsage
	}
	switch args[0] {
	case "migrate":
		// the store applies migrations when it is opened
		fmt.Fprintln(a.Out, "migrations applied")
		return nil
	case "create-admin":
		return a.createAdmin(ctx, args[1:])
	case "prune-reset-tokens":
		return a.pruneResetTokens(ctx, args[1:])
	case "help", "-h", "--help":
		fmt.Fprint(a.Out, usage)
		return nil
	default:
		fmt.Fprintf(a.Out, "unknown command %q\n\n%s", args[0], usage)
		return ErrUsage
	}
}

func (a *App) createAdmin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	fs.SetOutput(a.Out)
	name := fs.String("name", "Administrator", "display name")
	username := fs.String("username", "", "login username (required)")
	email := fs.String("email", "", "email address (required)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if strings.TrimSpace(*username) == "" || strings.TrimSpace(*email) == "" {
		fs.Usage()
		return fmt.Errorf("%w: -username and -email are required", ErrUsage)
	}

	password, err := a.promptPassword("Password: ")
	if err != nil {
		return err
	}
	confirm, err := a.promptPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	role, err := a.Store.FindRoleByName(ctx, models.AdminRole)
	if err != nil {
		return fmt.Errorf("find admin role: %w", err)
	}
	admin := service.NewAdminService(a.Store, a.Store, a.Hasher)
	user, err := admin.CreateUser(ctx, service.CreateUserInput{
		Name:     *name,
		Username: *username,
		Email:    *email,
		Password: password,
		RoleID:   role.ID,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "created admin %s (id=%d)\n", user.Username, user.ID)
	return nil
}

// promptPassword reads without echo from a terminal and falls back to a plain line
// when input is piped.
func (a *App) promptPassword(prompt string) (string, error) {
	fmt.Fprint(a.Out, prompt)
	if f, ok := a.In.(*os.File); ok && isTerminal(int(f.Fd())) {
		pw, err := readPassword(int(f.Fd()))
		fmt.Fprintln(a.Out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}
	if a.lines == nil {
		a.lines = bufio.NewReader(a.In)
	}
	line, err := a.lines.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *App) pruneResetTokens(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("prune-reset-tokens", flag.ContinueOnError)
	fs.SetOutput(a.Out)
	olderThan := fs.Duration("older-than", 24*time.Hour, "keep tokens that expired within this window")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	removed, err := a.Store.DeleteExpiredResetTokens(ctx, now().Add(-*olderThan))
	if err != nil {
		return fmt.Errorf("prune reset tokens: %w", err)
	}
	fmt.Fprintf(a.Out, "removed %d expired reset tokens\n", removed)
	return nil
}
