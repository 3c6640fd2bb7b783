package local

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goliatone/go-workshop/repository"
)

// Mailer delivers password reset links.
type Mailer interface {
	SendPasswordReset(ctx context.Context, reset *repository.PasswordReset) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, reset *repository.PasswordReset) error

func (f MailerFunc) SendPasswordReset(ctx context.Context, reset *repository.PasswordReset) error {
	return f(ctx, reset)
}

// ConsoleMailer prints the reset link instead of sending an email.
type ConsoleMailer struct {
	Out      io.Writer
	LinkBase string
}

func (m ConsoleMailer) SendPasswordReset(_ context.Context, reset *repository.PasswordReset) error {
	out := m.Out
	if out == nil {
		out = os.Stdout
	}

	base := m.LinkBase
	if base == "" {
		base = "/password-reset"
	}

	_, err := fmt.Fprintf(out,
		"====== SENDING EMAIL NOTIFICATION =======\nto: %s\nlink: %s/%s\n",
		reset.Email, base, reset.ID.String(),
	)
	return err
}
