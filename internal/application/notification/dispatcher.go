package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-identity-api/internal/domain"
	"github.com/go-identity-api/internal/infrastructure/smtp"
	"github.com/go-identity-api/internal/infrastructure/sns"
)

// Dispatcher delivers notifications off the request path. Each delivery runs
// on its own goroutine with its own timeout; failures are logged and never
// returned to the caller.
type Dispatcher struct {
	mailer  smtp.Mailer
	sms     sns.SMSSender
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewDispatcher builds a dispatcher. sms may be nil to disable text messages.
func NewDispatcher(mailer smtp.Mailer, sms sns.SMSSender, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{mailer: mailer, sms: sms, timeout: timeout}
}

// Notify queues n for delivery and returns immediately. The caller's
// cancellation does not abort delivery.
func (d *Dispatcher) Notify(ctx context.Context, n domain.Notification) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		d.deliver(ctx, n)
	}()
}

// Wait blocks until in-flight deliveries finish or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n domain.Notification) {
	subject, body, short := render(n)

	if n.Email != "" && d.mailer != nil {
		if err := d.sendEmail(ctx, n.Email, subject, body); err != nil {
			slog.Warn("notification email failed", "kind", n.Kind, "account_id", n.AccountID, "err", err)
		}
	}
	if n.Phone != "" && d.sms != nil {
		if err := d.sms.SendSMS(ctx, n.Phone, short); err != nil {
			slog.Warn("notification sms failed", "kind", n.Kind, "account_id", n.AccountID, "err", err)
		}
	}
}

// sendEmail bounds the blocking SMTP call by ctx.
func (d *Dispatcher) sendEmail(ctx context.Context, to, subject, body string) error {
	errc := make(chan error, 1)
	go func() { errc <- d.mailer.SendEmail(to, subject, body) }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return fmt.Errorf("smtp send: %w", ctx.Err())
	}
}

// render returns the email subject and body plus a one-line SMS text.
func render(n domain.Notification) (subject, body, short string) {
	switch n.Kind {
	case domain.NotifyEmailVerification:
		return "Verify your email",
			fmt.Sprintf("Your verification code is %s.\r\nIt expires in a few minutes. If you did not sign up, ignore this email.", n.Secret),
			fmt.Sprintf("Your verification code is %s", n.Secret)
	case domain.NotifyPasswordReset:
		return "Reset your password",
			fmt.Sprintf("Use this reset code to choose a new password:\r\n\r\n%s\r\n\r\nIf you did not ask for a reset, ignore this email.", n.Secret),
			fmt.Sprintf("Your password reset code is %s", n.Secret)
	case domain.NotifyPasswordChanged:
		return "Your password was changed",
			"The password on your account was just changed. If this was not you, reset it immediately.",
			"Your password was changed"
	default:
		return "Account notice", "There was activity on your account.", "There was activity on your account"
	}
}
