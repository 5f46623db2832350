package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-identity-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct{ to, subject, body string }

type fakeMailer struct {
	mu    sync.Mutex
	sent  []sentMail
	err   error
	block chan struct{}
}

func (m *fakeMailer) SendEmail(to, subject, body string) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to, subject, body})
	return m.err
}

type fakeSMS struct {
	mu   sync.Mutex
	sent []string
}

func (s *fakeSMS) SendSMS(_ context.Context, to, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, to+": "+message)
	return nil
}

func TestDispatcher_DeliversEmailAndSMS(t *testing.T) {
	mailer := &fakeMailer{}
	sms := &fakeSMS{}
	d := NewDispatcher(mailer, sms, time.Second)

	d.Notify(context.Background(), domain.Notification{
		Kind:   domain.NotifyEmailVerification,
		Email:  "alice@example.com",
		Phone:  "+15550100",
		Secret: "123456",
	})
	require.NoError(t, d.Wait(context.Background()))

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "alice@example.com", mailer.sent[0].to)
	assert.Equal(t, "Verify your email", mailer.sent[0].subject)
	assert.Contains(t, mailer.sent[0].body, "123456")
	require.Len(t, sms.sent, 1)
	assert.Contains(t, sms.sent[0], "123456")
}

func TestDispatcher_FailureIsSwallowed(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	d := NewDispatcher(mailer, nil, time.Second)

	d.Notify(context.Background(), domain.Notification{Kind: domain.NotifyPasswordChanged, Email: "a@example.com"})
	require.NoError(t, d.Wait(context.Background()))
	assert.Len(t, mailer.sent, 1)
}

func TestDispatcher_CancelledRequestStillDelivers(t *testing.T) {
	mailer := &fakeMailer{}
	d := NewDispatcher(mailer, nil, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Notify(ctx, domain.Notification{Kind: domain.NotifyPasswordReset, Email: "a@example.com", Secret: "s"})
	require.NoError(t, d.Wait(context.Background()))
	assert.Len(t, mailer.sent, 1)
}

func TestDispatcher_WaitHonoursContext(t *testing.T) {
	mailer := &fakeMailer{block: make(chan struct{})}
	d := NewDispatcher(mailer, nil, time.Minute)
	d.Notify(context.Background(), domain.Notification{Kind: domain.NotifyPasswordChanged, Email: "a@example.com"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(ctx), context.DeadlineExceeded)

	close(mailer.block)
	require.NoError(t, d.Wait(context.Background()))
}

func TestRender_PerKind(t *testing.T) {
	subject, body, _ := render(domain.Notification{Kind: domain.NotifyPasswordReset, Secret: "acc.abc"})
	assert.Equal(t, "Reset your password", subject)
	assert.Contains(t, body, "acc.abc")

	subject, _, short := render(domain.Notification{Kind: domain.NotifyPasswordChanged})
	assert.Equal(t, "Your password was changed", subject)
	assert.Equal(t, "Your password was changed", short)
}
