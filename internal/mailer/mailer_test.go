package mailer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Email
	err  error
}

func (s *recordingSender) Send(ctx context.Context, email Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	s.sent = append(s.sent, email)
	return s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcher_SendConfirmation(t *testing.T) {
	sender := &recordingSender{}
	d, err := NewDispatcher(sender, "http://localhost:8080/", discardLogger())
	require.NoError(t, err)

	d.SendConfirmation(context.Background(), "alice", "alice@example.com", "tok.en", time.Hour)
	d.Wait()

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, "alice", msg.ToName)
	assert.Equal(t, "Confirm your email", msg.Subject)
	assert.Contains(t, msg.HTML, "http://localhost:8080/auth/email_confirmation/tok.en")
	assert.Contains(t, msg.HTML, "Hi alice,")
	assert.Contains(t, msg.HTML, "1 hour")
	assert.Contains(t, msg.Text, "http://localhost:8080/auth/email_confirmation/tok.en")
}

func TestDispatcher_SendPasswordReset(t *testing.T) {
	sender := &recordingSender{}
	d, err := NewDispatcher(sender, "https://contacts.example.com", discardLogger())
	require.NoError(t, err)

	d.SendPasswordReset(context.Background(), "bob", "bob@example.com", "abc", 90*time.Minute)
	d.Wait()

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "Reset your password", msg.Subject)
	assert.Contains(t, msg.HTML, "https://contacts.example.com/auth/set_new_password/abc")
	assert.Contains(t, msg.HTML, "90 minutes")
}

func TestDispatcher_EscapesUsername(t *testing.T) {
	sender := &recordingSender{}
	d, err := NewDispatcher(sender, "http://x", discardLogger())
	require.NoError(t, err)

	d.SendConfirmation(context.Background(), "<script>", "a@example.com", "t", time.Hour)
	d.Wait()

	require.Len(t, sender.sent, 1)
	assert.NotContains(t, sender.sent[0].HTML, "<script>")
	assert.Contains(t, sender.sent[0].HTML, "&lt;script&gt;")
}

func TestDispatcher_SurvivesCancelledRequest(t *testing.T) {
	sender := &recordingSender{}
	d, err := NewDispatcher(sender, "http://x", discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	d.SendConfirmation(ctx, "alice", "alice@example.com", "t", time.Hour)
	cancel()
	d.Wait()

	assert.Len(t, sender.sent, 1)
}

func TestDispatcher_SenderErrorIsSwallowed(t *testing.T) {
	sender := &recordingSender{err: errors.New("provider down")}
	d, err := NewDispatcher(sender, "http://x", discardLogger())
	require.NoError(t, err)

	d.SendPasswordReset(context.Background(), "alice", "alice@example.com", "t", time.Hour)
	d.Wait()

	assert.Len(t, sender.sent, 1)
}

func TestHumanDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{time.Hour, "1 hour"},
		{3 * time.Hour, "3 hours"},
		{time.Minute, "1 minute"},
		{15 * time.Minute, "15 minutes"},
		{0, "a limited time"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, humanDuration(tt.in), "humanDuration(%v)", tt.in)
	}
}

func TestLogSender(t *testing.T) {
	var buf strings.Builder
	s := NewLogSender(slog.New(slog.NewTextHandler(&buf, nil)))

	err := s.Send(context.Background(), Email{To: "a@example.com", Subject: "Hello", Text: "link"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "a@example.com")
	assert.Contains(t, buf.String(), "Hello")
}

func TestSendGridSender(t *testing.T) {
	s := NewSendGridSender("SG.test", "noreply@example.com", "Contacts")

	var got *mail.SGMailV3
	s.deliver = func(_ context.Context, msg *mail.SGMailV3) (int, error) {
		got = msg
		return 202, nil
	}

	err := s.Send(context.Background(), Email{
		To: "alice@example.com", ToName: "alice", Subject: "Confirm your email",
		HTML: "<p>hi</p>", Text: "hi",
	})
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "noreply@example.com", got.From.Address)
	assert.Equal(t, "Contacts", got.From.Name)
	assert.Equal(t, "Confirm your email", got.Subject)
	require.Len(t, got.Personalizations, 1)
	require.Len(t, got.Personalizations[0].To, 1)
	assert.Equal(t, "alice@example.com", got.Personalizations[0].To[0].Address)
	require.Len(t, got.Content, 2)
	assert.Equal(t, "text/plain", got.Content[0].Type)
	assert.Equal(t, "text/html", got.Content[1].Type)
}

func TestSendGridSender_Errors(t *testing.T) {
	s := NewSendGridSender("SG.test", "noreply@example.com", "Contacts")

	s.deliver = func(context.Context, *mail.SGMailV3) (int, error) { return 401, nil }
	err := s.Send(context.Background(), Email{To: "a@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	s.deliver = func(context.Context, *mail.SGMailV3) (int, error) { return 0, errors.New("dial tcp") }
	err = s.Send(context.Background(), Email{To: "a@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial tcp")
}
