// Package mailer renders and delivers the account emails (confirmation and
// password reset).
//
// Delivery is fire-and-forget: Dispatcher renders the message on the
// caller's goroutine, then hands it to a background goroutine that is
// detached from the request context. A failed send is logged and never
// reaches the caller, so registration or a reset request succeeds even when
// the email provider is down.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// sendTimeout bounds a single background delivery.
const sendTimeout = 30 * time.Second

// Email is a rendered message ready for delivery.
type Email struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a rendered email.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// LogSender writes emails to the log instead of delivering them. It is used
// when no email provider is configured, so links can still be copied out of
// the development log.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, email Email) error {
	s.logger.Info("email not delivered (no provider configured)",
		slog.String("to", email.To),
		slog.String("subject", email.Subject),
		slog.String("text", email.Text),
	)
	return nil
}

// Dispatcher builds account emails and sends them in the background.
type Dispatcher struct {
	sender    Sender
	templates *template.Template
	baseURL   string
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// NewDispatcher parses the embedded templates. baseURL is the public origin
// used to build links, e.g. "https://contacts.example.com".
func NewDispatcher(sender Sender, baseURL string, logger *slog.Logger) (*Dispatcher, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("mailer: parsing templates: %w", err)
	}
	return &Dispatcher{
		sender:    sender,
		templates: tmpl,
		baseURL:   strings.TrimRight(baseURL, "/"),
		logger:    logger,
	}, nil
}

type templateData struct {
	Username string
	Link     string
	ValidFor string
}

// SendConfirmation queues the email-confirmation message.
func (d *Dispatcher) SendConfirmation(ctx context.Context, username, email, token string, validFor time.Duration) {
	d.queue(ctx, "email_confirmation.html", "Confirm your email", username, email,
		d.link("/auth/email_confirmation/", token), validFor)
}

// SendPasswordReset queues the password-reset message. The link opens the
// form served by GET /auth/set_new_password/{token}.
func (d *Dispatcher) SendPasswordReset(ctx context.Context, username, email, token string, validFor time.Duration) {
	d.queue(ctx, "password_reset.html", "Reset your password", username, email,
		d.link("/auth/set_new_password/", token), validFor)
}

// Wait blocks until every queued email has been handed to the sender.
// Called on shutdown and by tests.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) link(path, token string) string {
	return d.baseURL + path + url.PathEscape(token)
}

func (d *Dispatcher) queue(ctx context.Context, tmpl, subject, username, to, link string, validFor time.Duration) {
	msg, err := d.render(tmpl, subject, username, to, link, validFor)
	if err != nil {
		d.logger.Error("rendering email failed",
			slog.String("template", tmpl),
			slog.String("error", err.Error()),
		)
		return
	}

	// The request may finish (and cancel its context) before delivery.
	bg := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		sendCtx, cancel := context.WithTimeout(bg, sendTimeout)
		defer cancel()

		if err := d.sender.Send(sendCtx, msg); err != nil {
			d.logger.Error("sending email failed",
				slog.String("to", msg.To),
				slog.String("subject", msg.Subject),
				slog.String("error", err.Error()),
			)
			return
		}
		d.logger.Debug("email sent", slog.String("to", msg.To), slog.String("subject", msg.Subject))
	}()
}

func (d *Dispatcher) render(tmpl, subject, username, to, link string, validFor time.Duration) (Email, error) {
	data := templateData{Username: username, Link: link, ValidFor: humanDuration(validFor)}

	var body bytes.Buffer
	if err := d.templates.ExecuteTemplate(&body, tmpl, data); err != nil {
		return Email{}, err
	}

	return Email{
		To:      to,
		ToName:  username,
		Subject: subject,
		HTML:    body.String(),
		Text:    fmt.Sprintf("Hi %s,\n\n%s: %s\n\nThe link is valid for %s.\n", username, subject, link, data.ValidFor),
	}, nil
}

// humanDuration renders 1h as "1 hour", 90m as "90 minutes".
func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "a limited time"
	case d%time.Hour == 0:
		if h := int(d / time.Hour); h != 1 {
			return fmt.Sprintf("%d hours", h)
		}
		return "1 hour"
	default:
		if m := int(d / time.Minute); m != 1 {
			return fmt.Sprintf("%d minutes", m)
		}
		return "1 minute"
	}
}
