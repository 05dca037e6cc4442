package mailer

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// SendGridSender delivers email through the SendGrid v3 API.
type SendGridSender struct {
	from    *mail.Email
	deliver func(ctx context.Context, msg *mail.SGMailV3) (int, error)
}

func NewSendGridSender(apiKey, fromAddress, fromName string) *SendGridSender {
	client := sendgrid.NewSendClient(apiKey)
	return &SendGridSender{
		from: mail.NewEmail(fromName, fromAddress),
		deliver: func(ctx context.Context, msg *mail.SGMailV3) (int, error) {
			resp, err := client.SendWithContext(ctx, msg)
			if err != nil {
				return 0, err
			}
			return resp.StatusCode, nil
		},
	}
}

func (s *SendGridSender) Send(ctx context.Context, email Email) error {
	status, err := s.deliver(ctx, s.buildMessage(email))
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if status >= 300 {
		return fmt.Errorf("sendgrid: unexpected status %d", status)
	}
	return nil
}

func (s *SendGridSender) buildMessage(email Email) *mail.SGMailV3 {
	to := mail.NewEmail(email.ToName, email.To)
	return mail.NewSingleEmail(s.from, email.Subject, to, email.Text, email.HTML)
}
