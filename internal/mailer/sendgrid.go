package mailer

import (
	"context"
	"log/slog"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/sl"
)

// SendGrid отправляет письма через API SendGrid.
type SendGrid struct {
	client *sendgrid.Client
	from   *mail.Email
	log    *slog.Logger
}

// NewSendGrid создаёт клиента SendGrid.
func NewSendGrid(apiKey, fromAddress, fromName string, log *slog.Logger) *SendGrid {
	return &SendGrid{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromAddress),
		log:    log,
	}
}

// withBaseURL направляет запросы на другой хост, используется в тестах.
func (s *SendGrid) withBaseURL(baseURL string) *SendGrid {
	s.client.Request.BaseURL = baseURL + "/v3/mail/send"
	return s
}

// Send отправляет письмо. Ответ со статусом 4xx/5xx считается неудачей.
func (s *SendGrid) Send(ctx context.Context, e Email) Result {
	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail(e.ToName, e.To))

	message := mail.NewV3Mail()
	message.SetFrom(s.from)
	message.Subject = e.Subject
	message.AddPersonalizations(p)
	message.AddContent(mail.NewContent("text/html", e.HTMLBody))

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		s.log.Error("sendgrid request failed", slog.String("to", e.To), sl.Err(err))
		return failure("sendgrid: %v", err)
	}
	if resp.StatusCode >= 400 {
		s.log.Error("sendgrid rejected message",
			slog.String("to", e.To),
			slog.Int("status", resp.StatusCode),
			slog.String("body", resp.Body),
		)
		return failure("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return Result{Success: true}
}
