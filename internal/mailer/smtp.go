package mailer

import (
	"context"
	"log/slog"
	"mime"
	"net/mail"
	"strings"
	"time"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/smtp"
)

// SMTP отправляет письма через SMTP-транспорт.
type SMTP struct {
	transport smtp.TransportInterface
	fromName  string
	log       *slog.Logger
	now       func() time.Time
}

// NewSMTP создает новый экземпляр SMTP.
func NewSMTP(transport smtp.TransportInterface, fromName string, log *slog.Logger) *SMTP {
	return &SMTP{
		transport: transport,
		fromName:  fromName,
		log:       log,
		now:       time.Now,
	}
}

// Send отправляет письмо. Сеанс SMTP выполняется в отдельной горутине, чтобы
// отмена ctx прерывала ожидание даже на зависшем соединении.
func (s *SMTP) Send(ctx context.Context, e Email) Result {
	done := make(chan Result, 1)
	go func() {
		done <- s.send(ctx, e)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		s.log.Error("smtp send timed out", slog.String("to", e.To), sl.Err(ctx.Err()))
		return failure("smtp: %v", ctx.Err())
	}
}

func (s *SMTP) compose(e Email) string {
	from := mail.Address{Name: s.fromName, Address: s.transport.GetSMTPUser()}
	to := mail.Address{Name: e.ToName, Address: e.To}
	return strings.Join([]string{
		"From: " + from.String(),
		"To: " + to.String(),
		"Subject: " + mime.QEncoding.Encode("utf-8", e.Subject),
		"Date: " + s.now().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=\"UTF-8\"",
		"",
		e.HTMLBody,
	}, "\r\n")
}

func (s *SMTP) send(ctx context.Context, e Email) Result {
	msg := s.compose(e)

	client, err := s.transport.Connect(ctx)
	if err != nil {
		s.log.Error("Failed to connect to SMTP server", sl.Err(err))
		return failure("smtp connect: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("Failed to set MAIL FROM", slog.String("from", s.transport.GetSMTPUser()), sl.Err(err))
		return failure("smtp MAIL FROM: %v", err)
	}

	if err := client.Rcpt(e.To); err != nil {
		s.log.Error("Failed to set RCPT TO", slog.String("recipient", e.To), sl.Err(err))
		return failure("smtp RCPT TO: %v", err)
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("Failed to get Data writer", sl.Err(err))
		return failure("smtp DATA: %v", err)
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("Failed to write email body", sl.Err(err))
		return failure("smtp write: %v", err)
	}

	if err = wc.Close(); err != nil {
		s.log.Error("Failed to close Data writer", sl.Err(err))
		return failure("smtp close data: %v", err)
	}

	if err = client.Quit(); err != nil {
		s.log.Warn("Failed to quit SMTP client", sl.Err(err))
	}

	s.log.Debug("email sent", slog.String("to", e.To))
	return Result{Success: true}
}
