// Package mailer отправляет HTML-письма через SMTP или SendGrid.
//
// Ошибка доставки возвращается значением Result, а не error: вызывающий
// записывает её в журнал и продолжает работу.
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/config"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/smtp"
)

// Email письмо одному получателю.
type Email struct {
	To       string
	ToName   string
	Subject  string
	HTMLBody string
}

// Result итог отправки.
type Result struct {
	Success      bool
	ErrorMessage string
}

func failure(format string, args ...any) Result {
	return Result{Success: false, ErrorMessage: fmt.Sprintf(format, args...)}
}

// Mailer отправляет письмо. Реализации уважают дедлайн ctx.
type Mailer interface {
	Send(ctx context.Context, e Email) Result
}

// New выбирает реализацию по cfg.MailProvider.
func New(cfg config.Mail, log *slog.Logger) (Mailer, error) {
	switch cfg.MailProvider {
	case "sendgrid":
		if cfg.SendGridAPIKey == "" {
			return nil, fmt.Errorf("mailer.New: sendgrid_api_key is empty")
		}
		return NewSendGrid(cfg.SendGridAPIKey, cfg.FromAddress, cfg.FromName, log), nil
	case "smtp", "":
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("mailer.New: smtp_host is empty")
		}
		return NewSMTP(smtp.NewTransport(cfg, log), cfg.FromName, log), nil
	default:
		return nil, fmt.Errorf("mailer.New: unknown provider %q", cfg.MailProvider)
	}
}
