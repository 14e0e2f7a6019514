// Package notifier пересылает администраторам в Slack сообщения о неудачных отправках напоминаний.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/models"
)

// Poster отправляет текст в канал администраторов.
type Poster interface {
	Post(ctx context.Context, text string) error
}

// Service обработчик событий очереди reminders.failed.
type Service struct {
	poster  Poster
	timeout time.Duration
	log     *slog.Logger
}

// New создаёт Service.
func New(poster Poster, timeout time.Duration, log *slog.Logger) *Service {
	return &Service{poster: poster, timeout: timeout, log: log}
}

// HandleFailed обрабатывает тело сообщения очереди.
// Неразбираемые сообщения и события не со статусом failed подтверждаются без оповещения.
// Ошибка Slack возвращается, чтобы сообщение вернулось в очередь.
func (s *Service) HandleFailed(body []byte) error {
	const op = "notifier.HandleFailed"
	log := s.log.With(sl.Op(op))

	var rec models.DispatchRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		log.Error("failed to unmarshal dispatch event, dropped", sl.Err(err))
		return nil
	}
	if rec.Status != models.DispatchFailed {
		log.Debug("ignoring non-failed event", slog.String("status", string(rec.Status)))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.poster.Post(ctx, FormatAlert(rec)); err != nil {
		log.Warn("failed to post alert", slog.String("record_id", rec.ID), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("alert posted", slog.String("record_id", rec.ID))
	return nil
}

// FormatAlert текст оповещения о неудачной отправке.
func FormatAlert(rec models.DispatchRecord) string {
	var b strings.Builder
	b.WriteString(":warning: Reminder delivery failed\n")
	fmt.Fprintf(&b, "Recipient: %s\n", rec.RecipientEmail)
	fmt.Fprintf(&b, "Bucket: %s (D=%d)\n", rec.BucketType, rec.DaysDifference)
	fmt.Fprintf(&b, "Mode: %s\n", rec.SentBy)
	if rec.ExpiryDate != "" {
		fmt.Fprintf(&b, "Expiry: %s\n", rec.ExpiryDate)
	}
	fmt.Fprintf(&b, "Error: %s\n", rec.ErrorMessage)
	fmt.Fprintf(&b, "Record: %s", rec.ID)
	return b.String()
}
