package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/models"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/reminder"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/storage/repository"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/templates"
)

// SendManual отправляет напоминание bucket одному пользователю по запросу оператора.
// Классификация и проверка журнала не выполняются: повторная ручная отправка разрешена.
func (s *Service) SendManual(ctx context.Context, userUID string, bucket reminder.Bucket) (Outcome, error) {
	const op = "dispatcher.SendManual"

	if !bucket.Valid() {
		return Outcome{}, fmt.Errorf("%s: %w: %q", op, reminder.ErrUnknownBucket, bucket)
	}
	u, err := s.getUser(ctx, userUID)
	if err != nil {
		return Outcome{}, fmt.Errorf("%s: %w", op, err)
	}

	return s.deliver(ctx, s.manualTarget(*u, bucket, s.clock.Today())), nil
}

// SendBulk отправляет напоминание bucket списку пользователей последовательно,
// с ограничением скорости между письмами.
//
// Ошибка одного пользователя не прерывает пакет. Отмена ctx останавливает рассылку
// между пользователями, отчёт помечается Aborted. Повторяющиеся идентификаторы отправляются один раз.
func (s *Service) SendBulk(ctx context.Context, userUIDs []string, bucket reminder.Bucket) (models.BulkReport, error) {
	const op = "dispatcher.SendBulk"
	log := s.log.With(sl.Op(op), slog.String("bucket", string(bucket)))

	if !bucket.Valid() {
		return models.BulkReport{}, fmt.Errorf("%s: %w: %q", op, reminder.ErrUnknownBucket, bucket)
	}

	ids := uniqueIDs(userUIDs)
	report := models.BulkReport{Bucket: string(bucket), Errors: []models.DispatchError{}}
	if len(ids) == 0 {
		return report, nil
	}

	users, err := s.users.GetUsersByIDs(ctx, ids)
	if err != nil {
		return models.BulkReport{}, fmt.Errorf("%s: %w", op, err)
	}
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.UUID] = u
	}

	today := s.clock.Today()
	log.Info("bulk send started", slog.Int("users", len(ids)))
	for _, id := range ids {
		if ctx.Err() != nil {
			report.Aborted = true
			break
		}
		if err := s.limiter.Wait(ctx); err != nil {
			report.Aborted = true
			break
		}

		u, ok := byID[id]
		if !ok {
			report.Failed++
			report.Errors = append(report.Errors, models.DispatchError{UserUID: id, Error: ErrUserNotFound.Error()})
			continue
		}

		out := s.deliver(ctx, s.manualTarget(u, bucket, today))
		if out.Success() {
			report.Succeeded++
		} else {
			report.Failed++
			report.Errors = append(report.Errors, models.DispatchError{
				UserUID: u.UUID,
				Email:   u.Email,
				Error:   out.Record.ErrorMessage,
			})
		}
		if !out.Recorded {
			report.Unrecorded++
		}
	}

	log.Info("bulk send finished",
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
		slog.Bool("aborted", report.Aborted),
	)
	return report, nil
}

// Preview рендерит письмо bucket для пользователя без отправки.
func (s *Service) Preview(ctx context.Context, userUID string, bucket reminder.Bucket) (templates.Message, error) {
	const op = "dispatcher.Preview"

	if !bucket.Valid() {
		return templates.Message{}, fmt.Errorf("%s: %w: %q", op, reminder.ErrUnknownBucket, bucket)
	}
	u, err := s.getUser(ctx, userUID)
	if err != nil {
		return templates.Message{}, fmt.Errorf("%s: %w", op, err)
	}
	t := s.manualTarget(*u, bucket, s.clock.Today())
	msg, err := s.renderer.Render(bucket, s.variables(t.user, t.expiry))
	if err != nil {
		return templates.Message{}, fmt.Errorf("%s: %w", op, err)
	}
	return msg, nil
}

// ListLogs возвращает последние записи журнала отправок.
func (s *Service) ListLogs(ctx context.Context, f models.DispatchListFilter) ([]models.DispatchRecord, error) {
	const op = "dispatcher.ListLogs"
	records, err := s.ledger.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return records, nil
}

func (s *Service) getUser(ctx context.Context, userUID string) (*models.User, error) {
	u, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
