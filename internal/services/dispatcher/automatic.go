package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/cache"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/ledger"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/clock"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/metrics"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/models"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/reminder"
)

// RunAutomatic выполняет плановый обход: классифицирует всех пользователей с пробным
// периодом или подпиской и отправляет напоминания, которых ещё не было в текущем цикле.
//
// Одновременно работает только один обход; второй получает ErrSweepInProgress.
// Ошибки отдельных пользователей учитываются в отчёте и не прерывают обход.
func (s *Service) RunAutomatic(ctx context.Context) (models.SweepReport, error) {
	const op = "dispatcher.RunAutomatic"
	log := s.log.With(sl.Op(op))

	token, ok, err := s.sweeps.AcquireLock(ctx, cache.SweepLockKey, s.opts.SweepLockTTL)
	if err != nil {
		return models.SweepReport{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return models.SweepReport{}, ErrSweepInProgress
	}
	defer func() {
		if err := s.sweeps.ReleaseLock(context.WithoutCancel(ctx), cache.SweepLockKey, token); err != nil {
			log.Warn("failed to release sweep lock", sl.Err(err))
		}
	}()

	today := s.clock.Today()
	report := models.SweepReport{
		StartedAt: s.clock.Now(),
		Today:     today.String(),
		Errors:    []models.DispatchError{},
	}
	log.Info("sweep started", slog.String("today", report.Today))

	users, err := s.users.ListUsers(ctx, models.UserFilter{
		Statuses:      []models.SubscriptionStatus{models.StatusTrial, models.StatusActive},
		ExcludeAdmins: true,
	})
	if err != nil {
		return models.SweepReport{}, fmt.Errorf("%s: %w", op, err)
	}

	dayStart := clock.StartOfDay(today, s.clock.Location())
	for _, u := range users {
		if ctx.Err() != nil {
			report.Aborted = true
			log.Warn("sweep aborted", sl.Err(ctx.Err()))
			break
		}
		report.Scanned++
		s.sweepUser(ctx, u, today, dayStart, &report)
	}

	report.FinishedAt = s.clock.Now()
	s.metrics.ObserveSweep(report.StartedAt, report.FinishedAt)
	if err := s.sweeps.SaveSweepReport(context.WithoutCancel(ctx), report); err != nil {
		log.Error("failed to save sweep report", sl.Err(err))
	}

	log.Info("sweep finished",
		slog.Int("scanned", report.Scanned),
		slog.Int("eligible", report.Eligible),
		slog.Int("sent", report.Sent),
		slog.Int("failed", report.Failed),
		slog.Int("skipped", report.Skipped),
		slog.Int("malformed", report.Malformed),
		slog.Int("ledger_errors", report.LedgerErrors),
		slog.Duration("took", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

func (s *Service) sweepUser(ctx context.Context, u models.User, today civil.Date, dayStart time.Time, report *models.SweepReport) {
	log := s.log.With(slog.String("user_uid", u.UUID))

	cls, ok, err := s.classifier.Classify(u, today)
	if err != nil {
		if errors.Is(err, reminder.ErrMalformedDate) {
			report.Malformed++
			s.metrics.ObserveSkip(metrics.SkipMalformed)
			log.Warn("skipping user with malformed expiry date", sl.Err(err))
			return
		}
		log.Error("failed to classify user", sl.Err(err))
		return
	}
	if !ok {
		return
	}
	report.Eligible++

	var cycleStart time.Time
	if u.CycleStartedAt != nil {
		cycleStart = *u.CycleStartedAt
	}
	verdict, err := s.ledger.Check(ctx, ledger.Key{
		Email:          u.Email,
		Bucket:         cls.Bucket,
		CycleStart:     cycleStart,
		ExpiryDate:     cls.ExpiryDate,
		DaysDifference: cls.DaysDifference,
	}, dayStart)
	if err != nil {
		report.LedgerErrors++
		s.metrics.ObserveSkip(metrics.SkipLedgerError)
		log.Error("ledger check failed, user skipped", sl.Err(err))
		return
	}
	switch {
	case verdict.Sent:
		report.Skipped++
		s.metrics.ObserveSkip(metrics.SkipAlreadySent)
		return
	case verdict.AttemptedToday:
		report.Skipped++
		s.metrics.ObserveSkip(metrics.SkipFailedToday)
		return
	}

	out := s.deliver(ctx, target{
		user:           u,
		bucket:         cls.Bucket,
		daysDifference: cls.DaysDifference,
		expiry:         cls.ExpiryDate,
		sentBy:         models.SentByAutomatic,
	})
	if out.Success() {
		report.Sent++
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

// LastSweep возвращает отчёт о последнем обходе. false, если обходов не было.
func (s *Service) LastSweep(ctx context.Context) (*models.SweepReport, bool, error) {
	const op = "dispatcher.LastSweep"
	report, found, err := s.sweeps.LastSweepReport(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	return report, found, nil
}
