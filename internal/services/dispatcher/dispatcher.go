// Package dispatcher рассылает напоминания о жизненном цикле подписки:
// плановым обходом, вручную одному пользователю и вручную списку пользователей.
//
// Каждая попытка отправки записывается в журнал ровно один раз, после того как
// почтовый транспорт вернул результат. Статус подписки пользователя рассылка не меняет.
package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/ledger"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/clock"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/mailer"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/metrics"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/models"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/reminder"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/templates"
)

var (
	// ErrSweepInProgress другой обход уже держит блокировку.
	ErrSweepInProgress = errors.New("sweep already in progress")
	// ErrUserNotFound пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
)

// UserRepository источник пользователей.
type UserRepository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, userUIDs []string) ([]models.User, error)
	ListUsers(ctx context.Context, f models.UserFilter) ([]models.User, error)
}

// Ledger журнал отправок.
type Ledger interface {
	Check(ctx context.Context, key ledger.Key, dayStart time.Time) (ledger.Verdict, error)
	Append(ctx context.Context, rec models.DispatchRecord) (models.DispatchRecord, error)
	List(ctx context.Context, f models.DispatchListFilter) ([]models.DispatchRecord, error)
}

// Renderer рендерит письмо корзины.
type Renderer interface {
	Render(b reminder.Bucket, v templates.Variables) (templates.Message, error)
}

// EventPublisher публикует события отправки.
type EventPublisher interface {
	PublishDispatch(ctx context.Context, rec models.DispatchRecord) error
}

// SweepStore блокировка обхода и отчёт о последнем обходе.
type SweepStore interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
	SaveSweepReport(ctx context.Context, report models.SweepReport) error
	LastSweepReport(ctx context.Context) (*models.SweepReport, bool, error)
}

// Limiter ограничивает скорость массовой рассылки. *rate.Limiter подходит.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Deps зависимости сервиса. Publisher необязателен.
type Deps struct {
	Users     UserRepository
	Ledger    Ledger
	Renderer  Renderer
	Mailer    mailer.Mailer
	Publisher EventPublisher
	Sweeps    SweepStore
	Limiter   Limiter
	Clock     clock.Clock
	Metrics   *metrics.Collector
}

// Options параметры рассылки.
type Options struct {
	MailTimeout  time.Duration
	SweepLockTTL time.Duration
	RenewalLink  string
}

// Service сервис рассылки напоминаний.
type Service struct {
	users      UserRepository
	ledger     Ledger
	renderer   Renderer
	mailer     mailer.Mailer
	publisher  EventPublisher
	sweeps     SweepStore
	limiter    Limiter
	clock      clock.Clock
	classifier *reminder.Classifier
	metrics    *metrics.Collector
	opts       Options
	log        *slog.Logger
}

// New создаёт Service.
func New(deps Deps, opts Options, log *slog.Logger) *Service {
	if opts.MailTimeout <= 0 {
		opts.MailTimeout = 15 * time.Second
	}
	if opts.SweepLockTTL <= 0 {
		opts.SweepLockTTL = 30 * time.Minute
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.Noop()
	}
	return &Service{
		users:      deps.Users,
		ledger:     deps.Ledger,
		renderer:   deps.Renderer,
		mailer:     deps.Mailer,
		publisher:  deps.Publisher,
		sweeps:     deps.Sweeps,
		limiter:    deps.Limiter,
		clock:      deps.Clock,
		classifier: reminder.NewClassifier(deps.Clock.Location()),
		metrics:    m,
		opts:       opts,
		log:        log,
	}
}

// target получатель одной попытки отправки.
type target struct {
	user           models.User
	bucket         reminder.Bucket
	daysDifference int
	expiry         civil.Date
	sentBy         models.SentBy
}

// Outcome итог одной попытки.
type Outcome struct {
	Record models.DispatchRecord `json:"record"`
	// Recorded false, если письмо ушло (или не ушло), но запись в журнал не удалась.
	Recorded bool `json:"recorded"`
}

// Success сообщает, принял ли письмо почтовый транспорт.
func (o Outcome) Success() bool {
	return o.Record.Status == models.DispatchSent
}

// deliver рендерит и отправляет одно письмо, затем записывает попытку в журнал.
// Запись и публикация события идут после завершения отправки и не прерываются отменой ctx.
func (s *Service) deliver(ctx context.Context, t target) Outcome {
	const op = "dispatcher.deliver"
	log := s.log.With(
		sl.Op(op),
		slog.String("user_uid", t.user.UUID),
		slog.String("bucket", string(t.bucket)),
		slog.String("sent_by", string(t.sentBy)),
	)

	result := s.send(ctx, t)

	rec := models.DispatchRecord{
		UserUID:              t.user.UUID,
		RecipientEmail:       t.user.Email,
		BucketType:           string(t.bucket),
		DaysDifference:       t.daysDifference,
		SentBy:               t.sentBy,
		Status:               models.DispatchSent,
		SubscriptionPlanType: string(t.user.SubscriptionStatus),
		CreatedAt:            s.clock.Now(),
	}
	if !result.Success {
		rec.Status = models.DispatchFailed
		rec.ErrorMessage = result.ErrorMessage
	}
	if t.expiry.IsValid() {
		rec.ExpiryDate = t.expiry.String()
	}
	s.metrics.ObserveDispatch(string(t.sentBy), string(t.bucket), string(rec.Status))

	if result.Success {
		log.Info("reminder sent")
	} else {
		log.Warn("reminder failed", slog.String("reason", result.ErrorMessage))
	}

	detached := context.WithoutCancel(ctx)
	saved, err := s.ledger.Append(detached, rec)
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateDispatch) {
			log.Warn("dispatch already recorded by a concurrent run", sl.Err(err))
		} else {
			log.Error("failed to record dispatch", sl.Err(err))
		}
		return Outcome{Record: rec, Recorded: false}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishDispatch(detached, saved); err != nil {
			log.Warn("failed to publish dispatch event", sl.Err(err))
		}
	}
	return Outcome{Record: saved, Recorded: true}
}

func (s *Service) send(ctx context.Context, t target) mailer.Result {
	msg, err := s.renderer.Render(t.bucket, s.variables(t.user, t.expiry))
	if err != nil {
		return mailer.Result{ErrorMessage: "render: " + err.Error()}
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.opts.MailTimeout)
	defer cancel()
	return s.mailer.Send(sendCtx, mailer.Email{
		To:       t.user.Email,
		ToName:   t.user.DisplayName,
		Subject:  msg.Subject,
		HTMLBody: msg.HTMLBody,
	})
}

func (s *Service) variables(u models.User, expiry civil.Date) templates.Variables {
	v := templates.Variables{
		UserName:    u.DisplayName,
		PlanName:    u.PlanName,
		RenewalLink: s.opts.RenewalLink,
	}
	if expiry.IsValid() {
		v.ExpiryDate = clock.FormatBR(expiry)
	}
	return v
}

// manualTarget собирает получателя ручной отправки: корзина задана явно, классификации нет.
func (s *Service) manualTarget(u models.User, bucket reminder.Bucket, today civil.Date) target {
	t := target{
		user:           u,
		bucket:         bucket,
		daysDifference: bucket.NominalOffset(),
		sentBy:         models.SentByManual,
	}
	if expiry, ok := s.classifier.Expiry(u); ok {
		t.expiry = expiry
		t.daysDifference = clock.DaysUntil(expiry, today)
	}
	return t
}
