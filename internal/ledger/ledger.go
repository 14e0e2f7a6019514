// Package ledger отвечает на вопрос «отправлялось ли уже это напоминание в текущем цикле»
// поверх журнала отправок email_logs. Журнал только дополняется: одна запись на попытку.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/models"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/reminder"
)

// ErrDuplicateDispatch автоматическое напоминание для этой корзины и даты окончания уже записано.
var ErrDuplicateDispatch = errors.New("dispatch already recorded")

// Store хранилище журнала отправок.
type Store interface {
	QueryDispatches(ctx context.Context, q models.DispatchQuery) ([]models.DispatchRecord, error)
	AppendDispatch(ctx context.Context, rec models.DispatchRecord) (models.DispatchRecord, error)
	ListDispatches(ctx context.Context, f models.DispatchListFilter) ([]models.DispatchRecord, error)
}

// Key определяет цикл, в котором напоминание считается отправленным.
type Key struct {
	Email          string
	Bucket         reminder.Bucket
	CycleStart     time.Time
	// ExpiryDate нулевая, если дата окончания неизвестна.
	ExpiryDate     civil.Date
	// DaysDifference различает повторы monthly_after_30 внутри одного цикла.
	DaysDifference int
}

func (k Key) query() models.DispatchQuery {
	q := models.DispatchQuery{
		RecipientEmail:  k.Email,
		BucketType:      string(k.Bucket),
		SinceCycleStart: k.CycleStart,
	}
	if k.ExpiryDate.IsValid() {
		q.ExpiryDate = k.ExpiryDate.String()
	}
	if k.Bucket == reminder.MonthlyAfterThirty {
		d := k.DaysDifference
		q.DaysDifference = &d
	}
	return q
}

// Verdict результат проверки журнала.
type Verdict struct {
	// Sent в цикле есть успешная отправка любым способом.
	Sent bool
	// AttemptedToday с начала текущего бизнес-дня уже была неудачная попытка.
	AttemptedToday bool
}

// Skip сообщает, что отправлять не нужно.
func (v Verdict) Skip() bool {
	return v.Sent || v.AttemptedToday
}

// Ledger проверки идемпотентности и запись попыток.
type Ledger struct {
	store Store
}

// New создаёт Ledger поверх store.
func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// Check возвращает, было ли напоминание key отправлено в цикле и была ли сегодня
// неудачная попытка. dayStart начало текущего бизнес-дня.
func (l *Ledger) Check(ctx context.Context, key Key, dayStart time.Time) (Verdict, error) {
	const op = "ledger.Check"

	records, err := l.store.QueryDispatches(ctx, key.query())
	if err != nil {
		return Verdict{}, fmt.Errorf("%s: %w", op, err)
	}

	var v Verdict
	for _, rec := range records {
		switch rec.Status {
		case models.DispatchSent:
			v.Sent = true
		case models.DispatchFailed:
			if !rec.CreatedAt.Before(dayStart) {
				v.AttemptedToday = true
			}
		}
	}
	return v, nil
}

// AlreadySent сообщает, есть ли в цикле успешная отправка.
func (l *Ledger) AlreadySent(ctx context.Context, key Key) (bool, error) {
	v, err := l.Check(ctx, key, time.Time{})
	if err != nil {
		return false, err
	}
	return v.Sent, nil
}

// Append записывает попытку отправки. Идентификатор назначается, если не задан.
func (l *Ledger) Append(ctx context.Context, rec models.DispatchRecord) (models.DispatchRecord, error) {
	const op = "ledger.Append"

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	saved, err := l.store.AppendDispatch(ctx, rec)
	if err != nil {
		return rec, fmt.Errorf("%s: %w", op, err)
	}
	return saved, nil
}

// List возвращает последние записи журнала для просмотра администратором.
func (l *Ledger) List(ctx context.Context, f models.DispatchListFilter) ([]models.DispatchRecord, error) {
	const op = "ledger.List"

	if f.Limit <= 0 || f.Limit > MaxListLimit {
		f.Limit = DefaultListLimit
	}
	records, err := l.store.ListDispatches(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return records, nil
}

const (
	// DefaultListLimit размер выдачи по умолчанию.
	DefaultListLimit = 50
	// MaxListLimit верхняя граница размера выдачи.
	MaxListLimit = 500
)
