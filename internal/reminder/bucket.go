// Package reminder относит пользователя к корзине напоминаний по числу дней
// до окончания пробного периода или подписки.
package reminder

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/clock"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/models"
)

var (
	// ErrMalformedDate дата окончания не разбирается.
	ErrMalformedDate = errors.New("malformed expiry date")
	// ErrUnknownBucket неизвестное имя корзины.
	ErrUnknownBucket = errors.New("unknown reminder bucket")
)

// Bucket корзина напоминания.
type Bucket string

const (
	ThreeDaysBefore    Bucket = "3_days_before"
	TwoDaysBefore      Bucket = "2_days_before"
	OneDayBefore       Bucket = "1_day_before"
	ExpiredToday       Bucket = "expired_today"
	OneDayAfter        Bucket = "1_day_after"
	FiveDaysAfter      Bucket = "5_days_after"
	FifteenDaysAfter   Bucket = "15_days_after"
	ThirtyDaysAfter    Bucket = "30_days_after"
	MonthlyAfterThirty Bucket = "monthly_after_30"
)

// All возвращает все корзины в порядке жизненного цикла.
func All() []Bucket {
	return []Bucket{
		ThreeDaysBefore,
		TwoDaysBefore,
		OneDayBefore,
		ExpiredToday,
		OneDayAfter,
		FiveDaysAfter,
		FifteenDaysAfter,
		ThirtyDaysAfter,
		MonthlyAfterThirty,
	}
}

// Parse проверяет имя корзины.
func Parse(s string) (Bucket, error) {
	b := Bucket(s)
	if !b.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownBucket, s)
	}
	return b, nil
}

// Valid сообщает, входит ли b в закрытый набор корзин.
func (b Bucket) Valid() bool {
	switch b {
	case ThreeDaysBefore, TwoDaysBefore, OneDayBefore, ExpiredToday,
		OneDayAfter, FiveDaysAfter, FifteenDaysAfter, ThirtyDaysAfter, MonthlyAfterThirty:
		return true
	default:
		return false
	}
}

// BeforeExpiry сообщает, относится ли корзина к предупреждению до окончания (включая день окончания).
func (b Bucket) BeforeExpiry() bool {
	switch b {
	case ThreeDaysBefore, TwoDaysBefore, OneDayBefore, ExpiredToday:
		return true
	case OneDayAfter, FiveDaysAfter, FifteenDaysAfter, ThirtyDaysAfter, MonthlyAfterThirty:
		return false
	default:
		return false
	}
}

// NominalOffset возвращает D, на котором срабатывает корзина. Для monthly_after_30
// возвращается первое срабатывание, -60.
func (b Bucket) NominalOffset() int {
	switch b {
	case ThreeDaysBefore:
		return 3
	case TwoDaysBefore:
		return 2
	case OneDayBefore:
		return 1
	case ExpiredToday:
		return 0
	case OneDayAfter:
		return -1
	case FiveDaysAfter:
		return -5
	case FifteenDaysAfter:
		return -15
	case ThirtyDaysAfter:
		return -30
	case MonthlyAfterThirty:
		return -60
	default:
		return 0
	}
}

// ForOffset возвращает корзину для смещения d = дни до окончания.
// Условия взаимоисключающие; false означает «нет корзины».
func ForOffset(d int) (Bucket, bool) {
	switch {
	case d == 3:
		return ThreeDaysBefore, true
	case d == 2:
		return TwoDaysBefore, true
	case d == 1:
		return OneDayBefore, true
	case d == 0:
		return ExpiredToday, true
	case d == -1:
		return OneDayAfter, true
	case d == -5:
		return FiveDaysAfter, true
	case d == -15:
		return FifteenDaysAfter, true
	case d == -30:
		return ThirtyDaysAfter, true
	case d < -30 && d%30 == 0:
		return MonthlyAfterThirty, true
	default:
		return "", false
	}
}

// Classification результат классификации пользователя.
type Classification struct {
	Bucket         Bucket
	DaysDifference int
	ExpiryDate     civil.Date
}

// Classifier относит пользователей к корзинам.
type Classifier struct {
	loc *time.Location
}

// NewClassifier создаёт Classifier для бизнес-пояса loc.
func NewClassifier(loc *time.Location) *Classifier {
	return &Classifier{loc: loc}
}

// Classify возвращает корзину пользователя u на дату today.
//
// Администраторы, пользователи без плана и без даты окончания не участвуют: (_, false, nil).
// Неразбираемая дата окончания возвращает ErrMalformedDate; вызывающий логирует и пропускает пользователя.
func (c *Classifier) Classify(u models.User, today civil.Date) (Classification, bool, error) {
	if u.IsAdmin() {
		return Classification{}, false, nil
	}
	switch u.SubscriptionStatus {
	case models.StatusTrial, models.StatusActive:
	case models.StatusNone:
		return Classification{}, false, nil
	default:
		return Classification{}, false, nil
	}

	raw := u.ExpiryField()
	if raw == "" {
		return Classification{}, false, nil
	}
	expiry, err := clock.ParseDate(raw, c.loc)
	if err != nil {
		return Classification{}, false, fmt.Errorf("%w: %v", ErrMalformedDate, err)
	}

	d := clock.DaysUntil(expiry, today)
	bucket, ok := ForOffset(d)
	if !ok {
		return Classification{}, false, nil
	}
	return Classification{Bucket: bucket, DaysDifference: d, ExpiryDate: expiry}, true, nil
}

// Expiry возвращает разобранную дату окончания текущего статуса пользователя, если она есть.
func (c *Classifier) Expiry(u models.User) (civil.Date, bool) {
	raw := u.ExpiryField()
	if raw == "" {
		return civil.Date{}, false
	}
	d, err := clock.ParseDate(raw, c.loc)
	if err != nil {
		return civil.Date{}, false
	}
	return d, true
}
