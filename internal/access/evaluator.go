// Package access вычисляет право пользователя пользоваться продуктом на заданную дату.
//
// Решение пересчитывается при каждом обращении и не кешируется. Вычисление чистое:
// результат зависит только от пользователя и календарной даты today.
package access

import (
	"time"

	"cloud.google.com/go/civil"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/clock"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/models"
)

// ReasonCode причина решения о доступе.
type ReasonCode string

const (
	ReasonAdmin               ReasonCode = "admin"
	ReasonTrialActive         ReasonCode = "trial_active"
	ReasonSubscriptionActive  ReasonCode = "subscription_active"
	ReasonTrialExpired        ReasonCode = "trial_expired"
	ReasonSubscriptionExpired ReasonCode = "subscription_expired"
	ReasonNoPlan              ReasonCode = "no_plan"
)

// AllReasons возвращает все коды причин.
func AllReasons() []ReasonCode {
	return []ReasonCode{
		ReasonAdmin,
		ReasonTrialActive,
		ReasonSubscriptionActive,
		ReasonTrialExpired,
		ReasonSubscriptionExpired,
		ReasonNoPlan,
	}
}

// Granted сообщает, открывает ли причина доступ.
func (r ReasonCode) Granted() bool {
	switch r {
	case ReasonAdmin, ReasonTrialActive, ReasonSubscriptionActive:
		return true
	case ReasonTrialExpired, ReasonSubscriptionExpired, ReasonNoPlan:
		return false
	default:
		return false
	}
}

// Decision решение о доступе.
type Decision struct {
	HasAccess bool       `json:"has_access"`
	Reason    ReasonCode `json:"reason_code"`
}

func decide(reason ReasonCode) Decision {
	return Decision{HasAccess: reason.Granted(), Reason: reason}
}

// Evaluator вычисляет решения о доступе. Пояс loc нужен только для разбора
// дат, сохранённых как метки времени.
type Evaluator struct {
	loc *time.Location
}

// NewEvaluator создаёт Evaluator для бизнес-пояса loc.
func NewEvaluator(loc *time.Location) *Evaluator {
	return &Evaluator{loc: loc}
}

// Evaluate возвращает решение о доступе пользователя u на дату today.
//
// Дата окончания включительна. Отсутствующая или неразбираемая дата закрывает доступ.
// Истёкшая оплаченная подписка никогда не возвращает пользователя к пробному периоду.
func (e *Evaluator) Evaluate(u models.User, today civil.Date) Decision {
	if u.IsAdmin() {
		return decide(ReasonAdmin)
	}

	switch u.SubscriptionStatus {
	case models.StatusTrial:
		if e.coversToday(u.TrialEndsAt, today) {
			return decide(ReasonTrialActive)
		}
		return decide(ReasonTrialExpired)
	case models.StatusActive:
		if e.coversToday(u.SubscriptionEndDate, today) {
			return decide(ReasonSubscriptionActive)
		}
		return decide(ReasonSubscriptionExpired)
	case models.StatusNone:
		return decide(ReasonNoPlan)
	default:
		return decide(ReasonNoPlan)
	}
}

func (e *Evaluator) coversToday(raw string, today civil.Date) bool {
	end, err := clock.ParseDate(raw, e.loc)
	if err != nil {
		return false
	}
	return !end.Before(today)
}
