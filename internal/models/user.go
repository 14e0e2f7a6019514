// Package models содержит доменную модель пользователя, записи журнала рассылок
// и отчёты о рассылках. Структуры используются в бизнес‑логике и при работе с хранилищем.
package models

import "time"

// Role роль пользователя.
type Role string

const (
	// RoleAdmin администратор: доступ всегда открыт, напоминания не отправляются.
	RoleAdmin Role = "admin"
	// RoleUser обычный пользователь.
	RoleUser Role = "user"
)

// SubscriptionStatus статус подписки пользователя.
type SubscriptionStatus string

const (
	// StatusNone нет ни пробного периода, ни оплаченной подписки.
	StatusNone SubscriptionStatus = "none"
	// StatusTrial пробный период.
	StatusTrial SubscriptionStatus = "trial"
	// StatusActive оплаченная подписка.
	StatusActive SubscriptionStatus = "active"
)

// ParseSubscriptionStatus приводит значение из хранилища к закрытому набору статусов.
// Неизвестные значения читаются как StatusNone.
func ParseSubscriptionStatus(s string) SubscriptionStatus {
	switch SubscriptionStatus(s) {
	case StatusTrial:
		return StatusTrial
	case StatusActive:
		return StatusActive
	default:
		return StatusNone
	}
}

// User представляет учётную запись пользователя.
//
// Даты окончания хранятся строками в том виде, в каком их отдаёт хранилище
// (YYYY-MM-DD или RFC 3339). Пустая строка означает отсутствие даты.
type User struct {
	UUID                string             `json:"uid"`
	Email               string             `json:"email"`
	DisplayName         string             `json:"display_name"`
	Phone               string             `json:"phone,omitempty"`
	Role                Role               `json:"role"`
	SubscriptionStatus  SubscriptionStatus `json:"subscription_status"`
	PlanName            string             `json:"plan_name,omitempty"`
	TrialEndsAt         string             `json:"trial_ends_at,omitempty"`
	SubscriptionEndDate string             `json:"subscription_end_date,omitempty"`
	CycleStartedAt      *time.Time         `json:"cycle_started_at,omitempty"` // Последний переход в trial/active
}

// IsAdmin сообщает, является ли пользователь администратором.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// ExpiryField возвращает сырую дату окончания для текущего статуса:
// для trial: TrialEndsAt, для active: SubscriptionEndDate, иначе пустую строку.
func (u User) ExpiryField() string {
	switch u.SubscriptionStatus {
	case StatusTrial:
		return u.TrialEndsAt
	case StatusActive:
		return u.SubscriptionEndDate
	default:
		return ""
	}
}

// UserFilter параметры выборки пользователей.
type UserFilter struct {
	Statuses      []SubscriptionStatus // Пустой срез: любые статусы
	ExcludeAdmins bool
}
