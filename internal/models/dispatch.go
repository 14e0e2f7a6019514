package models

import "time"

// SentBy режим отправки напоминания.
type SentBy string

const (
	// SentByAutomatic отправка плановым обходом.
	SentByAutomatic SentBy = "automatic"
	// SentByManual отправка оператором.
	SentByManual SentBy = "manual"
)

// DispatchStatus результат попытки отправки.
type DispatchStatus string

const (
	// DispatchSent письмо принято почтовым транспортом.
	DispatchSent DispatchStatus = "sent"
	// DispatchFailed отправка не удалась.
	DispatchFailed DispatchStatus = "failed"
)

// DispatchRecord запись журнала рассылок (email_logs).
// Создаётся ровно один раз на попытку отправки и больше не изменяется.
type DispatchRecord struct {
	ID                   string         `json:"id"`
	UserUID              string         `json:"user_uid,omitempty"`
	RecipientEmail       string         `json:"recipient_email"`
	BucketType           string         `json:"bucket_type"`
	DaysDifference       int            `json:"days_difference"`
	SentBy               SentBy         `json:"sent_by"`
	Status               DispatchStatus `json:"status"`
	ErrorMessage         string         `json:"error_message,omitempty"`
	SubscriptionPlanType string         `json:"subscription_plan_type,omitempty"`
	ExpiryDate           string         `json:"expiry_date,omitempty"` // Дата окончания цикла, к которому относится письмо
	CreatedAt            time.Time      `json:"created_at"`
}

// DispatchQuery фильтр истории отправок одного получателя по одной корзине.
type DispatchQuery struct {
	RecipientEmail  string
	BucketType      string
	SinceCycleStart time.Time // Нулевое значение: без нижней границы
	ExpiryDate      string    // Пустая строка: запись без даты окончания
	DaysDifference  *int      // nil: любое смещение
}

// DispatchListFilter фильтр журнала для административного просмотра.
type DispatchListFilter struct {
	RecipientEmail string // Пустая строка: все получатели
	Limit          int
}
