package models

import "time"

// DispatchError ошибка отправки одному получателю в отчёте.
type DispatchError struct {
	UserUID string `json:"user_uid"`
	Email   string `json:"email,omitempty"`
	Error   string `json:"error"`
}

// BulkReport итог массовой ручной рассылки.
type BulkReport struct {
	Bucket     string          `json:"bucket"`
	Succeeded  int             `json:"succeeded"`
	Failed     int             `json:"failed"`
	Unrecorded int             `json:"unrecorded"` // Отправлено, но запись в журнал не удалась
	Errors     []DispatchError `json:"errors"`
	Aborted    bool            `json:"aborted"`
}

// SweepReport итог планового обхода.
type SweepReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Today      string    `json:"today"`
	Scanned    int       `json:"scanned"`
	// Eligible пользователи, попавшие в корзину.
	Eligible int `json:"eligible"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	// Skipped уже отправлено в текущем цикле или сегодня уже была неудачная попытка.
	Skipped int `json:"skipped"`
	// Malformed неразбираемая дата окончания.
	Malformed int `json:"malformed"`
	// LedgerErrors не удалось проверить журнал, пользователь пропущен.
	LedgerErrors int             `json:"ledger_errors"`
	Unrecorded   int             `json:"unrecorded"`
	Errors       []DispatchError `json:"errors"`
	Aborted      bool            `json:"aborted"`
}
