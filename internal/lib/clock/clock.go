// Package clock отдаёт "сегодня" как календарную дату в бизнес-часовом поясе (America/Sao_Paulo)
// и разбирает даты окончания пробного периода и подписки.
//
// Все сравнения дат в сервисе идут по календарным датам, а не по моментам времени:
// это убирает ошибки на границе суток, когда UTC уже перешёл на следующий день.
package clock

import (
	"errors"
	"fmt"
	"strings"
	"time"
	// Встроенная база часовых поясов: контейнер может не иметь /usr/share/zoneinfo.
	_ "time/tzdata"

	"cloud.google.com/go/civil"
)

// DefaultTimezone бизнес-часовой пояс сервиса.
const DefaultTimezone = "America/Sao_Paulo"

// ErrEmptyDate возвращается при разборе пустой даты.
var ErrEmptyDate = errors.New("empty date")

// Clock источник текущей даты.
type Clock interface {
	// Today возвращает текущую календарную дату в бизнес-часовом поясе.
	Today() civil.Date
	// Now возвращает текущий момент времени.
	Now() time.Time
	// Location возвращает бизнес-часовой пояс.
	Location() *time.Location
}

// Business реализует Clock поверх системных часов.
type Business struct {
	loc *time.Location
	now func() time.Time
}

// New создаёт Business для указанного IANA-пояса. Пустая строка означает DefaultTimezone.
func New(timezone string) (*Business, error) {
	const op = "clock.New"
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Business{loc: loc, now: time.Now}, nil
}

// Fixed возвращает часы, которые всегда показывают момент at.
func Fixed(at time.Time, loc *time.Location) *Business {
	return &Business{loc: loc, now: func() time.Time { return at }}
}

// Today возвращает текущую календарную дату в бизнес-часовом поясе.
func (b *Business) Today() civil.Date {
	return civil.DateOf(b.now().In(b.loc))
}

// Now возвращает текущий момент времени.
func (b *Business) Now() time.Time {
	return b.now()
}

// Location возвращает бизнес-часовой пояс.
func (b *Business) Location() *time.Location {
	return b.loc
}

// StartOfDay возвращает полночь даты d в поясе loc.
func StartOfDay(d civil.Date, loc *time.Location) time.Time {
	return d.In(loc)
}

// DaysUntil возвращает знаковое число дней от today до expiry.
// Больше нуля: дней осталось. Ноль: истекает сегодня. Меньше нуля: дней просрочки.
func DaysUntil(expiry, today civil.Date) int {
	return expiry.DaysSince(today)
}

// ParseDate разбирает дату из хранилища.
//
// Формат YYYY-MM-DD берётся как есть. Метка времени RFC 3339 переводится в пояс loc
// и усекается до календарной даты.
func ParseDate(raw string, loc *time.Location) (civil.Date, error) {
	const op = "clock.ParseDate"
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return civil.Date{}, fmt.Errorf("%s: %w", op, ErrEmptyDate)
	}

	if d, err := civil.ParseDate(raw); err == nil {
		if !d.IsValid() {
			return civil.Date{}, fmt.Errorf("%s: invalid date %q", op, raw)
		}
		return d, nil
	}

	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return civil.Date{}, fmt.Errorf("%s: %w", op, err)
	}
	return civil.DateOf(ts.In(loc)), nil
}

// FormatBR форматирует дату для писем: DD/MM/YYYY.
func FormatBR(d civil.Date) string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, int(d.Month), d.Year)
}
