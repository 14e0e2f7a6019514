package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/models"
)

// Даты читаются строкой YYYY-MM-DD: time.Time из DATE пришёл бы в UTC и сдвинул день.
const userColumns = `uid, email, display_name, phone, role, subscription_status, plan_name,
		COALESCE(to_char(trial_ends_at, 'YYYY-MM-DD'), ''),
		COALESCE(to_char(subscription_end_date, 'YYYY-MM-DD'), ''),
		cycle_started_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var (
		u            models.User
		role, status string
		cycle        sql.NullTime
	)
	if err := row.Scan(&u.UUID, &u.Email, &u.DisplayName, &u.Phone, &role, &status, &u.PlanName,
		&u.TrialEndsAt, &u.SubscriptionEndDate, &cycle); err != nil {
		return models.User{}, err
	}
	u.Role = models.Role(role)
	u.SubscriptionStatus = models.ParseSubscriptionStatus(status)
	if cycle.Valid {
		t := cycle.Time
		u.CycleStartedAt = &t
	}
	return u, nil
}

// CreateUser сохраняет пользователя и возвращает его UID.
func (s *Storage) CreateUser(ctx context.Context, u models.User) (string, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	role := u.Role
	if role == "" {
		role = models.RoleUser
	}
	status := u.SubscriptionStatus
	if status == "" {
		status = models.StatusNone
	}

	var uid string
	query := `INSERT INTO users (email, display_name, phone, role, subscription_status, plan_name,
			      trial_ends_at, subscription_end_date)
			  VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8::date)
			  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query,
		u.Email, u.DisplayName, u.Phone, string(role), string(status), u.PlanName,
		nullString(u.TrialEndsAt), nullString(u.SubscriptionEndDate)).Scan(&uid); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return uid, nil
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE uid = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &u, nil
}

// GetUsersByIDs возвращает найденных пользователей из списка UID.
// Отсутствующие UID молча пропускаются, порядок не гарантируется.
func (s *Storage) GetUsersByIDs(ctx context.Context, userUIDs []string) ([]models.User, error) {
	const op = "storage.GetUsersByIDs"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	if len(userUIDs) == 0 {
		return nil, nil
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE uid::text = ANY($1)`
	return s.queryUsers(ctx, op, query, userUIDs)
}

// ListUsers возвращает пользователей по фильтру, упорядоченных по email.
func (s *Storage) ListUsers(ctx context.Context, f models.UserFilter) ([]models.User, error) {
	const op = "storage.ListUsers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var (
		where []string
		args  []any
	)
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, st := range f.Statuses {
			statuses = append(statuses, string(st))
		}
		args = append(args, statuses)
		where = append(where, fmt.Sprintf("subscription_status = ANY($%d)", len(args)))
	}
	if f.ExcludeAdmins {
		args = append(args, string(models.RoleAdmin))
		where = append(where, fmt.Sprintf("role <> $%d", len(args)))
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY email`

	return s.queryUsers(ctx, op, query, args...)
}

func (s *Storage) queryUsers(ctx context.Context, op, query string, args ...any) ([]models.User, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
