package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/ledger"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/models"
)

const dispatchColumns = `id, COALESCE(user_uid::text, ''), recipient_email, bucket_type, days_difference,
		sent_by, status, COALESCE(error_message, ''), COALESCE(subscription_plan_type, ''),
		COALESCE(to_char(expiry_date, 'YYYY-MM-DD'), ''), created_at`

func scanDispatch(row rowScanner) (models.DispatchRecord, error) {
	var (
		rec            models.DispatchRecord
		sentBy, status string
	)
	if err := row.Scan(&rec.ID, &rec.UserUID, &rec.RecipientEmail, &rec.BucketType, &rec.DaysDifference,
		&sentBy, &status, &rec.ErrorMessage, &rec.SubscriptionPlanType, &rec.ExpiryDate, &rec.CreatedAt); err != nil {
		return models.DispatchRecord{}, err
	}
	rec.SentBy = models.SentBy(sentBy)
	rec.Status = models.DispatchStatus(status)
	return rec, nil
}

// AppendDispatch добавляет запись в журнал отправок. Записи никогда не изменяются.
// Конфликт уникального индекса автоматических отправок возвращает ledger.ErrDuplicateDispatch.
func (s *Storage) AppendDispatch(ctx context.Context, rec models.DispatchRecord) (models.DispatchRecord, error) {
	const op = "storage.AppendDispatch"
	select {
	case <-ctx.Done():
		return rec, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO email_logs (id, user_uid, recipient_email, bucket_type, days_difference,
			      sent_by, status, error_message, subscription_plan_type, expiry_date)
			  VALUES ($1, $2::uuid, $3, $4, $5, $6, $7, $8, $9, $10::date)
			  RETURNING ` + dispatchColumns
	saved, err := scanDispatch(s.DB.QueryRowContext(ctx, query,
		rec.ID, nullString(rec.UserUID), rec.RecipientEmail, rec.BucketType, rec.DaysDifference,
		string(rec.SentBy), string(rec.Status), nullString(rec.ErrorMessage),
		nullString(rec.SubscriptionPlanType), nullString(rec.ExpiryDate)))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return rec, fmt.Errorf("%s: %w", op, ledger.ErrDuplicateDispatch)
		}
		return rec, fmt.Errorf("%s: %w", op, err)
	}
	return saved, nil
}

// QueryDispatches возвращает записи получателя по корзине, созданные не раньше начала цикла
// и относящиеся к той же дате окончания.
func (s *Storage) QueryDispatches(ctx context.Context, q models.DispatchQuery) ([]models.DispatchRecord, error) {
	const op = "storage.QueryDispatches"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + dispatchColumns + `
			  FROM email_logs
			  WHERE recipient_email = $1
			    AND bucket_type = $2
			    AND created_at >= $3
			    AND expiry_date IS NOT DISTINCT FROM $4::date
			    AND ($5::int IS NULL OR days_difference = $5)
			  ORDER BY created_at`
	return s.queryDispatches(ctx, op, query,
		q.RecipientEmail, q.BucketType, q.SinceCycleStart, nullString(q.ExpiryDate), nullInt(q.DaysDifference))
}

// ListDispatches возвращает последние записи журнала, новые первыми.
func (s *Storage) ListDispatches(ctx context.Context, f models.DispatchListFilter) ([]models.DispatchRecord, error) {
	const op = "storage.ListDispatches"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + dispatchColumns + `
			  FROM email_logs
			  WHERE ($1::text IS NULL OR recipient_email = $1)
			  ORDER BY created_at DESC
			  LIMIT $2`
	return s.queryDispatches(ctx, op, query, nullString(f.RecipientEmail), f.Limit)
}

func (s *Storage) queryDispatches(ctx context.Context, op, query string, args ...any) ([]models.DispatchRecord, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := []models.DispatchRecord{}
	for rows.Next() {
		rec, err := scanDispatch(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
