package dispatcher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/ledger"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/mailer"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/models"
)

type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUsers) GetUsersByIDs(ctx context.Context, userUIDs []string) ([]models.User, error) {
	args := m.Called(ctx, userUIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUsers) ListUsers(ctx context.Context, f models.UserFilter) ([]models.User, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

// memoryStore журнал в памяти с тем же ограничением уникальности, что и в базе.
type memoryStore struct {
	mu        sync.Mutex
	records   []models.DispatchRecord
	queryErr  error
	appendErr error
}

func (s *memoryStore) QueryDispatches(_ context.Context, q models.DispatchQuery) ([]models.DispatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	out := []models.DispatchRecord{}
	for _, r := range s.records {
		if r.RecipientEmail != q.RecipientEmail || r.BucketType != q.BucketType {
			continue
		}
		if r.CreatedAt.Before(q.SinceCycleStart) || r.ExpiryDate != q.ExpiryDate {
			continue
		}
		if q.DaysDifference != nil && r.DaysDifference != *q.DaysDifference {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *memoryStore) AppendDispatch(_ context.Context, rec models.DispatchRecord) (models.DispatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return models.DispatchRecord{}, s.appendErr
	}
	if rec.SentBy == models.SentByAutomatic && rec.Status == models.DispatchSent {
		for _, r := range s.records {
			if r.SentBy == models.SentByAutomatic && r.Status == models.DispatchSent &&
				r.RecipientEmail == rec.RecipientEmail && r.BucketType == rec.BucketType && r.ExpiryDate == rec.ExpiryDate &&
				r.DaysDifference == rec.DaysDifference {
				return models.DispatchRecord{}, ledger.ErrDuplicateDispatch
			}
		}
	}
	s.records = append(s.records, rec)
	return rec, nil
}

func (s *memoryStore) ListDispatches(_ context.Context, f models.DispatchListFilter) ([]models.DispatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.DispatchRecord{}
	for i := len(s.records) - 1; i >= 0 && len(out) < f.Limit; i-- {
		if f.RecipientEmail == "" || s.records[i].RecipientEmail == f.RecipientEmail {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

func (s *memoryStore) all() []models.DispatchRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.DispatchRecord(nil), s.records...)
}

// fakeMailer принимает все письма, кроме адресов из failFor.
type fakeMailer struct {
	mu      sync.Mutex
	failFor map[string]string
	sent    []mailer.Email
}

func (m *fakeMailer) Send(ctx context.Context, e mailer.Email) mailer.Result {
	if err := ctx.Err(); err != nil {
		return mailer.Result{ErrorMessage: err.Error()}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.failFor[e.To]; ok {
		return mailer.Result{ErrorMessage: msg}
	}
	m.sent = append(m.sent, e)
	return mailer.Result{Success: true}
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakeSweeps struct {
	mu      sync.Mutex
	held    bool
	lockErr error
	last    *models.SweepReport
}

func (f *fakeSweeps) AcquireLock(_ context.Context, _ string, _ time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lockErr != nil {
		return "", false, f.lockErr
	}
	if f.held {
		return "", false, nil
	}
	f.held = true
	return "token", true, nil
}

func (f *fakeSweeps) ReleaseLock(_ context.Context, _, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.held || token != "token" {
		return errors.New("lock not held")
	}
	f.held = false
	return nil
}

func (f *fakeSweeps) SaveSweepReport(_ context.Context, report models.SweepReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = &report
	return nil
}

func (f *fakeSweeps) LastSweepReport(_ context.Context) (*models.SweepReport, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, f.last != nil, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []models.DispatchRecord
}

func (p *fakePublisher) PublishDispatch(_ context.Context, rec models.DispatchRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, rec)
	return nil
}

// cancelingLimiter отменяет контекст на вызове номер cancelAt.
type cancelingLimiter struct {
	calls    int
	cancelAt int
	cancel   context.CancelFunc
}

func (l *cancelingLimiter) Wait(ctx context.Context) error {
	l.calls++
	if l.calls == l.cancelAt {
		l.cancel()
	}
	return ctx.Err()
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
