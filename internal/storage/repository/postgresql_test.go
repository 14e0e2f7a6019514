package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/ledger"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/models"
)

func TestStorage_GetUser(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	uid := factory.CreateUser(t, models.User{
		Email:              "ana@example.com",
		DisplayName:        "Ana",
		SubscriptionStatus: models.StatusTrial,
		PlanName:           "pro",
		TrialEndsAt:        "2025-03-13",
	})

	got, err := storage.GetUser(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", got.Email)
	assert.Equal(t, models.RoleUser, got.Role)
	assert.Equal(t, models.StatusTrial, got.SubscriptionStatus)
	assert.Equal(t, "2025-03-13", got.TrialEndsAt)
	assert.Equal(t, "", got.SubscriptionEndDate)
	require.NotNil(t, got.CycleStartedAt, "trigger must stamp the cycle start")

	_, err = storage.GetUser(context.Background(), uuid.NewString())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUserNotFound))
}

func TestStorage_ListUsers(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	factory.CreateUser(t, models.User{Email: "a@example.com", SubscriptionStatus: models.StatusTrial, TrialEndsAt: "2025-03-13"})
	factory.CreateUser(t, models.User{Email: "b@example.com", SubscriptionStatus: models.StatusActive, SubscriptionEndDate: "2025-04-01"})
	factory.CreateUser(t, models.User{Email: "c@example.com", SubscriptionStatus: models.StatusNone})
	factory.CreateUser(t, models.User{Email: "d@example.com", Role: models.RoleAdmin, SubscriptionStatus: models.StatusActive})

	tests := []struct {
		name   string
		filter models.UserFilter
		want   []string
	}{
		{
			name:   "reminder candidates",
			filter: models.UserFilter{Statuses: []models.SubscriptionStatus{models.StatusTrial, models.StatusActive}, ExcludeAdmins: true},
			want:   []string{"a@example.com", "b@example.com"},
		},
		{
			name:   "everyone including seeded admin",
			filter: models.UserFilter{},
			want:   []string{"a@example.com", "admin@lifecycle.local", "b@example.com", "c@example.com", "d@example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := storage.ListUsers(context.Background(), tt.filter)
			require.NoError(t, err)
			emails := make([]string, 0, len(users))
			for _, u := range users {
				emails = append(emails, u.Email)
			}
			assert.ElementsMatch(t, tt.want, emails)
		})
	}
}

func TestStorage_GetUsersByIDs(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	a := factory.CreateUser(t, models.User{Email: "a@example.com"})
	b := factory.CreateUser(t, models.User{Email: "b@example.com"})

	users, err := storage.GetUsersByIDs(context.Background(), []string{a, b, uuid.NewString()})
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestStorage_CycleStartMovesOnRenewal(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	uid := factory.CreateUser(t, models.User{Email: "r@example.com", SubscriptionStatus: models.StatusActive, SubscriptionEndDate: "2025-03-01"})
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	factory.SetCycleStart(t, uid, old)

	_, err := storage.DB.Exec(`UPDATE users SET subscription_end_date = '2025-04-01' WHERE uid = $1`, uid)
	require.NoError(t, err)

	got, err := storage.GetUser(context.Background(), uid)
	require.NoError(t, err)
	require.NotNil(t, got.CycleStartedAt)
	assert.True(t, got.CycleStartedAt.After(old))
}

func TestStorage_Dispatches(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)
	ctx := context.Background()

	uid := factory.CreateUser(t, models.User{Email: "l@example.com", SubscriptionStatus: models.StatusTrial, TrialEndsAt: "2025-03-13"})
	since := time.Now().Add(-time.Hour)

	rec := models.DispatchRecord{
		ID:             uuid.NewString(),
		UserUID:        uid,
		RecipientEmail: "l@example.com",
		BucketType:     "3_days_before",
		DaysDifference: 3,
		SentBy:         models.SentByAutomatic,
		Status:         models.DispatchSent,
		ExpiryDate:     "2025-03-13",
	}
	saved, err := storage.AppendDispatch(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, saved.ID)
	assert.Equal(t, "2025-03-13", saved.ExpiryDate)
	assert.False(t, saved.CreatedAt.IsZero())

	t.Run("same cycle and expiry is found", func(t *testing.T) {
		got, err := storage.QueryDispatches(ctx, models.DispatchQuery{
			RecipientEmail: "l@example.com", BucketType: "3_days_before", SinceCycleStart: since, ExpiryDate: "2025-03-13",
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, models.DispatchSent, got[0].Status)
	})

	t.Run("renewed expiry is a new cycle", func(t *testing.T) {
		got, err := storage.QueryDispatches(ctx, models.DispatchQuery{
			RecipientEmail: "l@example.com", BucketType: "3_days_before", SinceCycleStart: since, ExpiryDate: "2025-04-13",
		})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("records before cycle start are ignored", func(t *testing.T) {
		got, err := storage.QueryDispatches(ctx, models.DispatchQuery{
			RecipientEmail: "l@example.com", BucketType: "3_days_before", SinceCycleStart: time.Now().Add(time.Hour), ExpiryDate: "2025-03-13",
		})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("second automatic sent row is rejected", func(t *testing.T) {
		dup := rec
		dup.ID = uuid.NewString()
		_, err := storage.AppendDispatch(ctx, dup)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ledger.ErrDuplicateDispatch))
	})

	t.Run("manual and failed rows are always accepted", func(t *testing.T) {
		manual := rec
		manual.ID = uuid.NewString()
		manual.SentBy = models.SentByManual
		_, err := storage.AppendDispatch(ctx, manual)
		require.NoError(t, err)

		failed := rec
		failed.ID = uuid.NewString()
		failed.Status = models.DispatchFailed
		failed.ErrorMessage = "smtp timeout"
		_, err = storage.AppendDispatch(ctx, failed)
		require.NoError(t, err)

		assert.Equal(t, 3, factory.CountDispatches(t, "l@example.com"))
	})

	t.Run("monthly reminders differ by offset", func(t *testing.T) {
		monthly := rec
		monthly.ID = uuid.NewString()
		monthly.BucketType = "monthly_after_30"
		monthly.DaysDifference = -60
		_, err := storage.AppendDispatch(ctx, monthly)
		require.NoError(t, err)

		next := monthly
		next.ID = uuid.NewString()
		next.DaysDifference = -90
		_, err = storage.AppendDispatch(ctx, next)
		require.NoError(t, err)

		d := -90
		got, err := storage.QueryDispatches(ctx, models.DispatchQuery{
			RecipientEmail: "l@example.com", BucketType: "monthly_after_30", SinceCycleStart: since,
			ExpiryDate: "2025-03-13", DaysDifference: &d,
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, -90, got[0].DaysDifference)
	})

	t.Run("list newest first", func(t *testing.T) {
		got, err := storage.ListDispatches(ctx, models.DispatchListFilter{RecipientEmail: "l@example.com", Limit: 2})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.False(t, got[0].CreatedAt.Before(got[1].CreatedAt))
	})
}

func TestCheckDatabaseReady(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	require.NoError(t, CheckDatabaseReady(context.Background(), storage))
	require.NoError(t, WaitReady(context.Background(), storage, 1, time.Millisecond))
}
