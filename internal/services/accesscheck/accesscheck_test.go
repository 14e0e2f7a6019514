package accesscheck

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/access"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/clock"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/models"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/storage/repository"
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

func TestService_Check(t *testing.T) {
	loc, err := time.LoadLocation(clock.DefaultTimezone)
	require.NoError(t, err)
	clk := clock.Fixed(time.Date(2025, time.March, 10, 12, 0, 0, 0, loc), loc)

	users := new(MockUsers)
	users.On("GetUser", mock.Anything, "u1").Return(&models.User{
		UUID:               "u1",
		Role:               models.RoleUser,
		SubscriptionStatus: models.StatusTrial,
		TrialEndsAt:        "2025-03-10",
	}, nil)
	users.On("GetUser", mock.Anything, "ghost").Return(nil, fmt.Errorf("storage.GetUser: %w", repository.ErrUserNotFound))
	users.On("GetUser", mock.Anything, "broken").Return(nil, errors.New("db down"))

	svc := New(users, clk)

	res, err := svc.Check(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, Result{
		UserUID:            "u1",
		SubscriptionStatus: models.StatusTrial,
		Today:              "2025-03-10",
		Decision:           access.Decision{HasAccess: true, Reason: access.ReasonTrialActive},
	}, res)

	_, err = svc.Check(context.Background(), "ghost")
	assert.True(t, errors.Is(err, ErrUserNotFound))

	_, err = svc.Check(context.Background(), "broken")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUserNotFound))
	assert.Contains(t, err.Error(), "accesscheck.Check")
}
