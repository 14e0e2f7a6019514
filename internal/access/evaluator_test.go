package access

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/lib/clock"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/models"
)

func newEvaluator(t *testing.T) *Evaluator {
	loc, err := time.LoadLocation(clock.DefaultTimezone)
	require.NoError(t, err)
	return NewEvaluator(loc)
}

func TestEvaluator_Evaluate(t *testing.T) {
	e := newEvaluator(t)
	today := civil.Date{Year: 2025, Month: time.March, Day: 10}

	tests := []struct {
		name string
		user models.User
		want Decision
	}{
		{
			name: "admin without any plan",
			user: models.User{Role: models.RoleAdmin, SubscriptionStatus: models.StatusNone},
			want: Decision{HasAccess: true, Reason: ReasonAdmin},
		},
		{
			name: "admin with long expired subscription",
			user: models.User{Role: models.RoleAdmin, SubscriptionStatus: models.StatusActive, SubscriptionEndDate: "2020-01-01"},
			want: Decision{HasAccess: true, Reason: ReasonAdmin},
		},
		{
			name: "trial ends today is still active",
			user: models.User{Role: models.RoleUser, SubscriptionStatus: models.StatusTrial, TrialEndsAt: "2025-03-10"},
			want: Decision{HasAccess: true, Reason: ReasonTrialActive},
		},
		{
			name: "trial ended yesterday",
			user: models.User{Role: models.RoleUser, SubscriptionStatus: models.StatusTrial, TrialEndsAt: "2025-03-09"},
			want: Decision{HasAccess: false, Reason: ReasonTrialExpired},
		},
		{
			name: "trial with unparseable date fails closed",
			user: models.User{Role: models.RoleUser, SubscriptionStatus: models.StatusTrial, TrialEndsAt: "amanhã"},
			want: Decision{HasAccess: false, Reason: ReasonTrialExpired},
		},
		{
			name: "trial without date fails closed",
			user: models.User{Role: models.RoleUser, SubscriptionStatus: models.StatusTrial},
			want: Decision{HasAccess: false, Reason: ReasonTrialExpired},
		},
		{
			name: "subscription in the future",
			user: models.User{Role: models.RoleUser, SubscriptionStatus: models.StatusActive, SubscriptionEndDate: "2025-04-10"},
			want: Decision{HasAccess: true, Reason: ReasonSubscriptionActive},
		},
		{
			name: "subscription ends today",
			user: models.User{Role: models.RoleUser, SubscriptionStatus: models.StatusActive, SubscriptionEndDate: "2025-03-10"},
			want: Decision{HasAccess: true, Reason: ReasonSubscriptionActive},
		},
		{
			name: "expired subscription never falls back to a future trial",
			user: models.User{
				Role:                models.RoleUser,
				SubscriptionStatus:  models.StatusActive,
				SubscriptionEndDate: "2025-03-01",
				TrialEndsAt:         "2025-12-31",
			},
			want: Decision{HasAccess: false, Reason: ReasonSubscriptionExpired},
		},
		{
			name: "active with malformed end date fails closed",
			user: models.User{Role: models.RoleUser, SubscriptionStatus: models.StatusActive, SubscriptionEndDate: "31/12/2025"},
			want: Decision{HasAccess: false, Reason: ReasonSubscriptionExpired},
		},
		{
			name: "timestamp at UTC midnight is read in business timezone",
			user: models.User{Role: models.RoleUser, SubscriptionStatus: models.StatusActive, SubscriptionEndDate: "2025-03-10T00:00:00Z"},
			want: Decision{HasAccess: false, Reason: ReasonSubscriptionExpired},
		},
		{
			name: "no plan",
			user: models.User{Role: models.RoleUser, SubscriptionStatus: models.StatusNone, TrialEndsAt: "2030-01-01"},
			want: Decision{HasAccess: false, Reason: ReasonNoPlan},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Evaluate(tt.user, today))
		})
	}
}

func TestEvaluator_AdminAlwaysHasAccess(t *testing.T) {
	e := newEvaluator(t)
	today := civil.Date{Year: 2025, Month: time.March, Day: 10}

	statuses := []models.SubscriptionStatus{models.StatusNone, models.StatusTrial, models.StatusActive}
	dates := []string{"", "garbage", "1999-01-01", "2025-03-09", "2025-03-10", "2099-01-01"}

	for _, st := range statuses {
		for _, d := range dates {
			u := models.User{Role: models.RoleAdmin, SubscriptionStatus: st, TrialEndsAt: d, SubscriptionEndDate: d}
			got := e.Evaluate(u, today)
			assert.True(t, got.HasAccess, "status=%s date=%q", st, d)
			assert.Equal(t, ReasonAdmin, got.Reason)
		}
	}
}

func TestEvaluator_TrialBoundaryOverManyDays(t *testing.T) {
	e := newEvaluator(t)
	start := civil.Date{Year: 2024, Month: time.December, Day: 20}

	for i := range 90 {
		today := start.AddDays(i)
		same := models.User{Role: models.RoleUser, SubscriptionStatus: models.StatusTrial, TrialEndsAt: today.String()}
		yesterday := models.User{Role: models.RoleUser, SubscriptionStatus: models.StatusTrial, TrialEndsAt: today.AddDays(-1).String()}

		assert.True(t, e.Evaluate(same, today).HasAccess, today.String())
		assert.False(t, e.Evaluate(yesterday, today).HasAccess, today.String())
	}
}

func TestReasonCode_Granted(t *testing.T) {
	granted := map[ReasonCode]bool{
		ReasonAdmin:               true,
		ReasonTrialActive:         true,
		ReasonSubscriptionActive:  true,
		ReasonTrialExpired:        false,
		ReasonSubscriptionExpired: false,
		ReasonNoPlan:              false,
	}
	require.Len(t, AllReasons(), len(granted))
	for _, r := range AllReasons() {
		assert.Equal(t, granted[r], r.Granted(), r)
	}
	assert.False(t, ReasonCode("unknown").Granted())
}
