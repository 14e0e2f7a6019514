package bulk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/models"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/reminder"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) SendBulk(ctx context.Context, userUIDs []string, bucket reminder.Bucket) (models.BulkReport, error) {
	args := m.Called(ctx, userUIDs, bucket)
	return args.Get(0).(models.BulkReport), args.Error(1)
}

const (
	uid1 = "7f3c1a52-9d0e-4b7a-8a51-3c2f0e6d9b14"
	uid2 = "0b8d4f3e-2a61-4c9f-9e27-5d1a6b3c8f02"
)

func TestBulkHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "partial failure is still 200",
			body: `{"user_ids":["` + uid1 + `","` + uid2 + `"],"bucket":"5_days_after"}`,
			setupMock: func(m *MockService) {
				m.On("SendBulk", mock.Anything, []string{uid1, uid2}, reminder.FiveDaysAfter).Return(models.BulkReport{
					Bucket:    "5_days_after",
					Succeeded: 1,
					Failed:    1,
					Errors:    []models.DispatchError{{UserUID: uid2, Email: "b@example.com", Error: "timeout"}},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"succeeded":1,"failed":1`,
		},
		{
			name:           "empty list",
			body:           `{"user_ids":[],"bucket":"5_days_after"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `"status":"Error"`,
		},
		{
			name:           "id is not a uuid",
			body:           `{"user_ids":["42"],"bucket":"5_days_after"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `can contain only uuid`,
		},
		{
			name:           "unknown bucket",
			body:           `{"user_ids":["` + uid1 + `"],"bucket":"yesterday"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `unknown reminder bucket`,
		},
		{
			name:           "broken body",
			body:           `[`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `invalid request body`,
		},
		{
			name: "storage error",
			body: `{"user_ids":["` + uid1 + `"],"bucket":"5_days_after"}`,
			setupMock: func(m *MockService) {
				m.On("SendBulk", mock.Anything, []string{uid1}, reminder.FiveDaysAfter).
					Return(models.BulkReport{}, errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `could not send reminders`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/reminders/bulk", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			New(logger, svc, 0).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestBulkHandler_BatchLargerThanRateAllows(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := new(MockService)

	ids := `"` + uid1 + `","` + uid2 + `"`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/reminders/bulk",
		strings.NewReader(`{"user_ids":[`+ids+`],"bucket":"5_days_after"}`))
	w := httptest.NewRecorder()
	New(logger, svc, 1).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "too many recipients: at most 1 per request")
	svc.AssertNotCalled(t, "SendBulk", mock.Anything, mock.Anything, mock.Anything)
}

func TestMaxBatch(t *testing.T) {
	tests := []struct {
		name   string
		rate   float64
		burst  int
		budget time.Duration
		want   int
	}{
		{name: "defaults fit the write timeout", rate: 2, burst: 1, budget: 30 * time.Second, want: 31},
		{name: "burst is sent immediately", rate: 2, burst: 5, budget: 30 * time.Second, want: 35},
		{name: "fast provider is capped", rate: 500, burst: 1, budget: 30 * time.Second, want: MaxUserUIDs},
		{name: "zero rate", rate: 0, burst: 1, budget: 30 * time.Second, want: 1},
		{name: "zero budget", rate: 2, burst: 1, budget: 0, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaxBatch(tt.rate, tt.burst, tt.budget)
			assert.Equal(t, tt.want, got)
			if tt.rate > 0 && tt.budget > 0 {
				spent := time.Duration(float64(got-tt.burst) / tt.rate * float64(time.Second))
				assert.LessOrEqual(t, spent, tt.budget)
			}
		})
	}
}
