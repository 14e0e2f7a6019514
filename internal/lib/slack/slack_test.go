package slack

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Post(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr string
	}{
		{name: "ok", status: http.StatusOK},
		{name: "bad request", status: http.StatusBadRequest, wantErr: "webhook status 400"},
		{name: "gone", status: http.StatusGone, wantErr: "webhook status 410"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got payload
			var contentType string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				contentType = r.Header.Get("Content-Type")
				b, _ := io.ReadAll(r.Body)
				_ = json.Unmarshal(b, &got)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("ok"))
			}))
			defer srv.Close()

			err := New(srv.URL, time.Second).Post(context.Background(), "reminder failed")
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, "reminder failed", got.Text)
			assert.Equal(t, "application/json", contentType)
		})
	}
}

func TestClient_Disabled(t *testing.T) {
	c := New("", time.Second)
	assert.False(t, c.Enabled())
	err := c.Post(context.Background(), "x")
	assert.True(t, errors.Is(err, ErrDisabled))
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	err := New(srv.URL, 50*time.Millisecond).Post(context.Background(), "x")
	require.Error(t, err)
}
