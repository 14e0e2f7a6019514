package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/subscription-lifecycle/internal/migrations"
	"github.com/magabrotheeeer/subscription-lifecycle/internal/models"
)

// TestDataFactory создаёт тестовые данные напрямую в БД.
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя и возвращает его UID.
func (f *TestDataFactory) CreateUser(t *testing.T, u models.User) string {
	uid, err := f.storage.CreateUser(context.Background(), u)
	require.NoError(t, err)
	return uid
}

// SetCycleStart переписывает начало цикла, минуя триггер.
func (f *TestDataFactory) SetCycleStart(t *testing.T, uid string, at time.Time) {
	_, err := f.storage.DB.Exec(`ALTER TABLE users DISABLE TRIGGER trg_users_track_cycle`)
	require.NoError(t, err)
	_, err = f.storage.DB.Exec(`UPDATE users SET cycle_started_at = $1 WHERE uid = $2`, at, uid)
	require.NoError(t, err)
	_, err = f.storage.DB.Exec(`ALTER TABLE users ENABLE TRIGGER trg_users_track_cycle`)
	require.NoError(t, err)
}

// CountDispatches возвращает число записей журнала для получателя.
func (f *TestDataFactory) CountDispatches(t *testing.T, email string) int {
	var n int
	err := f.storage.DB.QueryRow(`SELECT COUNT(*) FROM email_logs WHERE recipient_email = $1`, email).Scan(&n)
	require.NoError(t, err)
	return n
}

func migrationsPath(t *testing.T) string {
	projectRoot, err := filepath.Abs("../../..")
	require.NoError(t, err)
	return filepath.Join(projectRoot, "migrations")
}

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	var storage *Storage
	for range 10 {
		storage, err = New(dsn)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err, "failed to create storage after retries")

	require.NoError(t, migrations.Run(storage.DB, migrationsPath(t)))

	cleanup := func() {
		_ = storage.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return storage, cleanup
}
