package database

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// =============================================================================
// 🧪 PoolManager 测试
// =============================================================================

func setupMockPool(t *testing.T, config PoolConfig) (sqlmock.Sqlmock, *PoolManager) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	manager, err := NewPoolManager(gormDB, config, zaptest.NewLogger(t))
	require.NoError(t, err)
	return mock, manager
}

func TestNewPoolManager_NilDB(t *testing.T) {
	_, err := NewPoolManager(nil, DefaultPoolConfig(), nil)
	assert.Error(t, err)
}

func TestPoolManager_Ping(t *testing.T) {
	mock, manager := setupMockPool(t, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5})

	mock.ExpectPing()
	assert.NoError(t, manager.Ping(t.Context()))

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	assert.Error(t, manager.Ping(t.Context()))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_Stats(t *testing.T) {
	_, manager := setupMockPool(t, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5})

	stats := manager.Stats()
	assert.Equal(t, 10, stats.MaxOpenConnections)
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
}

func TestPoolManager_WithTransaction(t *testing.T) {
	mock, manager := setupMockPool(t, PoolConfig{})

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, manager.WithTransaction(t.Context(), func(*gorm.DB) error { return nil }))

	mock.ExpectBegin()
	mock.ExpectRollback()
	assert.ErrorIs(t, manager.WithTransaction(t.Context(), func(*gorm.DB) error { return assert.AnError }), assert.AnError)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_WithTransactionRetry(t *testing.T) {
	mock, manager := setupMockPool(t, PoolConfig{RetryBackoff: time.Millisecond})

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	attempts := 0
	err := manager.WithTransactionRetry(t.Context(), 3, func(*gorm.DB) error {
		attempts++
		if attempts == 1 {
			return &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_WithTransactionRetry_GivesUp(t *testing.T) {
	mock, manager := setupMockPool(t, PoolConfig{RetryBackoff: time.Millisecond})
	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	busy := errors.New("database is locked (5) (SQLITE_BUSY)")
	err := manager.WithTransactionRetry(t.Context(), 2, func(*gorm.DB) error { return busy })
	require.Error(t, err)
	assert.ErrorIs(t, err, busy)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_WithTransactionRetry_NonRetryable(t *testing.T) {
	mock, manager := setupMockPool(t, PoolConfig{})

	mock.ExpectBegin()
	mock.ExpectRollback()

	attempts := 0
	err := manager.WithTransactionRetry(t.Context(), 3, func(*gorm.DB) error {
		attempts++
		return errors.New("unique constraint violated")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestPoolManager_Close(t *testing.T) {
	mock, manager := setupMockPool(t, PoolConfig{HealthCheckInterval: time.Hour})

	mock.ExpectClose()
	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close())

	assert.ErrorIs(t, manager.Ping(t.Context()), ErrPoolClosed)
	assert.ErrorIs(t, manager.WithTransaction(t.Context(), func(*gorm.DB) error { return nil }), ErrPoolClosed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad conn", fmt.Errorf("query: %w", driver.ErrBadConn), true},
		{"pg serialization", &pgconn.PgError{Code: "40001"}, true},
		{"pg deadlock", fmt.Errorf("tx: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213}, true},
		{"mysql lock wait", &mysql.MySQLError{Number: 1205}, true},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, false},
		{"sqlite busy", errors.New("database is locked"), true},
		{"syntax", errors.New("syntax error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

// =============================================================================
// 🔌 Open 测试
// =============================================================================

func TestOpen_SQLiteInMemory(t *testing.T) {
	manager, err := Open(DriverSQLite, ":memory:", DefaultPoolConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer manager.Close()

	assert.NoError(t, manager.Ping(t.Context()))
	assert.Equal(t, 1, manager.Stats().MaxOpenConnections)
}

func TestDialector_Unsupported(t *testing.T) {
	_, err := Dialector("oracle", "dsn")
	assert.Error(t, err)

	for _, driver := range []string{DriverSQLite, DriverPostgres, DriverMySQL} {
		d, err := Dialector(driver, "dsn")
		require.NoError(t, err)
		assert.Equal(t, driver, d.Name())
	}
}
