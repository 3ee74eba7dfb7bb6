package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"wisefido-callcenter/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockNotificationsRepo(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresNotificationsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgresNotificationsRepository(db)
}

func TestCreateNotifications_Batch(t *testing.T) {
	db, mock, repo := setupMockNotificationsRepo(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectPrepare(`INSERT INTO notifications`)
	mock.ExpectExec(`INSERT INTO notifications`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO notifications`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	now := time.Now()
	err := repo.CreateNotifications(context.Background(), []*domain.Notification{
		{NotificationID: "n-1", OwnerID: "alice", Message: "m1", Type: domain.NotificationTypeRepeatCall, CreatedAt: now},
		{NotificationID: "n-2", OwnerID: "bob", Message: "m2", Type: domain.NotificationTypeRepeatCall, CreatedAt: now},
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRead_OwnerScoped(t *testing.T) {
	db, mock, repo := setupMockNotificationsRepo(t)
	defer db.Close()

	// 非 owner 变更不命中任何行
	mock.ExpectExec(`UPDATE notifications`).
		WithArgs("n-1", "mallory").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkRead(context.Background(), "n-1", "mallory")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_OwnerMatch(t *testing.T) {
	db, mock, repo := setupMockNotificationsRepo(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM notifications`).
		WithArgs("n-1", "alice").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(context.Background(), "n-1", "alice")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkDelete_ReturnsAffected(t *testing.T) {
	db, mock, repo := setupMockNotificationsRepo(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM notifications`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	count, err := repo.BulkDelete(context.Background(), []string{"n-1", "n-2", "n-3"}, "alice")
	require.NoError(t, err)
	// 三个 ID 中只有两个属于 alice
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeOlderThan_AgePredicate(t *testing.T) {
	db, mock, repo := setupMockNotificationsRepo(t)
	defer db.Close()

	cutoff := time.Now().Add(-24 * time.Hour)
	mock.ExpectExec(`DELETE FROM notifications`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 5))

	count, err := repo.PurgeOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountUnread(t *testing.T) {
	db, mock, repo := setupMockNotificationsRepo(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountUnread(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
