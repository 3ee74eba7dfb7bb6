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

func setupMockCallsRepo(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *PostgresCallsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewPostgresCallsRepository(db)
}

var callTestColumns = []string{
	"call_id", "customer_id", "customer_name", "phone", "problem", "category",
	"status", "assigned_to", "assigned_by", "assigned_at", "created_by",
	"completed_by", "completed_at", "remark", "engineer_remark",
	"call_count", "last_called_at", "created_at", "updated_at",
}

func pendingCallRow(callID string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(callTestColumns).AddRow(
		callID, "cust-1", "Alice", "5551234", "No dial tone", "Technical Support",
		"PENDING", nil, nil, nil, "alice",
		nil, nil, nil, nil,
		1, nil, now, now,
	)
}

func TestCreateCall_UpsertsCustomerAndInsertsCall(t *testing.T) {
	db, mock, repo := setupMockCallsRepo(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO customers`).
		WithArgs(sqlmock.AnyArg(), "5551234", "Alice", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"customer_id"}).AddRow("cust-1"))
	mock.ExpectQuery(`INSERT INTO calls`).
		WillReturnRows(pendingCallRow("call-1"))
	mock.ExpectCommit()

	created, err := repo.CreateCall(context.Background(),
		&domain.Customer{Phone: "5551234", CustomerName: "Alice"},
		&domain.Call{
			Problem:   "No dial tone",
			Category:  "Technical Support",
			Status:    domain.CallStatusPending,
			CreatedBy: "alice",
		})

	require.NoError(t, err)
	assert.Equal(t, "call-1", created.CallID)
	assert.Equal(t, domain.CallStatusPending, created.Status)
	assert.Equal(t, 1, created.CallCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCall_CustomerUpsertFailureRollsBack(t *testing.T) {
	db, mock, repo := setupMockCallsRepo(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO customers`).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := repo.CreateCall(context.Background(),
		&domain.Customer{Phone: "5551234", CustomerName: "Alice"},
		&domain.Call{Problem: "p", Category: "c", Status: domain.CallStatusPending, CreatedBy: "alice"})

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignCall_Success(t *testing.T) {
	db, mock, repo := setupMockCallsRepo(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(callTestColumns).AddRow(
		"call-1", "cust-1", "Alice", "5551234", "No dial tone", "Technical Support",
		"ASSIGNED", "bob", "carol", now, "alice",
		nil, nil, nil, "check the line", 1, nil, now, now,
	)
	remark := "check the line"
	mock.ExpectQuery(`UPDATE calls`).
		WithArgs("call-1", "bob", "carol", &remark).
		WillReturnRows(rows)

	call, err := repo.AssignCall(context.Background(), "call-1", "bob", "carol", &remark)

	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusAssigned, call.Status)
	assert.Equal(t, "bob", call.AssignedTo.String)
	assert.Equal(t, "carol", call.AssignedBy.String)
	assert.Equal(t, "check the line", call.EngineerRemark.String)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignCall_CompletedGuardReturnsNoRows(t *testing.T) {
	db, mock, repo := setupMockCallsRepo(t)
	defer db.Close()

	// 状态守卫不命中：conditional UPDATE 返回零行
	mock.ExpectQuery(`UPDATE calls`).
		WithArgs("call-1", "bob", "carol", nil).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.AssignCall(context.Background(), "call-1", "bob", "carol", nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteCall_Success(t *testing.T) {
	db, mock, repo := setupMockCallsRepo(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(callTestColumns).AddRow(
		"call-1", "cust-1", "Alice", "5551234", "No dial tone", "Technical Support",
		"COMPLETED", "bob", "carol", now, "alice",
		"bob", now, "fixed", nil, 1, nil, now, now,
	)
	remark := "fixed"
	mock.ExpectQuery(`UPDATE calls`).
		WithArgs("call-1", "bob", &remark).
		WillReturnRows(rows)

	call, err := repo.CompleteCall(context.Background(), "call-1", "bob", &remark)

	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusCompleted, call.Status)
	assert.Equal(t, "bob", call.CompletedBy.String)
	assert.True(t, call.CompletedAt.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementCallCount_UpdatesCallAndCustomer(t *testing.T) {
	db, mock, repo := setupMockCallsRepo(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows(callTestColumns).AddRow(
		"call-1", "cust-1", "Alice", "5551234", "No dial tone", "Technical Support",
		"PENDING", nil, nil, nil, "alice",
		nil, nil, nil, nil, 2, now, now, now,
	)
	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE calls`).
		WithArgs("call-1").
		WillReturnRows(rows)
	mock.ExpectExec(`UPDATE customers`).
		WithArgs("cust-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	call, err := repo.IncrementCallCount(context.Background(), "call-1")

	require.NoError(t, err)
	assert.Equal(t, 2, call.CallCount)
	assert.True(t, call.LastCalledAt.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOpenCall_Found(t *testing.T) {
	db, mock, repo := setupMockCallsRepo(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT(.|\n)*FROM calls`).
		WithArgs("5551234", "Technical Support").
		WillReturnRows(pendingCallRow("call-1"))

	call, err := repo.FindOpenCall(context.Background(), "5551234", "Technical Support")

	require.NoError(t, err)
	assert.Equal(t, "call-1", call.CallID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOpenCall_NoneReturnsNoRows(t *testing.T) {
	db, mock, repo := setupMockCallsRepo(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT(.|\n)*FROM calls`).
		WithArgs("5551234", "Technical Support").
		WillReturnRows(sqlmock.NewRows(callTestColumns))

	_, err := repo.FindOpenCall(context.Background(), "5551234", "Technical Support")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClearAssignment_ResetsToPending(t *testing.T) {
	db, mock, repo := setupMockCallsRepo(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE calls`).
		WithArgs("call-1").
		WillReturnRows(pendingCallRow("call-1"))

	call, err := repo.ClearAssignment(context.Background(), "call-1")

	require.NoError(t, err)
	assert.Equal(t, domain.CallStatusPending, call.Status)
	assert.False(t, call.AssignedTo.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}
