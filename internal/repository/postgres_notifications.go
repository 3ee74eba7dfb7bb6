package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-callcenter/internal/domain"

	"github.com/lib/pq"
)

// PostgresNotificationsRepository 通知Repository实现
type PostgresNotificationsRepository struct {
	db *sql.DB
}

// NewPostgresNotificationsRepository 创建通知Repository
func NewPostgresNotificationsRepository(db *sql.DB) *PostgresNotificationsRepository {
	return &PostgresNotificationsRepository{db: db}
}

// 确保实现了接口
var _ NotificationsRepository = (*PostgresNotificationsRepository)(nil)

const notificationColumns = `
	notification_id::text,
	owner_id,
	message,
	type,
	call_id::text,
	is_read,
	created_at`

func scanNotification(row rowScanner) (*domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(
		&n.NotificationID,
		&n.OwnerID,
		&n.Message,
		&n.Type,
		&n.CallID,
		&n.IsRead,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateNotifications 批量插入通知
func (r *PostgresNotificationsRepository) CreateNotifications(ctx context.Context, ns []*domain.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO notifications (notification_id, owner_id, message, type, call_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, n := range ns {
		_, err := stmt.ExecContext(ctx,
			n.NotificationID, n.OwnerID, n.Message, n.Type, n.CallID, n.IsRead, n.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert notification: %w", err)
		}
	}
	return tx.Commit()
}

// ListByOwner 某用户的全部通知（新到旧）
func (r *PostgresNotificationsRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE owner_id = $1
		ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var ns []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		ns = append(ns, n)
	}
	return ns, rows.Err()
}

// CountUnread 未读数量
func (r *PostgresNotificationsRepository) CountUnread(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE owner_id = $1 AND is_read = FALSE`,
		ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread: %w", err)
	}
	return count, nil
}

// MarkRead 标记已读（owner 作用域：非 owner 不命中任何行）
func (r *PostgresNotificationsRepository) MarkRead(ctx context.Context, notificationID, ownerID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE notification_id = $1 AND owner_id = $2`,
		notificationID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to mark read: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkAllRead 全部标记已读
func (r *PostgresNotificationsRepository) MarkAllRead(ctx context.Context, ownerID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE owner_id = $1 AND is_read = FALSE`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all read: %w", err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

// Delete 删除单条通知（owner 作用域）
func (r *PostgresNotificationsRepository) Delete(ctx context.Context, notificationID, ownerID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM notifications
		WHERE notification_id = $1 AND owner_id = $2`,
		notificationID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// BulkDelete 批量删除（owner 作用域，非 owner 的 ID 被忽略）
func (r *PostgresNotificationsRepository) BulkDelete(ctx context.Context, notificationIDs []string, ownerID string) (int, error) {
	if len(notificationIDs) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM notifications
		WHERE notification_id = ANY($1) AND owner_id = $2`,
		pq.Array(notificationIDs), ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk delete: %w", err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

// PurgeOlderThan 删除早于 cutoff 的通知（全量 owner，幂等）
func (r *PostgresNotificationsRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge notifications: %w", err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}
