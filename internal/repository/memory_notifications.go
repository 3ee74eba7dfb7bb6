package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"wisefido-callcenter/internal/domain"
)

// MemoryNotificationsRepo supports local dev and unit tests when DB is disabled.
type MemoryNotificationsRepo struct {
	mu            sync.RWMutex
	notifications map[string]*domain.Notification // notificationID -> notification
}

func NewMemoryNotificationsRepo() *MemoryNotificationsRepo {
	return &MemoryNotificationsRepo{
		notifications: map[string]*domain.Notification{},
	}
}

// 确保实现了接口
var _ NotificationsRepository = (*MemoryNotificationsRepo)(nil)

func (r *MemoryNotificationsRepo) CreateNotifications(_ context.Context, ns []*domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, n := range ns {
		cp := *n
		r.notifications[cp.NotificationID] = &cp
	}
	return nil
}

func (r *MemoryNotificationsRepo) ListByOwner(_ context.Context, ownerID string) ([]*domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ns []*domain.Notification
	for _, n := range r.notifications {
		if n.OwnerID == ownerID {
			cp := *n
			ns = append(ns, &cp)
		}
	}
	sort.Slice(ns, func(i, j int) bool {
		return ns[i].CreatedAt.After(ns[j].CreatedAt)
	})
	return ns, nil
}

func (r *MemoryNotificationsRepo) CountUnread(_ context.Context, ownerID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, n := range r.notifications {
		if n.OwnerID == ownerID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *MemoryNotificationsRepo) MarkRead(_ context.Context, notificationID, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[notificationID]
	if !ok || n.OwnerID != ownerID {
		return sql.ErrNoRows
	}
	n.IsRead = true
	return nil
}

func (r *MemoryNotificationsRepo) MarkAllRead(_ context.Context, ownerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, n := range r.notifications {
		if n.OwnerID == ownerID && !n.IsRead {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

func (r *MemoryNotificationsRepo) Delete(_ context.Context, notificationID, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[notificationID]
	if !ok || n.OwnerID != ownerID {
		return sql.ErrNoRows
	}
	delete(r.notifications, notificationID)
	return nil
}

func (r *MemoryNotificationsRepo) BulkDelete(_ context.Context, notificationIDs []string, ownerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, id := range notificationIDs {
		if n, ok := r.notifications[id]; ok && n.OwnerID == ownerID {
			delete(r.notifications, id)
			count++
		}
	}
	return count, nil
}

func (r *MemoryNotificationsRepo) PurgeOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for id, n := range r.notifications {
		if n.CreatedAt.Before(cutoff) {
			delete(r.notifications, id)
			count++
		}
	}
	return count, nil
}
