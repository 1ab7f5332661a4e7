package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
)

type NotificationRepository struct{ s *Store }

func (r *NotificationRepository) Create(_ context.Context, n *models.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if n.Priority == "" {
		n.Priority = models.NotificationPriorityMedium
	}
	r.s.stampLocked(&n.BaseModel)
	r.s.notifications[n.ID] = *n
	return nil
}

func (r *NotificationRepository) GetByID(_ context.Context, recipientID, id uuid.UUID) (*models.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n, ok := r.s.notifications[id]
	if !ok || n.RecipientID != recipientID {
		return nil, notFound("notification")
	}
	return &n, nil
}

func (r *NotificationRepository) List(_ context.Context, recipientID uuid.UUID, filter repository.NotificationFilter) ([]models.Notification, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []models.Notification
	for _, n := range r.s.notifications {
		if !visible(n, recipientID) {
			continue
		}
		if filter.UnreadOnly && n.IsRead {
			continue
		}
		if filter.Type != "" && n.Type != filter.Type {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return r.s.newerFirst(out[i].BaseModel, out[j].BaseModel) })

	return window(out, filter.Page), int64(len(out)), nil
}

func (r *NotificationRepository) CountUnread(_ context.Context, recipientID uuid.UUID) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var count int64
	for _, n := range r.s.notifications {
		if visible(n, recipientID) && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *NotificationRepository) Update(_ context.Context, n *models.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.notifications[n.ID]; !ok {
		return notFound("notification")
	}
	n.UpdatedAt = time.Now().UTC()
	r.s.notifications[n.ID] = *n
	return nil
}

func (r *NotificationRepository) MarkAllRead(_ context.Context, recipientID uuid.UUID, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var count int64
	for id, n := range r.s.notifications {
		if !visible(n, recipientID) || n.IsRead {
			continue
		}
		readAt := at
		n.IsRead, n.ReadAt = true, &readAt
		r.s.notifications[id] = n
		count++
	}
	return count, nil
}

func (r *NotificationRepository) ArchiveBefore(_ context.Context, cutoff, at time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var count int64
	for id, n := range r.s.notifications {
		if n.ArchivedAt != nil || !n.CreatedAt.Before(cutoff) || !(n.IsRead || n.IsDismissed) {
			continue
		}
		archivedAt := at
		n.ArchivedAt = &archivedAt
		r.s.notifications[id] = n
		count++
	}
	return count, nil
}

func visible(n models.Notification, recipientID uuid.UUID) bool {
	return n.RecipientID == recipientID && !n.IsDismissed && n.ArchivedAt == nil
}
