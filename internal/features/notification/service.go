package notification

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type NotificationService interface {
	Notify(ctx context.Context, n Notification) error
	ListByUser(ctx context.Context, userID string, page, limit int64) ([]Notification, int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkAsRead(ctx context.Context, id string, userID string) error
	MarkAllAsRead(ctx context.Context, userID string) error
}

type NotificationServiceImpl struct {
	Repo   NotificationRepository
	Hub    *Hub
	Logger *zap.Logger
}

func NewNotificationService(repo NotificationRepository, hub *Hub, logger *zap.Logger) NotificationService {
	return &NotificationServiceImpl{
		Repo:   repo,
		Hub:    hub,
		Logger: logger,
	}
}

// Notify persists the notification and pushes it to connected clients. The
// push is best effort; persistence is the source of truth.
func (s *NotificationServiceImpl) Notify(ctx context.Context, n Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.Type == "" {
		n.Type = NotificationTypeInfo
	}

	if err := s.Repo.Create(ctx, &n); err != nil {
		return err
	}

	if s.Hub != nil {
		s.Hub.Broadcast(n)
	}
	return nil
}

func (s *NotificationServiceImpl) ListByUser(ctx context.Context, userID string, page, limit int64) ([]Notification, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	return s.Repo.ListByUser(ctx, userID, limit, (page-1)*limit)
}

func (s *NotificationServiceImpl) CountUnread(ctx context.Context, userID string) (int64, error) {
	return s.Repo.CountUnread(ctx, userID)
}

func (s *NotificationServiceImpl) MarkAsRead(ctx context.Context, id string, userID string) error {
	return s.Repo.MarkAsRead(ctx, id, userID)
}

func (s *NotificationServiceImpl) MarkAllAsRead(ctx context.Context, userID string) error {
	return s.Repo.MarkAllAsRead(ctx, userID)
}
