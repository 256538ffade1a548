package notifications

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/DHvyas/votales-api/pkg/models"
	"github.com/DHvyas/votales-api/pkg/tracing"
)

// Store is the notification persistence the service needs
type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	ListUnread(ctx context.Context, userID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) error
}

// Service creates and serves in-app notifications
type Service struct {
	store  Store
	logger ectologger.Logger
}

// NewService creates a new notification service
func NewService(store Store, logger ectologger.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Notify records a notification for recipientID. Self-notifications are
// suppressed: when the recipient is the triggering actor no row is written.
func (s *Service) Notify(ctx context.Context, recipientID, actorID, actorName, notifType, message string, relatedTaleID *string) error {
	ctx, span := tracing.StartSpan(ctx, "notifications.Service.Notify")
	defer span.End()

	if recipientID == actorID {
		return nil
	}

	n := &models.Notification{
		ID:              uuid.New().String(),
		UserID:          recipientID,
		TriggeredByID:   actorID,
		TriggeredByName: actorName,
		Type:            notifType,
		Message:         message,
		RelatedTaleID:   relatedTaleID,
		IsRead:          false,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.store.Create(ctx, n); err != nil {
		return err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"recipient_id": recipientID,
		"type":         notifType,
	}).Debug("Created notification")
	return nil
}

// ListUnread returns the caller's unread notifications, newest first
func (s *Service) ListUnread(ctx context.Context, userID string) ([]models.Notification, error) {
	ctx, span := tracing.StartSpan(ctx, "notifications.Service.ListUnread")
	defer span.End()

	return s.store.ListUnread(ctx, userID)
}

// MarkRead acknowledges a single notification
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "notifications.Service.MarkRead")
	defer span.End()

	return s.store.MarkRead(ctx, userID, id)
}

// MarkAllRead acknowledges all of the caller's unread notifications
func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	ctx, span := tracing.StartSpan(ctx, "notifications.Service.MarkAllRead")
	defer span.End()

	return s.store.MarkAllRead(ctx, userID)
}
