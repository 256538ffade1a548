package notification

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/DHvyas/votales-api/pkg/database"
	"github.com/DHvyas/votales-api/pkg/models"
	"github.com/DHvyas/votales-api/pkg/tracing"
)

var notificationColumns = []string{"id", "user_id", "triggered_by_id", "triggered_by_name", "type", "message", "related_tale_id", "is_read", "created_at"}

// Repository handles notification persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new notification repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a notification
func (r *Repository) Create(ctx context.Context, n *models.Notification) error {
	ctx, span := tracing.StartSpan(ctx, "notification.Repository.Create")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("notifications")
	sb.Cols(notificationColumns...)
	sb.Values(n.ID, n.UserID, n.TriggeredByID, n.TriggeredByName, n.Type, n.Message, n.RelatedTaleID, n.IsRead, n.CreatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("user_id", n.UserID).Error("Failed to create notification")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create notification")
	}

	return nil
}

// ListUnread retrieves a user's unread notifications, newest first
func (r *Repository) ListUnread(ctx context.Context, userID string) ([]models.Notification, error) {
	ctx, span := tracing.StartSpan(ctx, "notification.Repository.ListUnread")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(notificationColumns...)
	sb.From("notifications")
	sb.Where(
		sb.Equal("user_id", userID),
		sb.Equal("is_read", false),
	)
	sb.OrderBy("created_at DESC")

	query, args := sb.Build()
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list notifications")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list notifications")
	}

	return notifications, nil
}

// MarkRead marks a single notification read. Scoped to the user so one user
// cannot ack another's notifications.
func (r *Repository) MarkRead(ctx context.Context, userID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "notification.Repository.MarkRead")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("notifications")
	sb.Set(sb.Assign("is_read", true))
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("user_id", userID),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to mark notification read")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark notification read")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("notification %s not found", id))
	}

	return nil
}

// MarkAllRead marks every unread notification for a user read
func (r *Repository) MarkAllRead(ctx context.Context, userID string) error {
	ctx, span := tracing.StartSpan(ctx, "notification.Repository.MarkAllRead")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("notifications")
	sb.Set(sb.Assign("is_read", true))
	sb.Where(
		sb.Equal("user_id", userID),
		sb.Equal("is_read", false),
	)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to mark notifications read")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to mark notifications read")
	}

	return nil
}
