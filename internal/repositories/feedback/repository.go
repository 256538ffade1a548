package feedback

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/DHvyas/votales-api/pkg/database"
	"github.com/DHvyas/votales-api/pkg/models"
	"github.com/DHvyas/votales-api/pkg/tracing"
)

// Repository handles feedback persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new feedback repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a feedback row
func (r *Repository) Create(ctx context.Context, f *models.Feedback) error {
	ctx, span := tracing.StartSpan(ctx, "feedback.Repository.Create")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("feedback")
	sb.Cols("id", "user_email", "message", "submitted_at")
	sb.Values(f.ID, f.UserEmail, f.Message, f.SubmittedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create feedback")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create feedback")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"id": f.ID}).Info("Created feedback")
	return nil
}
