package user

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/DHvyas/votales-api/pkg/database"
	"github.com/DHvyas/votales-api/pkg/models"
	"github.com/DHvyas/votales-api/pkg/tracing"
)

var userColumns = []string{"id", "display_name", "bio", "avatar_style", "created_at"}

// Repository handles user profile persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new user repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a user by ID
func (r *Repository) Get(ctx context.Context, id string) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "user.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(userColumns...)
	sb.From("users")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("user %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get user")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get user")
	}

	return &user, nil
}

// Upsert creates the profile row on first sight of a user and refreshes the
// display name otherwise. Identity comes from upstream, so there is no
// separate registration step.
func (r *Repository) Upsert(ctx context.Context, id string, displayName string, now time.Time) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "user.Repository.Upsert")
	defer span.End()

	query := `
		INSERT INTO users (id, display_name, avatar_style, created_at)
		VALUES ($1, $2, 'adventurer', $3)
		ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name
		RETURNING id, display_name, bio, avatar_style, created_at
	`

	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id, displayName, now); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("user_id", id).Error("Failed to upsert user")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert user")
	}

	return &user, nil
}

// Update applies profile edits and returns the updated row
func (r *Repository) Update(ctx context.Context, id string, req models.UpdateUserProfileRequest) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "user.Repository.Update")
	defer span.End()

	existing, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		existing.DisplayName = *req.DisplayName
	}
	if req.Bio != nil {
		existing.Bio = req.Bio
	}
	if req.AvatarStyle != nil {
		existing.AvatarStyle = *req.AvatarStyle
	}

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("users")
	sb.Set(
		sb.Assign("display_name", existing.DisplayName),
		sb.Assign("bio", existing.Bio),
		sb.Assign("avatar_style", existing.AvatarStyle),
	)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update user")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update user")
	}

	return existing, nil
}

// PurgeAccount runs the whole account-deletion write set in one transaction:
// the user's tales are anonymized (authorship cleared, display name replaced
// with ghostName, content untouched so every tree keeps its shape), their
// votes and notifications are removed, and the profile row goes last.
func (r *Repository) PurgeAccount(ctx context.Context, id string, ghostName string) error {
	ctx, span := tracing.StartSpan(ctx, "user.Repository.PurgeAccount")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("tales")
	ub.Set(
		ub.Assign("author_id", sqlbuilder.Raw("NULL")),
		ub.Assign("author_name", ghostName),
	)
	ub.Where(ub.Equal("author_id", id))
	query, args := ub.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("user_id", id).Error("Failed to anonymize tales")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to anonymize tales")
	}

	for _, table := range []string{"votes", "notifications"} {
		db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
		db.DeleteFrom(table)
		db.Where(db.Equal("user_id", id))
		query, args := db.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"user_id": id,
				"table":   table,
			}).Error("Failed to delete user rows")
			return httperror.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to delete %s", table))
		}
	}

	pb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	pb.DeleteFrom("users")
	pb.Where(pb.Equal("id", id))
	query, args = pb.Build()
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("user_id", id).Error("Failed to delete user")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete user")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("user %s not found", id))
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("user_id", id).Error("Failed to commit account purge")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"user_id": id}).Info("Purged user account")
	return nil
}

// Search finds users by display name, case insensitive, capped at 5 results
func (r *Repository) Search(ctx context.Context, q string) ([]models.UserSearchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "user.Repository.Search")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "display_name", "avatar_style")
	sb.From("users")
	sb.Where(sb.ILike("display_name", "%"+q+"%"))
	sb.OrderBy("display_name ASC")
	sb.Limit(5)

	query, args := sb.Build()
	var results []models.UserSearchResult
	if err := r.db.SelectContext(ctx, &results, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to search users")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to search users")
	}

	return results, nil
}
