package vote

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/DHvyas/votales-api/pkg/database"
	"github.com/DHvyas/votales-api/pkg/models"
	"github.com/DHvyas/votales-api/pkg/tracing"
)

// Repository is the vote ledger. The table carries a UNIQUE(user_id, tale_id)
// constraint; duplicate inserts are the idempotence mechanism, not a
// read-then-write check.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new vote repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a vote. Returns false with no error when the user has
// already voted on the tale.
func (r *Repository) Create(ctx context.Context, vote *models.Vote) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "vote.Repository.Create")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":  "Create",
		"user_id": vote.UserID,
		"tale_id": vote.TaleID,
	})

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("votes")
	sb.Cols("id", "user_id", "tale_id", "voted_at")
	sb.Values(vote.ID, vote.UserID, vote.TaleID, vote.VotedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			log.Debug("Duplicate vote ignored")
			return false, nil
		}
		log.WithError(err).Error("Failed to create vote")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create vote")
	}

	return true, nil
}

// Exists reports whether the user has voted on the tale
func (r *Repository) Exists(ctx context.Context, userID, taleID string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "vote.Repository.Exists")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("votes")
	sb.Where(
		sb.Equal("user_id", userID),
		sb.Equal("tale_id", taleID),
	)

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to check vote")
		return false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to check vote")
	}

	return count > 0, nil
}

// CountByTale returns the number of votes cast on a single tale
func (r *Repository) CountByTale(ctx context.Context, taleID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "vote.Repository.CountByTale")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("votes")
	sb.Where(sb.Equal("tale_id", taleID))

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count votes")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count votes")
	}

	return count, nil
}

// CountsByTales returns vote counts for many tales in one query. Tales with
// no votes are omitted.
func (r *Repository) CountsByTales(ctx context.Context, taleIDs []string) (map[string]int, error) {
	ctx, span := tracing.StartSpan(ctx, "vote.Repository.CountsByTales")
	defer span.End()

	counts := make(map[string]int)
	if len(taleIDs) == 0 {
		return counts, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("tale_id", "COUNT(*) AS count")
	sb.From("votes")
	sb.Where(sb.In("tale_id", sqlbuilder.Flatten(taleIDs)...))
	sb.GroupBy("tale_id")

	query, args := sb.Build()
	var rows []struct {
		TaleID string `db:"tale_id"`
		Count  int    `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count votes by tale")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count votes by tale")
	}

	for _, row := range rows {
		counts[row.TaleID] = row.Count
	}
	return counts, nil
}

// VotesForAuthor returns the total votes received across all of a user's
// tales. Used for profile stats.
func (r *Repository) VotesForAuthor(ctx context.Context, authorID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "vote.Repository.VotesForAuthor")
	defer span.End()

	query := `
		SELECT COUNT(*)
		FROM votes v
		JOIN tales t ON t.id = v.tale_id
		WHERE t.author_id = $1
	`

	var count int
	if err := r.db.GetContext(ctx, &count, query, authorID); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count author votes")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count author votes")
	}

	return count, nil
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
