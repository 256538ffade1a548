package tale

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

// Sort orders for root tale listings
const (
	SortPopular  = "popular"
	SortTrending = "trending"
	SortRecent   = "recent"
	SortNewest   = "newest"
)

const previewLength = 100

var taleColumns = []string{"id", "author_id", "title", "author_name", "content", "created_at", "status", "is_deleted", "series_votes", "last_activity_at", "trending_score"}

// Repository handles tale content persistence. Tree shape lives in the
// topology store; this table only knows about text and rollup counters.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new tale repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a tale row
func (r *Repository) Create(ctx context.Context, tale *models.Tale) error {
	ctx, span := tracing.StartSpan(ctx, "tale.Repository.Create")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":  "Create",
		"tale_id": tale.ID,
	})

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("tales")
	sb.Cols(taleColumns...)
	sb.Values(tale.ID, tale.AuthorID, tale.Title, tale.AuthorName, tale.Content, tale.CreatedAt, tale.Status, tale.IsDeleted, tale.SeriesVotes, tale.LastActivityAt, tale.TrendingScore)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to create tale")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create tale")
	}

	log.Info("Created tale")
	return nil
}

// Get retrieves a tale by ID. Tombstoned tales are returned as stored; the
// caller decides how to present them.
func (r *Repository) Get(ctx context.Context, id string) (*models.Tale, error) {
	ctx, span := tracing.StartSpan(ctx, "tale.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(taleColumns...)
	sb.From("tales")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var tale models.Tale
	if err := r.db.GetContext(ctx, &tale, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("tale %s not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get tale")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get tale")
	}

	return &tale, nil
}

// Previews fetches title and a truncated body for each of the given IDs in
// one query. Used to hydrate topology-store results.
func (r *Repository) Previews(ctx context.Context, ids []string) (map[string]models.TalePreview, error) {
	ctx, span := tracing.StartSpan(ctx, "tale.Repository.Previews")
	defer span.End()

	previews := make(map[string]models.TalePreview)
	if len(ids) == 0 {
		return previews, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "title", "content")
	sb.From("tales")
	sb.Where(sb.In("id", sqlbuilder.Flatten(ids)...))

	query, args := sb.Build()
	var rows []struct {
		ID      string  `db:"id"`
		Title   *string `db:"title"`
		Content string  `db:"content"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to fetch tale previews")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to fetch tale previews")
	}

	for _, row := range rows {
		previews[row.ID] = models.TalePreview{
			Title:   row.Title,
			Preview: models.Preview(row.Content, previewLength),
		}
	}
	return previews, nil
}

// ListRoots retrieves one page of the given root tales, excluding deleted
// ones, ordered by the requested sort. Unknown sorts fall back to popular.
func (r *Repository) ListRoots(ctx context.Context, rootIDs []string, sortBy string, page, pageSize int) ([]models.Tale, int, error) {
	ctx, span := tracing.StartSpan(ctx, "tale.Repository.ListRoots")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	if len(rootIDs) == 0 {
		return []models.Tale{}, 0, nil
	}

	countSb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countSb.Select("COUNT(*)")
	countSb.From("tales")
	countSb.Where(
		countSb.In("id", sqlbuilder.Flatten(rootIDs)...),
		countSb.Equal("is_deleted", false),
	)

	countQuery, countArgs := countSb.Build()
	var totalCount int
	if err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count root tales")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count root tales")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(taleColumns...)
	sb.From("tales")
	sb.Where(
		sb.In("id", sqlbuilder.Flatten(rootIDs)...),
		sb.Equal("is_deleted", false),
	)

	switch sortBy {
	case SortTrending, SortRecent:
		// Roots with no activity yet sort by their creation time
		sb.OrderBy("COALESCE(last_activity_at, created_at) DESC")
	case SortNewest:
		sb.OrderBy("created_at DESC")
	default:
		sb.OrderBy("series_votes DESC", "COALESCE(last_activity_at, created_at) DESC")
	}
	sb.Limit(pageSize).Offset(offset)

	query, args := sb.Build()
	var tales []models.Tale
	if err := r.db.SelectContext(ctx, &tales, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list root tales")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list root tales")
	}

	return tales, totalCount, nil
}

// ListByIDs fetches tale rows for the given IDs in one query. Deleted tales
// are excluded; missing IDs are silently skipped.
func (r *Repository) ListByIDs(ctx context.Context, ids []string) ([]models.Tale, error) {
	ctx, span := tracing.StartSpan(ctx, "tale.Repository.ListByIDs")
	defer span.End()

	if len(ids) == 0 {
		return []models.Tale{}, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(taleColumns...)
	sb.From("tales")
	sb.Where(
		sb.In("id", sqlbuilder.Flatten(ids)...),
		sb.Equal("is_deleted", false),
	)

	query, args := sb.Build()
	var tales []models.Tale
	if err := r.db.SelectContext(ctx, &tales, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list tales by id")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list tales by id")
	}

	return tales, nil
}

// IncrementSeriesVotes bumps a root's tree-wide vote counter and stamps
// last_activity_at. The increment is done in SQL so concurrent rollups
// cannot lose updates.
func (r *Repository) IncrementSeriesVotes(ctx context.Context, rootID string, at time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "tale.Repository.IncrementSeriesVotes")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("tales")
	sb.Set(
		sb.Add("series_votes", 1),
		sb.Assign("last_activity_at", at),
	)
	sb.Where(sb.Equal("id", rootID))

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("root_id", rootID).Error("Failed to increment series votes")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to increment series votes")
	}

	return nil
}

// SetLastActivity stamps a root's last_activity_at
func (r *Repository) SetLastActivity(ctx context.Context, rootID string, at time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "tale.Repository.SetLastActivity")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("tales")
	sb.Set(sb.Assign("last_activity_at", at))
	sb.Where(sb.Equal("id", rootID))

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("root_id", rootID).Error("Failed to set last activity")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set last activity")
	}

	return nil
}

// SetTrendingScore persists a recomputed trending score for a root
func (r *Repository) SetTrendingScore(ctx context.Context, rootID string, score float64) error {
	ctx, span := tracing.StartSpan(ctx, "tale.Repository.SetTrendingScore")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("tales")
	sb.Set(sb.Assign("trending_score", score))
	sb.Where(sb.Equal("id", rootID))

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("root_id", rootID).Error("Failed to set trending score")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set trending score")
	}

	return nil
}

// Update applies content edits to a tale
func (r *Repository) Update(ctx context.Context, id string, req models.UpdateTaleRequest) (*models.Tale, error) {
	ctx, span := tracing.StartSpan(ctx, "tale.Repository.Update")
	defer span.End()

	existing, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		existing.Title = req.Title
	}
	if req.Content != nil {
		existing.Content = *req.Content
	}

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("tales")
	sb.Set(
		sb.Assign("title", existing.Title),
		sb.Assign("content", existing.Content),
	)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update tale")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update tale")
	}

	return existing, nil
}

// Tombstone replaces a tale's content and authorship with fixed placeholder
// values and marks it deleted. The title and the row itself stay so descendant
// chapters keep a readable chain up to their root.
func (r *Repository) Tombstone(ctx context.Context, id string, content string, authorName string) error {
	ctx, span := tracing.StartSpan(ctx, "tale.Repository.Tombstone")
	defer span.End()

	query, args := tombstoneQuery(id, content, authorName)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to tombstone tale")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to tombstone tale")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("tale %s not found", id))
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"tale_id": id}).Info("Tombstoned tale")
	return nil
}

// tombstoneQuery clears content and authorship only; the title survives so
// story maps and choice lists keep a label for the tombstoned chapter.
func tombstoneQuery(id string, content string, authorName string) (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("tales")
	sb.Set(
		sb.Assign("content", content),
		sb.Assign("author_name", authorName),
		sb.Assign("author_id", sqlbuilder.Raw("NULL")),
		sb.Assign("is_deleted", true),
	)
	sb.Where(sb.Equal("id", id))
	return sb.Build()
}

// Delete removes a tale row entirely. Only used for leaves; interior tales
// are tombstoned instead.
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "tale.Repository.Delete")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	sb.DeleteFrom("tales")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to delete tale")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete tale")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("tale %s not found", id))
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"tale_id": id}).Info("Deleted tale")
	return nil
}

// DeleteWithVotes removes a tale row and every vote referencing it in one
// transaction, so a failure partway through never leaves orphaned vote rows.
func (r *Repository) DeleteWithVotes(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "tale.Repository.DeleteWithVotes")
	defer span.End()

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	vb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	vb.DeleteFrom("votes")
	vb.Where(vb.Equal("tale_id", id))
	query, args := vb.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("tale_id", id).Error("Failed to delete tale votes")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete tale votes")
	}

	tb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	tb.DeleteFrom("tales")
	tb.Where(tb.Equal("id", id))
	query, args = tb.Build()
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("tale_id", id).Error("Failed to delete tale")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete tale")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("tale %s not found", id))
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("tale_id", id).Error("Failed to commit tale delete")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"tale_id": id}).Info("Deleted tale and votes")
	return nil
}

// Search finds non-deleted tales whose title, content or author name
// contains the query, case insensitive, capped at 20 results
func (r *Repository) Search(ctx context.Context, q string) ([]models.Tale, error) {
	ctx, span := tracing.StartSpan(ctx, "tale.Repository.Search")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(taleColumns...)
	sb.From("tales")
	pattern := "%" + q + "%"
	sb.Where(
		sb.Or(
			sb.ILike("title", pattern),
			sb.ILike("content", pattern),
			sb.ILike("author_name", pattern),
		),
		sb.Equal("is_deleted", false),
	)
	sb.OrderBy("series_votes DESC", "created_at DESC")
	sb.Limit(20)

	query, args := sb.Build()
	var tales []models.Tale
	if err := r.db.SelectContext(ctx, &tales, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to search tales")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to search tales")
	}

	return tales, nil
}

// ListByAuthor retrieves all non-deleted tales written by a user, newest first
func (r *Repository) ListByAuthor(ctx context.Context, authorID string) ([]models.Tale, error) {
	ctx, span := tracing.StartSpan(ctx, "tale.Repository.ListByAuthor")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(taleColumns...)
	sb.From("tales")
	sb.Where(
		sb.Equal("author_id", authorID),
		sb.Equal("is_deleted", false),
	)
	sb.OrderBy("created_at DESC")

	query, args := sb.Build()
	var tales []models.Tale
	if err := r.db.SelectContext(ctx, &tales, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list tales by author")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list tales by author")
	}

	return tales, nil
}

// SetAuthorName propagates a changed display name onto all of a user's tales
func (r *Repository) SetAuthorName(ctx context.Context, authorID string, name string) error {
	ctx, span := tracing.StartSpan(ctx, "tale.Repository.SetAuthorName")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("tales")
	sb.Set(sb.Assign("author_name", name))
	sb.Where(sb.Equal("author_id", authorID))

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("author_id", authorID).Error("Failed to set author name")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to set author name")
	}

	return nil
}
