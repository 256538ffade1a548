// Package tales is the write and read facade over the story graph: it owns
// tale creation, voting, editing and deletion entry points and delegates the
// multi-store mechanics to the rollup, assembler and deletion components.
package tales

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/DHvyas/votales-api/pkg/assembler"
	"github.com/DHvyas/votales-api/pkg/deletion"
	"github.com/DHvyas/votales-api/pkg/graph"
	"github.com/DHvyas/votales-api/pkg/models"
	"github.com/DHvyas/votales-api/pkg/rollup"
	"github.com/DHvyas/votales-api/pkg/tracing"
)

// ContentStore is the tale-content access the service needs directly
type ContentStore interface {
	Get(ctx context.Context, id string) (*models.Tale, error)
	Update(ctx context.Context, id string, req models.UpdateTaleRequest) (*models.Tale, error)
}

// Service coordinates tale operations across the story graph components
type Service struct {
	content   ContentStore
	aggregate *rollup.Aggregator
	assemble  *assembler.Assembler
	deletes   *deletion.Engine
	logger    ectologger.Logger
}

// NewService creates a new tale service
func NewService(content ContentStore, aggregate *rollup.Aggregator, assemble *assembler.Assembler, deletes *deletion.Engine, logger ectologger.Logger) *Service {
	return &Service{
		content:   content,
		aggregate: aggregate,
		assemble:  assemble,
		deletes:   deletes,
		logger:    logger,
	}
}

// CreateTale authors a new tale. With no parent it starts a new story tree;
// with a parent it becomes a branch and the parent's author is notified.
func (s *Service) CreateTale(ctx context.Context, req models.CreateTaleRequest) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "tales.Service.CreateTale")
	defer span.End()

	now := time.Now().UTC()
	authorID := req.AuthorID
	tale := &models.Tale{
		ID:         uuid.New().String(),
		AuthorID:   &authorID,
		Title:      req.Title,
		AuthorName: req.AuthorName,
		Content:    req.Content,
		CreatedAt:  now,
		Status:     models.TaleStatusPublished,
	}

	if req.ParentTaleID == nil {
		// A root is its own aggregate target from birth
		tale.LastActivityAt = &now
		if err := s.aggregate.CreateRoot(ctx, tale); err != nil {
			return "", err
		}
		return tale.ID, nil
	}

	parent, err := s.content.Get(ctx, *req.ParentTaleID)
	if err != nil {
		return "", err
	}

	if err := s.aggregate.CreateBranch(ctx, tale, parent, now); err != nil {
		if err == graph.ErrParentNotFound {
			return "", httperror.NewHTTPError(http.StatusNotFound, "parent tale not found")
		}
		return "", err
	}
	return tale.ID, nil
}

// GetTale returns the full read view of a tale for a viewer
func (s *Service) GetTale(ctx context.Context, taleID string, viewerID string) (*models.TaleResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "tales.Service.GetTale")
	defer span.End()

	return s.assemble.GetTale(ctx, taleID, viewerID)
}

// ListRootTales returns one page of story roots in the requested order
func (s *Service) ListRootTales(ctx context.Context, sortBy string, page, pageSize int) (*models.Page[models.Tale], error) {
	ctx, span := tracing.StartSpan(ctx, "tales.Service.ListRootTales")
	defer span.End()

	return s.assemble.ListRootTales(ctx, sortBy, page, pageSize)
}

// ListChoices returns one page of a tale's continuations by edge votes
func (s *Service) ListChoices(ctx context.Context, taleID string, page, pageSize int) (*models.Page[models.TaleChoice], error) {
	ctx, span := tracing.StartSpan(ctx, "tales.Service.ListChoices")
	defer span.End()

	return s.assemble.ListChoices(ctx, taleID, page, pageSize)
}

// Vote casts a vote on a tale. Returns false when the voter already voted;
// that is a no-op, not an error.
func (s *Service) Vote(ctx context.Context, taleID string, voterID string, voterName string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "tales.Service.Vote")
	defer span.End()

	tale, err := s.content.Get(ctx, taleID)
	if err != nil {
		return false, err
	}

	return s.aggregate.RecordVote(ctx, tale, voterID, voterName, time.Now().UTC())
}

// GetStoryMap returns the node and edge set of the tree containing the tale
func (s *Service) GetStoryMap(ctx context.Context, taleID string) (*models.StoryMap, error) {
	ctx, span := tracing.StartSpan(ctx, "tales.Service.GetStoryMap")
	defer span.End()

	return s.assemble.StoryMap(ctx, taleID)
}

// SearchTales finds tales matching the query text
func (s *Service) SearchTales(ctx context.Context, q string) ([]models.TaleResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "tales.Service.SearchTales")
	defer span.End()

	return s.assemble.Search(ctx, q)
}

// DeleteTale removes a tale on the permissive path: tombstone when it has
// branches, hard-remove a leaf. False means not found or not the author.
func (s *Service) DeleteTale(ctx context.Context, taleID string, callerID string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "tales.Service.DeleteTale")
	defer span.End()

	return s.deletes.Delete(ctx, taleID, callerID)
}

// DeleteTaleStrict removes a tale on the author-initiated path, rejecting
// deletion when branches exist
func (s *Service) DeleteTaleStrict(ctx context.Context, taleID string, callerID string) error {
	ctx, span := tracing.StartSpan(ctx, "tales.Service.DeleteTaleStrict")
	defer span.End()

	return s.deletes.DeleteStrict(ctx, taleID, callerID)
}

// UpdateTale applies author-only content edits
func (s *Service) UpdateTale(ctx context.Context, taleID string, callerID string, req models.UpdateTaleRequest) (*models.Tale, error) {
	ctx, span := tracing.StartSpan(ctx, "tales.Service.UpdateTale")
	defer span.End()

	tale, err := s.content.Get(ctx, taleID)
	if err != nil {
		return nil, err
	}
	if !tale.IsOwnedBy(callerID) {
		return nil, httperror.NewHTTPError(http.StatusForbidden, "only the author can edit this tale")
	}

	return s.content.Update(ctx, taleID, req)
}
