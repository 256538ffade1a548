// Package assembler composes read views by joining topology-store structure
// with content-store text and vote data. It never mutates state.
package assembler

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/DHvyas/votales-api/pkg/graph"
	"github.com/DHvyas/votales-api/pkg/models"
	"github.com/DHvyas/votales-api/pkg/tracing"
)

const (
	choiceLimit      = 10
	mapLabelLength   = 50
	choicePreviewMax = 100
)

// TopologyStore is the tree-shape reads the assembler needs
type TopologyStore interface {
	GetNode(ctx context.Context, taleID string) (*graph.Node, error)
	ResolveRoot(ctx context.Context, taleID string) (string, error)
	CountChildren(ctx context.Context, taleID string) (int64, error)
	Children(ctx context.Context, taleID string, skip int, limit int) ([]graph.ChildEdge, error)
	RootIDs(ctx context.Context) ([]string, error)
	Descendants(ctx context.Context, rootID string) ([]graph.Node, error)
	EdgesWithin(ctx context.Context, ids []string) ([]graph.Edge, error)
	NodeTypes(ctx context.Context, ids []string) (map[string]string, error)
}

// ContentStore is the tale-content reads the assembler needs
type ContentStore interface {
	Get(ctx context.Context, id string) (*models.Tale, error)
	Previews(ctx context.Context, ids []string) (map[string]models.TalePreview, error)
	ListRoots(ctx context.Context, rootIDs []string, sortBy string, page, pageSize int) ([]models.Tale, int, error)
	Search(ctx context.Context, q string) ([]models.Tale, error)
	ListByAuthor(ctx context.Context, authorID string) ([]models.Tale, error)
}

// VoteLedger is the vote reads the assembler needs
type VoteLedger interface {
	Exists(ctx context.Context, userID, taleID string) (bool, error)
	CountByTale(ctx context.Context, taleID string) (int, error)
	CountsByTales(ctx context.Context, taleIDs []string) (map[string]int, error)
}

// Assembler builds composite read views across both stores
type Assembler struct {
	topology TopologyStore
	content  ContentStore
	votes    VoteLedger
	logger   ectologger.Logger
}

// NewAssembler creates a new assembler
func NewAssembler(topology TopologyStore, content ContentStore, votes VoteLedger, logger ectologger.Logger) *Assembler {
	return &Assembler{
		topology: topology,
		content:  content,
		votes:    votes,
		logger:   logger,
	}
}

// GetTale builds the full read view of a tale: content, vote count, whether
// the viewer has voted, and the top continuation choices by edge votes.
func (a *Assembler) GetTale(ctx context.Context, taleID string, viewerID string) (*models.TaleResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "assembler.Assembler.GetTale")
	defer span.End()

	tale, err := a.content.Get(ctx, taleID)
	if err != nil {
		return nil, err
	}

	voteCount, err := a.votes.CountByTale(ctx, taleID)
	if err != nil {
		return nil, err
	}

	hasVoted := false
	if viewerID != "" {
		hasVoted, err = a.votes.Exists(ctx, viewerID, taleID)
		if err != nil {
			return nil, err
		}
	}

	choices, err := a.choices(ctx, taleID, 0, choiceLimit)
	if err != nil {
		return nil, err
	}

	return &models.TaleResponse{
		ID:             tale.ID,
		Title:          tale.Title,
		AuthorName:     tale.AuthorName,
		Content:        tale.Content,
		AuthorID:       tale.AuthorID,
		CreatedAt:      tale.CreatedAt,
		Votes:          voteCount,
		HasVoted:       hasVoted,
		SeriesVotes:    tale.SeriesVotes,
		LastActivityAt: tale.LastActivityAt,
		Choices:        choices,
	}, nil
}

// ListChoices returns one page of a tale's continuations ordered by edge
// votes descending. Ordering and pagination happen in the topology store;
// titles and previews are batch-fetched from the content store.
func (a *Assembler) ListChoices(ctx context.Context, taleID string, page, pageSize int) (*models.Page[models.TaleChoice], error) {
	ctx, span := tracing.StartSpan(ctx, "assembler.Assembler.ListChoices")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	total, err := a.topology.CountChildren(ctx, taleID)
	if err != nil {
		return nil, err
	}

	choices, err := a.choices(ctx, taleID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}

	return &models.Page[models.TaleChoice]{
		Items:      choices,
		TotalCount: int(total),
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

func (a *Assembler) choices(ctx context.Context, taleID string, skip, limit int) ([]models.TaleChoice, error) {
	children, err := a.topology.Children(ctx, taleID, skip, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(children))
	for _, child := range children {
		ids = append(ids, child.ID)
	}

	previews, err := a.content.Previews(ctx, ids)
	if err != nil {
		return nil, err
	}

	choices := make([]models.TaleChoice, 0, len(children))
	for _, child := range children {
		preview := previews[child.ID]
		choices = append(choices, models.TaleChoice{
			ID:          child.ID,
			Title:       preview.Title,
			Votes:       child.Votes,
			PreviewText: preview.Preview,
		})
	}
	return choices, nil
}

// ListRootTales returns one page of story roots. Candidate IDs come from the
// topology store; sorting, soft-delete filtering and pagination happen in the
// content store because only it has the aggregate and deletion fields.
func (a *Assembler) ListRootTales(ctx context.Context, sortBy string, page, pageSize int) (*models.Page[models.Tale], error) {
	ctx, span := tracing.StartSpan(ctx, "assembler.Assembler.ListRootTales")
	defer span.End()

	rootIDs, err := a.topology.RootIDs(ctx)
	if err != nil {
		return nil, err
	}

	tales, total, err := a.content.ListRoots(ctx, rootIDs, sortBy, page, pageSize)
	if err != nil {
		return nil, err
	}

	return &models.Page[models.Tale]{
		Items:      tales,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// StoryMap builds the full node and edge set of the tree containing taleID.
// When no root can be resolved above the node it is treated as its own root,
// so orphaned subtrees still render.
func (a *Assembler) StoryMap(ctx context.Context, taleID string) (*models.StoryMap, error) {
	ctx, span := tracing.StartSpan(ctx, "assembler.Assembler.StoryMap")
	defer span.End()

	node, err := a.topology.GetNode(ctx, taleID)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "tale not found in story graph")
	}

	rootID, err := a.topology.ResolveRoot(ctx, taleID)
	if err != nil {
		return nil, err
	}
	if rootID == "" {
		rootID = taleID
	}

	descendants, err := a.topology.Descendants(ctx, rootID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(descendants))
	for _, d := range descendants {
		ids = append(ids, d.ID)
	}

	edges, err := a.topology.EdgesWithin(ctx, ids)
	if err != nil {
		return nil, err
	}

	previews, err := a.content.Previews(ctx, ids)
	if err != nil {
		return nil, err
	}

	nodes := make([]models.MapNode, 0, len(descendants))
	for _, d := range descendants {
		nodes = append(nodes, models.MapNode{
			ID:    d.ID,
			Label: mapLabel(previews[d.ID]),
			Type:  d.Type,
		})
	}

	mapEdges := make([]models.MapEdge, 0, len(edges))
	for _, e := range edges {
		mapEdges = append(mapEdges, models.MapEdge{
			SourceID: e.SourceID,
			TargetID: e.TargetID,
			Votes:    e.Votes,
		})
	}

	return &models.StoryMap{
		Nodes: nodes,
		Edges: mapEdges,
	}, nil
}

// mapLabel prefers the title; untitled tales get a truncated body preview
func mapLabel(preview models.TalePreview) string {
	if preview.Title != nil && *preview.Title != "" {
		return *preview.Title
	}
	if runes := []rune(preview.Preview); len(runes) > mapLabelLength {
		return string(runes[:mapLabelLength]) + "..."
	}
	return preview.Preview
}

// Search finds tales matching the query text
func (a *Assembler) Search(ctx context.Context, q string) ([]models.TaleResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "assembler.Assembler.Search")
	defer span.End()

	tales, err := a.content.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	results := make([]models.TaleResponse, 0, len(tales))
	for _, t := range tales {
		results = append(results, models.TaleResponse{
			ID:             t.ID,
			Title:          t.Title,
			AuthorName:     t.AuthorName,
			Content:        t.Content,
			AuthorID:       t.AuthorID,
			CreatedAt:      t.CreatedAt,
			SeriesVotes:    t.SeriesVotes,
			LastActivityAt: t.LastActivityAt,
		})
	}
	return results, nil
}

// AuthorTales groups an author's tales into roots and branches using the
// topology store's type tags, with vote counts from the ledger.
func (a *Assembler) AuthorTales(ctx context.Context, authorID string) (roots []models.TaleSummary, branches []models.TaleSummary, err error) {
	ctx, span := tracing.StartSpan(ctx, "assembler.Assembler.AuthorTales")
	defer span.End()

	tales, err := a.content.ListByAuthor(ctx, authorID)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]string, 0, len(tales))
	for _, t := range tales {
		ids = append(ids, t.ID)
	}

	counts, err := a.votes.CountsByTales(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	nodeTypes, err := a.topology.NodeTypes(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	roots = make([]models.TaleSummary, 0)
	branches = make([]models.TaleSummary, 0)
	for _, t := range tales {
		summary := models.TaleSummary{
			ID:             t.ID,
			Title:          t.Title,
			ContentPreview: models.Preview(t.Content, choicePreviewMax),
			CreatedAt:      t.CreatedAt,
			VotesReceived:  counts[t.ID],
		}
		if nodeTypes[t.ID] == graph.NodeTypeRoot {
			roots = append(roots, summary)
		} else {
			branches = append(branches, summary)
		}
	}
	return roots, branches, nil
}
