package assembler

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DHvyas/votales-api/pkg/graph"
	"github.com/DHvyas/votales-api/pkg/models"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

type fakeTopology struct {
	nodes       map[string]*graph.Node
	rootOf      map[string]string
	children    map[string][]graph.ChildEdge
	rootIDs     []string
	descendants map[string][]graph.Node
	edges       []graph.Edge
}

func newFakeTopology() *fakeTopology {
	return &fakeTopology{
		nodes:       make(map[string]*graph.Node),
		rootOf:      make(map[string]string),
		children:    make(map[string][]graph.ChildEdge),
		descendants: make(map[string][]graph.Node),
	}
}

func (f *fakeTopology) GetNode(ctx context.Context, taleID string) (*graph.Node, error) {
	return f.nodes[taleID], nil
}

func (f *fakeTopology) ResolveRoot(ctx context.Context, taleID string) (string, error) {
	return f.rootOf[taleID], nil
}

func (f *fakeTopology) CountChildren(ctx context.Context, taleID string) (int64, error) {
	return int64(len(f.children[taleID])), nil
}

func (f *fakeTopology) Children(ctx context.Context, taleID string, skip int, limit int) ([]graph.ChildEdge, error) {
	edges := f.children[taleID]
	if skip >= len(edges) {
		return nil, nil
	}
	edges = edges[skip:]
	if len(edges) > limit {
		edges = edges[:limit]
	}
	return edges, nil
}

func (f *fakeTopology) RootIDs(ctx context.Context) ([]string, error) {
	return f.rootIDs, nil
}

func (f *fakeTopology) Descendants(ctx context.Context, rootID string) ([]graph.Node, error) {
	return f.descendants[rootID], nil
}

func (f *fakeTopology) EdgesWithin(ctx context.Context, ids []string) ([]graph.Edge, error) {
	within := make(map[string]bool, len(ids))
	for _, id := range ids {
		within[id] = true
	}
	var out []graph.Edge
	for _, e := range f.edges {
		if within[e.SourceID] && within[e.TargetID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeTopology) NodeTypes(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if n, ok := f.nodes[id]; ok {
			out[id] = n.Type
		}
	}
	return out, nil
}

type fakeContent struct {
	tales map[string]*models.Tale
}

func newFakeContent() *fakeContent {
	return &fakeContent{tales: make(map[string]*models.Tale)}
}

func (f *fakeContent) Get(ctx context.Context, id string) (*models.Tale, error) {
	tale, ok := f.tales[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "tale not found")
	}
	return tale, nil
}

func (f *fakeContent) Previews(ctx context.Context, ids []string) (map[string]models.TalePreview, error) {
	out := make(map[string]models.TalePreview, len(ids))
	for _, id := range ids {
		if tale, ok := f.tales[id]; ok {
			out[id] = models.TalePreview{
				Title:   tale.Title,
				Preview: models.Preview(tale.Content, 100),
			}
		}
	}
	return out, nil
}

func (f *fakeContent) ListRoots(ctx context.Context, rootIDs []string, sortBy string, page, pageSize int) ([]models.Tale, int, error) {
	var out []models.Tale
	for _, id := range rootIDs {
		if tale, ok := f.tales[id]; ok {
			out = append(out, *tale)
		}
	}
	return out, len(out), nil
}

func (f *fakeContent) Search(ctx context.Context, q string) ([]models.Tale, error) {
	return nil, nil
}

func (f *fakeContent) ListByAuthor(ctx context.Context, authorID string) ([]models.Tale, error) {
	var out []models.Tale
	for _, tale := range f.tales {
		if tale.AuthorID != nil && *tale.AuthorID == authorID {
			out = append(out, *tale)
		}
	}
	return out, nil
}

type fakeVotes struct {
	voted  map[string]bool // userID|taleID
	counts map[string]int
}

func newFakeVotes() *fakeVotes {
	return &fakeVotes{voted: make(map[string]bool), counts: make(map[string]int)}
}

func (f *fakeVotes) Exists(ctx context.Context, userID, taleID string) (bool, error) {
	return f.voted[userID+"|"+taleID], nil
}

func (f *fakeVotes) CountByTale(ctx context.Context, taleID string) (int, error) {
	return f.counts[taleID], nil
}

func (f *fakeVotes) CountsByTales(ctx context.Context, taleIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(taleIDs))
	for _, id := range taleIDs {
		out[id] = f.counts[id]
	}
	return out, nil
}

func newTestAssembler() (*Assembler, *fakeTopology, *fakeContent, *fakeVotes) {
	topology := newFakeTopology()
	content := newFakeContent()
	votes := newFakeVotes()
	return NewAssembler(topology, content, votes, getTestLogger()), topology, content, votes
}

func strPtr(s string) *string {
	return &s
}

func addTale(content *fakeContent, id, body string, title *string) {
	content.tales[id] = &models.Tale{
		ID:        id,
		Title:     title,
		Content:   body,
		CreatedAt: time.Now().UTC(),
	}
}

func TestGetTale_JoinsVotesAndChoices(t *testing.T) {
	asm, topology, content, votes := newTestAssembler()
	addTale(content, "tale-1", "Once upon a time", strPtr("The Door"))
	addTale(content, "child-a", "They went left", nil)
	addTale(content, "child-b", "They went right", nil)
	topology.children["tale-1"] = []graph.ChildEdge{
		{ID: "child-b", Votes: 5},
		{ID: "child-a", Votes: 2},
	}
	votes.counts["tale-1"] = 7
	votes.voted["viewer-1|tale-1"] = true

	resp, err := asm.GetTale(context.Background(), "tale-1", "viewer-1")
	require.NoError(t, err)

	assert.Equal(t, "tale-1", resp.ID)
	assert.Equal(t, 7, resp.Votes)
	assert.True(t, resp.HasVoted)
	require.Len(t, resp.Choices, 2)
	assert.Equal(t, "child-b", resp.Choices[0].ID)
	assert.Equal(t, 5, resp.Choices[0].Votes)
	assert.Equal(t, "They went right", resp.Choices[0].PreviewText)
	assert.Equal(t, "child-a", resp.Choices[1].ID)
}

func TestGetTale_AnonymousViewerSkipsVoteLookup(t *testing.T) {
	asm, _, content, votes := newTestAssembler()
	addTale(content, "tale-1", "Once upon a time", nil)
	votes.voted["|tale-1"] = true // a blank viewer must never match

	resp, err := asm.GetTale(context.Background(), "tale-1", "")
	require.NoError(t, err)
	assert.False(t, resp.HasVoted)
}

func TestListChoices_Paginates(t *testing.T) {
	asm, topology, content, _ := newTestAssembler()
	addTale(content, "tale-1", "root", nil)
	for _, id := range []string{"c1", "c2", "c3"} {
		addTale(content, id, "branch "+id, nil)
	}
	topology.children["tale-1"] = []graph.ChildEdge{
		{ID: "c1", Votes: 9},
		{ID: "c2", Votes: 4},
		{ID: "c3", Votes: 1},
	}

	page, err := asm.ListChoices(context.Background(), "tale-1", 2, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "c3", page.Items[0].ID)
}

func TestListRootTales_UsesTopologyRootIDs(t *testing.T) {
	asm, topology, content, _ := newTestAssembler()
	addTale(content, "root-1", "first story", nil)
	addTale(content, "root-2", "second story", nil)
	addTale(content, "branch-1", "a branch", nil)
	topology.rootIDs = []string{"root-1", "root-2"}

	page, err := asm.ListRootTales(context.Background(), "popular", 1, 10)
	require.NoError(t, err)

	assert.Equal(t, 2, page.TotalCount)
	require.Len(t, page.Items, 2)
	for _, tale := range page.Items {
		assert.NotEqual(t, "branch-1", tale.ID)
	}
}

func TestStoryMap_BuildsTreeFromRoot(t *testing.T) {
	asm, topology, content, _ := newTestAssembler()
	addTale(content, "root-1", "the beginning", strPtr("Genesis"))
	addTale(content, "child-1", "a continuation", nil)
	topology.nodes["root-1"] = &graph.Node{ID: "root-1", Type: graph.NodeTypeRoot}
	topology.nodes["child-1"] = &graph.Node{ID: "child-1", Type: graph.NodeTypeBranch}
	topology.rootOf["child-1"] = "root-1"
	topology.rootOf["root-1"] = "root-1"
	topology.descendants["root-1"] = []graph.Node{
		{ID: "root-1", Type: graph.NodeTypeRoot},
		{ID: "child-1", Type: graph.NodeTypeBranch},
	}
	topology.edges = []graph.Edge{{SourceID: "root-1", TargetID: "child-1", Votes: 3}}

	storyMap, err := asm.StoryMap(context.Background(), "child-1")
	require.NoError(t, err)

	require.Len(t, storyMap.Nodes, 2)
	assert.Equal(t, "Genesis", storyMap.Nodes[0].Label)
	assert.Equal(t, graph.NodeTypeRoot, storyMap.Nodes[0].Type)
	assert.Equal(t, "a continuation", storyMap.Nodes[1].Label)
	require.Len(t, storyMap.Edges, 1)
	assert.Equal(t, 3, storyMap.Edges[0].Votes)
}

func TestStoryMap_UnresolvedRootFallsBackToSelf(t *testing.T) {
	asm, topology, content, _ := newTestAssembler()
	addTale(content, "orphan-1", "a stranded subtree", nil)
	topology.nodes["orphan-1"] = &graph.Node{ID: "orphan-1", Type: graph.NodeTypeBranch}
	topology.descendants["orphan-1"] = []graph.Node{{ID: "orphan-1", Type: graph.NodeTypeBranch}}

	storyMap, err := asm.StoryMap(context.Background(), "orphan-1")
	require.NoError(t, err)
	require.Len(t, storyMap.Nodes, 1)
	assert.Equal(t, "orphan-1", storyMap.Nodes[0].ID)
}

func TestStoryMap_UnknownNodeNotFound(t *testing.T) {
	asm, _, _, _ := newTestAssembler()

	_, err := asm.StoryMap(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestMapLabel_Truncation(t *testing.T) {
	long := "This opening line keeps going well past the fifty character mark for sure"
	label := mapLabel(models.TalePreview{Preview: long})
	assert.Equal(t, long[:50]+"...", label)
	assert.Len(t, label, 53)

	short := mapLabel(models.TalePreview{Preview: "short body"})
	assert.Equal(t, "short body", short)

	titled := mapLabel(models.TalePreview{Title: strPtr("A Title"), Preview: long})
	assert.Equal(t, "A Title", titled)
}

func TestMapLabel_MultiByteTruncation(t *testing.T) {
	accented := strings.Repeat("é", 60)
	label := mapLabel(models.TalePreview{Preview: accented})
	assert.True(t, utf8.ValidString(label))
	assert.Equal(t, strings.Repeat("é", 50)+"...", label)
}

func TestAuthorTales_SplitsRootsAndBranches(t *testing.T) {
	asm, topology, content, votes := newTestAssembler()
	authorID := "author-1"
	content.tales["root-1"] = &models.Tale{ID: "root-1", AuthorID: &authorID, Content: "my story", CreatedAt: time.Now().UTC()}
	content.tales["branch-1"] = &models.Tale{ID: "branch-1", AuthorID: &authorID, Content: "my continuation", CreatedAt: time.Now().UTC()}
	topology.nodes["root-1"] = &graph.Node{ID: "root-1", Type: graph.NodeTypeRoot}
	topology.nodes["branch-1"] = &graph.Node{ID: "branch-1", Type: graph.NodeTypeBranch}
	votes.counts["root-1"] = 4
	votes.counts["branch-1"] = 1

	roots, branches, err := asm.AuthorTales(context.Background(), authorID)
	require.NoError(t, err)

	require.Len(t, roots, 1)
	assert.Equal(t, "root-1", roots[0].ID)
	assert.Equal(t, 4, roots[0].VotesReceived)
	require.Len(t, branches, 1)
	assert.Equal(t, "branch-1", branches[0].ID)
	assert.Equal(t, 1, branches[0].VotesReceived)
}
