package deletion

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DHvyas/votales-api/pkg/models"
)

type fakeTopology struct {
	childCounts map[string]int64
	detached    []string
	detachErr   error
	order       *[]string
}

func (f *fakeTopology) CountChildren(ctx context.Context, taleID string) (int64, error) {
	return f.childCounts[taleID], nil
}

func (f *fakeTopology) DetachDelete(ctx context.Context, taleID string) error {
	if f.detachErr != nil {
		return f.detachErr
	}
	f.detached = append(f.detached, taleID)
	if f.order != nil {
		*f.order = append(*f.order, "topology")
	}
	return nil
}

type tombstoneCall struct {
	ID         string
	Content    string
	AuthorName string
}

type fakeContent struct {
	tales      map[string]*models.Tale
	tombstones []tombstoneCall
	deleted    []string
	order      *[]string
}

func (f *fakeContent) Get(ctx context.Context, id string) (*models.Tale, error) {
	tale, ok := f.tales[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "tale not found")
	}
	return tale, nil
}

func (f *fakeContent) Tombstone(ctx context.Context, id string, content string, authorName string) error {
	f.tombstones = append(f.tombstones, tombstoneCall{ID: id, Content: content, AuthorName: authorName})
	return nil
}

func (f *fakeContent) DeleteWithVotes(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	if f.order != nil {
		*f.order = append(*f.order, "content")
	}
	return nil
}

type purgeCall struct {
	UserID    string
	GhostName string
}

type fakeAccounts struct {
	purged []purgeCall
	err    error
}

func (f *fakeAccounts) PurgeAccount(ctx context.Context, userID string, ghostName string) error {
	if f.err != nil {
		return f.err
	}
	f.purged = append(f.purged, purgeCall{UserID: userID, GhostName: ghostName})
	return nil
}

type testFixture struct {
	engine   *Engine
	topology *fakeTopology
	content  *fakeContent
	accounts *fakeAccounts
}

func newTestEngine() *testFixture {
	topology := &fakeTopology{childCounts: make(map[string]int64)}
	content := &fakeContent{tales: make(map[string]*models.Tale)}
	accounts := &fakeAccounts{}
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	return &testFixture{
		engine:   NewEngine(topology, content, accounts, logger),
		topology: topology,
		content:  content,
		accounts: accounts,
	}
}

func strPtr(s string) *string {
	return &s
}

func TestDelete_LeafRemovedFromBothStores(t *testing.T) {
	f := newTestEngine()
	f.content.tales["leaf-1"] = &models.Tale{ID: "leaf-1", AuthorID: strPtr("author-1")}
	var order []string
	f.topology.order = &order
	f.content.order = &order

	deleted, err := f.engine.Delete(context.Background(), "leaf-1", "author-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	assert.Equal(t, []string{"leaf-1"}, f.topology.detached)
	assert.Equal(t, []string{"leaf-1"}, f.content.deleted)
	assert.Equal(t, []string{"topology", "content"}, order)
	assert.Empty(t, f.content.tombstones)
}

func TestDelete_TaleWithChildrenTombstoned(t *testing.T) {
	f := newTestEngine()
	f.content.tales["tale-1"] = &models.Tale{ID: "tale-1", AuthorID: strPtr("author-1")}
	f.topology.childCounts["tale-1"] = 2

	deleted, err := f.engine.Delete(context.Background(), "tale-1", "author-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	require.Len(t, f.content.tombstones, 1)
	assert.Equal(t, "[This chapter has been deleted by the author]", f.content.tombstones[0].Content)
	assert.Equal(t, "Anonymous", f.content.tombstones[0].AuthorName)
	assert.Empty(t, f.topology.detached)
	assert.Empty(t, f.content.deleted)
}

func TestDelete_MissingTaleReturnsFalse(t *testing.T) {
	f := newTestEngine()

	deleted, err := f.engine.Delete(context.Background(), "nope", "author-1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDelete_NonOwnerReturnsFalse(t *testing.T) {
	f := newTestEngine()
	f.content.tales["tale-1"] = &models.Tale{ID: "tale-1", AuthorID: strPtr("author-1")}

	deleted, err := f.engine.Delete(context.Background(), "tale-1", "someone-else")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Empty(t, f.topology.detached)
	assert.Empty(t, f.content.tombstones)
}

func TestDeleteStrict_NonOwnerForbidden(t *testing.T) {
	f := newTestEngine()
	f.content.tales["tale-1"] = &models.Tale{ID: "tale-1", AuthorID: strPtr("author-1")}

	err := f.engine.DeleteStrict(context.Background(), "tale-1", "someone-else")
	require.Error(t, err)
	assert.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
}

func TestDeleteStrict_ChildrenConflict(t *testing.T) {
	f := newTestEngine()
	f.content.tales["tale-1"] = &models.Tale{ID: "tale-1", AuthorID: strPtr("author-1")}
	f.topology.childCounts["tale-1"] = 1

	err := f.engine.DeleteStrict(context.Background(), "tale-1", "author-1")
	require.Error(t, err)
	assert.True(t, httperror.IsHTTPError(err))
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
	assert.Empty(t, f.topology.detached)
}

func TestDeleteStrict_LeafRemoved(t *testing.T) {
	f := newTestEngine()
	f.content.tales["leaf-1"] = &models.Tale{ID: "leaf-1", AuthorID: strPtr("author-1")}

	err := f.engine.DeleteStrict(context.Background(), "leaf-1", "author-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"leaf-1"}, f.topology.detached)
	assert.Equal(t, []string{"leaf-1"}, f.content.deleted)
}

func TestRemoveLeaf_TopologyFailureLeavesContent(t *testing.T) {
	f := newTestEngine()
	f.content.tales["leaf-1"] = &models.Tale{ID: "leaf-1", AuthorID: strPtr("author-1")}
	f.topology.detachErr = errors.New("topology unavailable")

	_, err := f.engine.Delete(context.Background(), "leaf-1", "author-1")
	require.Error(t, err)
	assert.Empty(t, f.content.deleted)
}

func TestDeleteUserContent_PurgesWithGhostName(t *testing.T) {
	f := newTestEngine()

	err := f.engine.DeleteUserContent(context.Background(), "user-1")
	require.NoError(t, err)

	require.Len(t, f.accounts.purged, 1)
	assert.Equal(t, "user-1", f.accounts.purged[0].UserID)
	assert.Equal(t, "Ghost", f.accounts.purged[0].GhostName)
}

func TestDeleteUserContent_PurgeErrorSurfaces(t *testing.T) {
	f := newTestEngine()
	f.accounts.err = errors.New("purge failed")

	err := f.engine.DeleteUserContent(context.Background(), "user-1")
	require.Error(t, err)
	assert.Empty(t, f.accounts.purged)
}
