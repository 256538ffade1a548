package rollup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DHvyas/votales-api/pkg/graph"
	"github.com/DHvyas/votales-api/pkg/metrics"
	"github.com/DHvyas/votales-api/pkg/models"
)

type fakeTopology struct {
	roots          []string
	branches       [][2]string
	edgeIncrements map[string]int
	rootOf         map[string]string

	createBranchErr  error
	incrementErr     error
	resolveErr       error
}

func newFakeTopology() *fakeTopology {
	return &fakeTopology{
		edgeIncrements: make(map[string]int),
		rootOf:         make(map[string]string),
	}
}

func (f *fakeTopology) CreateRoot(ctx context.Context, taleID string) error {
	f.roots = append(f.roots, taleID)
	f.rootOf[taleID] = taleID
	return nil
}

func (f *fakeTopology) CreateBranch(ctx context.Context, parentID string, childID string) error {
	if f.createBranchErr != nil {
		return f.createBranchErr
	}
	f.branches = append(f.branches, [2]string{parentID, childID})
	f.rootOf[childID] = f.rootOf[parentID]
	return nil
}

func (f *fakeTopology) ResolveRoot(ctx context.Context, taleID string) (string, error) {
	if f.resolveErr != nil {
		return "", f.resolveErr
	}
	return f.rootOf[taleID], nil
}

func (f *fakeTopology) IncrementEdgeVotes(ctx context.Context, taleID string) error {
	if f.incrementErr != nil {
		return f.incrementErr
	}
	f.edgeIncrements[taleID]++
	return nil
}

type fakeContent struct {
	created        []string
	deleted        []string
	seriesVotes    map[string]int
	lastActivityAt map[string]time.Time
}

func newFakeContent() *fakeContent {
	return &fakeContent{
		seriesVotes:    make(map[string]int),
		lastActivityAt: make(map[string]time.Time),
	}
}

func (f *fakeContent) Create(ctx context.Context, tale *models.Tale) error {
	f.created = append(f.created, tale.ID)
	return nil
}

func (f *fakeContent) Delete(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeContent) IncrementSeriesVotes(ctx context.Context, rootID string, at time.Time) error {
	f.seriesVotes[rootID]++
	f.lastActivityAt[rootID] = at
	return nil
}

func (f *fakeContent) SetLastActivity(ctx context.Context, rootID string, at time.Time) error {
	f.lastActivityAt[rootID] = at
	return nil
}

type fakeLedger struct {
	votes map[string]bool // userID|taleID
	err   error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{votes: make(map[string]bool)}
}

func (f *fakeLedger) Create(ctx context.Context, vote *models.Vote) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	key := vote.UserID + "|" + vote.TaleID
	if f.votes[key] {
		return false, nil
	}
	f.votes[key] = true
	return true, nil
}

type notifyCall struct {
	RecipientID string
	ActorID     string
	Type        string
	Message     string
}

type fakeNotifier struct {
	calls []notifyCall
}

func (f *fakeNotifier) Notify(ctx context.Context, recipientID, actorID, actorName, notifType, message string, relatedTaleID *string) error {
	f.calls = append(f.calls, notifyCall{
		RecipientID: recipientID,
		ActorID:     actorID,
		Type:        notifType,
		Message:     message,
	})
	return nil
}

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func strPtr(s string) *string {
	return &s
}

func newTestAggregator() (*Aggregator, *fakeTopology, *fakeContent, *fakeLedger, *fakeNotifier) {
	topology := newFakeTopology()
	content := newFakeContent()
	ledger := newFakeLedger()
	notifier := &fakeNotifier{}
	agg := NewAggregator(topology, content, ledger, notifier, nil, noopLogger())
	return agg, topology, content, ledger, notifier
}

func TestCreateRoot_WritesBothStores(t *testing.T) {
	agg, topology, content, _, _ := newTestAggregator()

	tale := &models.Tale{ID: "root-1", AuthorID: strPtr("author-1")}
	err := agg.CreateRoot(context.Background(), tale)
	require.NoError(t, err)

	assert.Equal(t, []string{"root-1"}, content.created)
	assert.Equal(t, []string{"root-1"}, topology.roots)
}

func TestCreateBranch_ParentNotFoundRollsBackContent(t *testing.T) {
	agg, topology, content, _, _ := newTestAggregator()
	topology.createBranchErr = graph.ErrParentNotFound

	child := &models.Tale{ID: "child-1", AuthorID: strPtr("author-2")}
	parent := &models.Tale{ID: "parent-1", AuthorID: strPtr("author-1")}
	err := agg.CreateBranch(context.Background(), child, parent, time.Now().UTC())

	assert.ErrorIs(t, err, graph.ErrParentNotFound)
	assert.Equal(t, []string{"child-1"}, content.created)
	assert.Equal(t, []string{"child-1"}, content.deleted)
}

func TestCreateBranch_NotifiesParentAuthorAndStampsRoot(t *testing.T) {
	agg, topology, content, _, notifier := newTestAggregator()
	require.NoError(t, topology.CreateRoot(context.Background(), "root-1"))

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	child := &models.Tale{ID: "child-1", AuthorID: strPtr("author-2"), AuthorName: "Riley"}
	parent := &models.Tale{ID: "root-1", AuthorID: strPtr("author-1")}

	err := agg.CreateBranch(context.Background(), child, parent, at)
	require.NoError(t, err)

	assert.Equal(t, at, content.lastActivityAt["root-1"])
	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "author-1", notifier.calls[0].RecipientID)
	assert.Equal(t, models.NotificationTypeBranch, notifier.calls[0].Type)
	assert.Equal(t, "Riley continued your story", notifier.calls[0].Message)
}

func TestCreateBranch_AnonymousParentSkipsNotification(t *testing.T) {
	agg, topology, _, _, notifier := newTestAggregator()
	require.NoError(t, topology.CreateRoot(context.Background(), "root-1"))

	child := &models.Tale{ID: "child-1", AuthorID: strPtr("author-2"), AuthorName: "Riley"}
	parent := &models.Tale{ID: "root-1", AuthorID: nil}

	err := agg.CreateBranch(context.Background(), child, parent, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, notifier.calls)
}

func TestRecordVote_DuplicateIsNoop(t *testing.T) {
	agg, topology, content, _, _ := newTestAggregator()
	require.NoError(t, topology.CreateRoot(context.Background(), "root-1"))

	tale := &models.Tale{ID: "root-1", AuthorID: strPtr("author-1")}
	at := time.Now().UTC()

	counted, err := agg.RecordVote(context.Background(), tale, "voter-1", "Sam", at)
	require.NoError(t, err)
	assert.True(t, counted)

	counted, err = agg.RecordVote(context.Background(), tale, "voter-1", "Sam", at)
	require.NoError(t, err)
	assert.False(t, counted)

	assert.Equal(t, 1, topology.edgeIncrements["root-1"])
	assert.Equal(t, 1, content.seriesVotes["root-1"])
}

func TestRecordVote_DistinctVotersAllCount(t *testing.T) {
	agg, topology, content, _, _ := newTestAggregator()
	require.NoError(t, topology.CreateRoot(context.Background(), "root-1"))
	parent := &models.Tale{ID: "root-1", AuthorID: strPtr("author-1")}
	child := &models.Tale{ID: "child-1", AuthorID: strPtr("author-2"), AuthorName: "Riley"}
	require.NoError(t, agg.CreateBranch(context.Background(), child, parent, time.Now().UTC()))

	at := time.Now().UTC()
	for _, voter := range []string{"voter-1", "voter-2", "voter-3"} {
		counted, err := agg.RecordVote(context.Background(), child, voter, "Sam", at)
		require.NoError(t, err)
		assert.True(t, counted)
	}

	assert.Equal(t, 3, topology.edgeIncrements["child-1"])
	assert.Equal(t, 3, content.seriesVotes["root-1"])
	assert.Equal(t, at, content.lastActivityAt["root-1"])
}

func TestRecordVote_NotifiesAuthorOnce(t *testing.T) {
	agg, topology, _, _, notifier := newTestAggregator()
	require.NoError(t, topology.CreateRoot(context.Background(), "root-1"))

	tale := &models.Tale{ID: "root-1", AuthorID: strPtr("author-1")}
	_, err := agg.RecordVote(context.Background(), tale, "voter-1", "Sam", time.Now().UTC())
	require.NoError(t, err)

	require.Len(t, notifier.calls, 1)
	assert.Equal(t, "author-1", notifier.calls[0].RecipientID)
	assert.Equal(t, models.NotificationTypeVote, notifier.calls[0].Type)
	assert.Equal(t, "Someone voted on your tale", notifier.calls[0].Message)
}

func TestRecordVote_AnonymousTaleSkipsNotification(t *testing.T) {
	agg, topology, _, _, notifier := newTestAggregator()
	require.NoError(t, topology.CreateRoot(context.Background(), "root-1"))

	tale := &models.Tale{ID: "root-1", AuthorID: nil}
	counted, err := agg.RecordVote(context.Background(), tale, "voter-1", "Sam", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, counted)
	assert.Empty(t, notifier.calls)
}

func TestRecordVote_EdgeIncrementFailureStillCounts(t *testing.T) {
	// The ledger insert is the commit point; a failed edge increment is an
	// accepted inconsistency, not a caller-visible failure.
	agg, topology, content, _, _ := newTestAggregator()
	require.NoError(t, topology.CreateRoot(context.Background(), "root-1"))
	topology.incrementErr = errors.New("topology unavailable")

	tale := &models.Tale{ID: "root-1", AuthorID: strPtr("author-1")}
	counted, err := agg.RecordVote(context.Background(), tale, "voter-1", "Sam", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, counted)
	assert.Equal(t, 1, content.seriesVotes["root-1"])
}

func TestRecordVote_UnresolvableRootSkipsSeriesRollup(t *testing.T) {
	agg, _, content, _, _ := newTestAggregator()

	// Tale never registered in the topology store
	tale := &models.Tale{ID: "orphan-1", AuthorID: strPtr("author-1")}
	counted, err := agg.RecordVote(context.Background(), tale, "voter-1", "Sam", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, counted)
	assert.Empty(t, content.seriesVotes)
}

func TestRecordVote_ResolveRootErrorStillCounts(t *testing.T) {
	agg, topology, content, _, _ := newTestAggregator()
	require.NoError(t, topology.CreateRoot(context.Background(), "root-1"))
	topology.resolveErr = errors.New("topology unavailable")

	before := testutil.ToFloat64(metrics.ConsistencyPartialWrites.WithLabelValues("vote", "resolve_root"))

	tale := &models.Tale{ID: "root-1", AuthorID: strPtr("author-1")}
	counted, err := agg.RecordVote(context.Background(), tale, "voter-1", "Sam", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, counted)
	assert.Empty(t, content.seriesVotes)

	after := testutil.ToFloat64(metrics.ConsistencyPartialWrites.WithLabelValues("vote", "resolve_root"))
	assert.Equal(t, before+1, after)
}

func TestRecordVote_LedgerErrorSurfaces(t *testing.T) {
	agg, topology, _, ledger, _ := newTestAggregator()
	require.NoError(t, topology.CreateRoot(context.Background(), "root-1"))
	ledger.err = errors.New("connection refused")

	tale := &models.Tale{ID: "root-1", AuthorID: strPtr("author-1")}
	counted, err := agg.RecordVote(context.Background(), tale, "voter-1", "Sam", time.Now().UTC())
	assert.Error(t, err)
	assert.False(t, counted)
	assert.Empty(t, topology.edgeIncrements)
}
