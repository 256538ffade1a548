package trending

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DHvyas/votales-api/pkg/models"
)

type fakeTopology struct {
	rootIDs []string
}

func (f *fakeTopology) RootIDs(ctx context.Context) ([]string, error) {
	return f.rootIDs, nil
}

type fakeContent struct {
	tales    map[string]models.Tale
	scores   map[string]float64
	scoreErr map[string]error
}

func newFakeContent() *fakeContent {
	return &fakeContent{
		tales:    make(map[string]models.Tale),
		scores:   make(map[string]float64),
		scoreErr: make(map[string]error),
	}
}

func (f *fakeContent) ListByIDs(ctx context.Context, ids []string) ([]models.Tale, error) {
	var out []models.Tale
	for _, id := range ids {
		if tale, ok := f.tales[id]; ok {
			out = append(out, tale)
		}
	}
	return out, nil
}

func (f *fakeContent) SetTrendingScore(ctx context.Context, rootID string, score float64) error {
	if err := f.scoreErr[rootID]; err != nil {
		return err
	}
	f.scores[rootID] = score
	return nil
}

type fakeLocker struct {
	held     bool
	err      error
	acquired []string
}

func (f *fakeLocker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	if f.err != nil {
		return f.err
	}
	f.acquired = append(f.acquired, key)
	f.held = true
	defer func() { f.held = false }()
	return fn()
}

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestScore(t *testing.T) {
	assert.Equal(t, 0.0, Score(0, 10))

	// 10 votes at age zero: 10 / 2^1.8
	assert.InDelta(t, 10/math.Pow(2, 1.8), Score(10, 0), 1e-9)

	// 48 votes after a day: 48 / 26^1.8
	assert.InDelta(t, 48/math.Pow(26, 1.8), Score(48, 24), 1e-9)

	// older roots score lower at equal votes
	assert.Greater(t, Score(10, 1), Score(10, 100))
}

func TestScore_NegativeAgeClamped(t *testing.T) {
	// clock skew can put CreatedAt slightly in the future
	assert.Equal(t, Score(10, 0), Score(10, -3))
}

func TestRecompute_ScoresEveryRoot(t *testing.T) {
	topology := &fakeTopology{rootIDs: []string{"root-1", "root-2"}}
	content := newFakeContent()
	now := time.Now().UTC()
	content.tales["root-1"] = models.Tale{ID: "root-1", SeriesVotes: 10, CreatedAt: now.Add(-24 * time.Hour)}
	content.tales["root-2"] = models.Tale{ID: "root-2", SeriesVotes: 0, CreatedAt: now.Add(-1 * time.Hour)}
	locker := &fakeLocker{}

	job := NewJob(topology, content, locker, noopLogger())
	err := job.Recompute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"trending:recompute"}, locker.acquired)
	require.Len(t, content.scores, 2)
	assert.InDelta(t, 10/math.Pow(26, 1.8), content.scores["root-1"], 1e-6)
	assert.Equal(t, 0.0, content.scores["root-2"])
}

func TestRecompute_PerRootFailureContinues(t *testing.T) {
	topology := &fakeTopology{rootIDs: []string{"root-1", "root-2"}}
	content := newFakeContent()
	now := time.Now().UTC()
	content.tales["root-1"] = models.Tale{ID: "root-1", SeriesVotes: 5, CreatedAt: now}
	content.tales["root-2"] = models.Tale{ID: "root-2", SeriesVotes: 7, CreatedAt: now}
	content.scoreErr["root-1"] = errors.New("write failed")
	locker := &fakeLocker{}

	job := NewJob(topology, content, locker, noopLogger())
	err := job.Recompute(context.Background())
	require.NoError(t, err)

	_, ok := content.scores["root-1"]
	assert.False(t, ok)
	_, ok = content.scores["root-2"]
	assert.True(t, ok)
}

func TestRecompute_LockerErrorSurfaces(t *testing.T) {
	lockErr := errors.New("lock not acquired")
	locker := &fakeLocker{err: lockErr}
	content := newFakeContent()

	job := NewJob(&fakeTopology{}, content, locker, noopLogger())
	err := job.Recompute(context.Background())
	assert.ErrorIs(t, err, lockErr)
	assert.Empty(t, content.scores)
}
