// Package trending recomputes discovery scores for story roots. The score
// rewards recent vote volume and decays with age; the live write path only
// maintains its inputs (SeriesVotes, CreatedAt), never the score itself.
package trending

import (
	"context"
	"math"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/DHvyas/votales-api/pkg/metrics"
	"github.com/DHvyas/votales-api/pkg/models"
	"github.com/DHvyas/votales-api/pkg/tracing"
)

const (
	lockKey = "trending:recompute"
	lockTTL = 5 * time.Minute
)

// TopologyStore is the tree-shape access the job needs
type TopologyStore interface {
	RootIDs(ctx context.Context) ([]string, error)
}

// ContentStore is the tale-content access the job needs
type ContentStore interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.Tale, error)
	SetTrendingScore(ctx context.Context, rootID string, score float64) error
}

// Locker guards the recompute so concurrent schedulers don't double-run
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func() error) error
}

// Job recomputes trending scores over every story root
type Job struct {
	topology TopologyStore
	content  ContentStore
	locker   Locker
	logger   ectologger.Logger
}

// NewJob creates a new trending job
func NewJob(topology TopologyStore, content ContentStore, locker Locker, logger ectologger.Logger) *Job {
	return &Job{
		topology: topology,
		content:  content,
		locker:   locker,
		logger:   logger,
	}
}

// Score computes the trending score from a root's total votes and its age in
// hours. The +2 offset keeps brand-new stories from dividing by near zero.
func Score(seriesVotes int, ageHours float64) float64 {
	if ageHours < 0 {
		ageHours = 0
	}
	return float64(seriesVotes) / math.Pow(ageHours+2, 1.8)
}

// Recompute walks every root and persists a fresh score. Held under a
// distributed lock; a second concurrent run returns ErrLockNotAcquired from
// the locker.
func (j *Job) Recompute(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "trending.Job.Recompute")
	defer span.End()

	return j.locker.WithLock(ctx, lockKey, lockTTL, func() error {
		return j.recompute(ctx)
	})
}

func (j *Job) recompute(ctx context.Context) error {
	start := time.Now()
	log := j.logger.WithContext(ctx).WithField("method", "Recompute")

	rootIDs, err := j.topology.RootIDs(ctx)
	if err != nil {
		return err
	}

	roots, err := j.content.ListByIDs(ctx, rootIDs)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	updated := 0
	for _, root := range roots {
		ageHours := now.Sub(root.CreatedAt).Hours()
		score := Score(root.SeriesVotes, ageHours)
		if err := j.content.SetTrendingScore(ctx, root.ID, score); err != nil {
			log.WithError(err).WithField("root_id", root.ID).Warn("Failed to persist trending score")
			continue
		}
		updated++
	}

	metrics.TrendingRecomputeDuration.Observe(time.Since(start).Seconds())
	log.WithFields(map[string]any{
		"roots":   len(roots),
		"updated": updated,
	}).Info("Recomputed trending scores")
	return nil
}
