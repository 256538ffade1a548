// Package rollup propagates every tale mutation across both stores: the
// topology store (nodes and edge vote counters), the content store (series
// vote rollups and activity stamps) and the vote ledger. There is no
// distributed transaction between the stores; the ledger insert is the
// commit point and anything after it is best-effort propagation that gets
// logged and counted when it fails.
package rollup

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/DHvyas/votales-api/pkg/graph"
	"github.com/DHvyas/votales-api/pkg/metrics"
	"github.com/DHvyas/votales-api/pkg/models"
	"github.com/DHvyas/votales-api/pkg/tracing"
)

// TopologyStore is the tree-shape store the aggregator writes to
type TopologyStore interface {
	CreateRoot(ctx context.Context, taleID string) error
	CreateBranch(ctx context.Context, parentID string, childID string) error
	ResolveRoot(ctx context.Context, taleID string) (string, error)
	IncrementEdgeVotes(ctx context.Context, taleID string) error
}

// ContentStore is the tale-content store the aggregator writes to
type ContentStore interface {
	Create(ctx context.Context, tale *models.Tale) error
	Delete(ctx context.Context, id string) error
	IncrementSeriesVotes(ctx context.Context, rootID string, at time.Time) error
	SetLastActivity(ctx context.Context, rootID string, at time.Time) error
}

// VoteLedger records per-user votes with (user, tale) uniqueness
type VoteLedger interface {
	Create(ctx context.Context, vote *models.Vote) (bool, error)
}

// Notifier delivers in-app notifications
type Notifier interface {
	Notify(ctx context.Context, recipientID, actorID, actorName, notifType, message string, relatedTaleID *string) error
}

// EventPublisher emits tale lifecycle events to the message bus
type EventPublisher interface {
	PublishTaleEvent(ctx context.Context, eventType string, taleID string, rootID string) error
}

// Aggregator coordinates multi-store writes for tale creation and voting
type Aggregator struct {
	topology TopologyStore
	content  ContentStore
	ledger   VoteLedger
	notifier Notifier
	events   EventPublisher
	logger   ectologger.Logger
}

// NewAggregator creates a new rollup aggregator
func NewAggregator(topology TopologyStore, content ContentStore, ledger VoteLedger, notifier Notifier, events EventPublisher, logger ectologger.Logger) *Aggregator {
	return &Aggregator{
		topology: topology,
		content:  content,
		ledger:   ledger,
		notifier: notifier,
		events:   events,
		logger:   logger,
	}
}

// CreateRoot writes a new root tale to both stores. The content row goes in
// first; if the topology node then fails the row is removed again so the
// stores never disagree on which tales exist.
func (a *Aggregator) CreateRoot(ctx context.Context, tale *models.Tale) error {
	ctx, span := tracing.StartSpan(ctx, "rollup.Aggregator.CreateRoot")
	defer span.End()

	log := a.logger.WithContext(ctx).WithFields(map[string]any{
		"method":  "CreateRoot",
		"tale_id": tale.ID,
	})

	if err := a.content.Create(ctx, tale); err != nil {
		return err
	}

	if err := a.topology.CreateRoot(ctx, tale.ID); err != nil {
		log.WithError(err).Error("Topology write failed, rolling back content row")
		if delErr := a.content.Delete(ctx, tale.ID); delErr != nil {
			metrics.RecordPartialWrite("create_root", "content_rollback")
			log.WithError(delErr).Error("Failed to roll back content row")
		}
		return fmt.Errorf("failed to create root topology node: %w", err)
	}

	metrics.RootsCreatedTotal.Inc()
	a.publishEvent(ctx, "tale.root_created", tale.ID, tale.ID)

	log.Info("Created root tale")
	return nil
}

// CreateBranch writes a new branch tale to both stores and notifies the
// parent's author. Returns graph.ErrParentNotFound when the parent node
// vanished between validation and the topology write.
func (a *Aggregator) CreateBranch(ctx context.Context, tale *models.Tale, parent *models.Tale, at time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "rollup.Aggregator.CreateBranch")
	defer span.End()

	log := a.logger.WithContext(ctx).WithFields(map[string]any{
		"method":    "CreateBranch",
		"tale_id":   tale.ID,
		"parent_id": parent.ID,
	})

	if err := a.content.Create(ctx, tale); err != nil {
		return err
	}

	if err := a.topology.CreateBranch(ctx, parent.ID, tale.ID); err != nil {
		log.WithError(err).Error("Topology write failed, rolling back content row")
		if delErr := a.content.Delete(ctx, tale.ID); delErr != nil {
			metrics.RecordPartialWrite("create_branch", "content_rollback")
			log.WithError(delErr).Error("Failed to roll back content row")
		}
		if err == graph.ErrParentNotFound {
			return err
		}
		return fmt.Errorf("failed to create branch topology node: %w", err)
	}

	// Everything past this point is best-effort: the branch exists in both
	// stores, a failed rollup must not undo it.
	rootID, err := a.topology.ResolveRoot(ctx, tale.ID)
	if err != nil {
		metrics.RecordPartialWrite("create_branch", "resolve_root")
		log.WithError(err).Warn("Failed to resolve root for activity stamp")
	} else if rootID == "" {
		metrics.RecordPartialWrite("create_branch", "resolve_root")
		log.Warn("No root above branch, skipping activity stamp")
	} else {
		if err := a.content.SetLastActivity(ctx, rootID, at); err != nil {
			metrics.RecordPartialWrite("create_branch", "last_activity")
			log.WithError(err).Warn("Failed to stamp root activity")
		}
	}

	if parent.AuthorID != nil && tale.AuthorID != nil {
		message := fmt.Sprintf("%s continued your story", tale.AuthorName)
		if err := a.notifier.Notify(ctx, *parent.AuthorID, *tale.AuthorID, tale.AuthorName, models.NotificationTypeBranch, message, &tale.ID); err != nil {
			log.WithError(err).Warn("Failed to notify parent author")
		}
	}

	metrics.BranchesCreatedTotal.Inc()
	a.publishEvent(ctx, "tale.branch_created", tale.ID, rootID)

	log.Info("Created branch tale")
	return nil
}

// RecordVote casts a vote on a tale. Returns false when the user already
// voted. The ledger insert is the commit point: once it lands the vote
// counts, even if the edge counter or series rollup fails to propagate.
func (a *Aggregator) RecordVote(ctx context.Context, tale *models.Tale, voterID string, voterName string, at time.Time) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "rollup.Aggregator.RecordVote")
	defer span.End()

	log := a.logger.WithContext(ctx).WithFields(map[string]any{
		"method":  "RecordVote",
		"tale_id": tale.ID,
		"user_id": voterID,
	})

	vote := &models.Vote{
		ID:      uuid.New().String(),
		UserID:  voterID,
		TaleID:  tale.ID,
		VotedAt: at,
	}

	counted, err := a.ledger.Create(ctx, vote)
	if err != nil {
		return false, err
	}
	if !counted {
		metrics.RecordVote("duplicate")
		return false, nil
	}
	metrics.RecordVote("counted")

	if err := a.topology.IncrementEdgeVotes(ctx, tale.ID); err != nil {
		metrics.RecordPartialWrite("vote", "edge_increment")
		log.WithError(err).Warn("Failed to increment edge votes")
	}

	rootID, err := a.topology.ResolveRoot(ctx, tale.ID)
	if err != nil {
		metrics.RecordPartialWrite("vote", "resolve_root")
		log.WithError(err).Warn("Failed to resolve root for series rollup")
	} else if rootID == "" {
		metrics.RecordPartialWrite("vote", "resolve_root")
		log.Warn("No root found for tale, skipping series rollup")
	} else {
		if err := a.content.IncrementSeriesVotes(ctx, rootID, at); err != nil {
			metrics.RecordPartialWrite("vote", "series_votes")
			log.WithError(err).Warn("Failed to increment series votes")
		}
	}

	if tale.AuthorID != nil {
		if err := a.notifier.Notify(ctx, *tale.AuthorID, voterID, voterName, models.NotificationTypeVote, "Someone voted on your tale", &tale.ID); err != nil {
			log.WithError(err).Warn("Failed to notify tale author")
		}
	}

	a.publishEvent(ctx, "tale.voted", tale.ID, rootID)
	return true, nil
}

func (a *Aggregator) publishEvent(ctx context.Context, eventType string, taleID string, rootID string) {
	if a.events == nil {
		return
	}
	if err := a.events.PublishTaleEvent(ctx, eventType, taleID, rootID); err != nil {
		a.logger.WithContext(ctx).WithError(err).WithField("event_type", eventType).Warn("Failed to publish tale event")
	}
}
