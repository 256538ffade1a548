// Package deletion decides tombstone versus hard removal for tales and runs
// the multi-store removal and anonymization sequences.
package deletion

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/DHvyas/votales-api/pkg/models"
	"github.com/DHvyas/votales-api/pkg/tracing"
)

// Placeholder values written when a tale or account is removed. These are
// user-visible strings; clients key off them, do not change casually.
const (
	TombstoneContent = "[This chapter has been deleted by the author]"
	AnonymousAuthor  = "Anonymous"
	GhostAuthor      = "Ghost"
)

// TopologyStore is the tree-shape access the engine needs
type TopologyStore interface {
	CountChildren(ctx context.Context, taleID string) (int64, error)
	DetachDelete(ctx context.Context, taleID string) error
}

// ContentStore is the tale-content access the engine needs. DeleteWithVotes
// removes the tale row and its vote rows in one content-store transaction.
type ContentStore interface {
	Get(ctx context.Context, id string) (*models.Tale, error)
	Tombstone(ctx context.Context, id string, content string, authorName string) error
	DeleteWithVotes(ctx context.Context, id string) error
}

// AccountStore runs the transactional account purge: tales anonymized to
// ghostName, votes and notifications removed, profile row last.
type AccountStore interface {
	PurgeAccount(ctx context.Context, userID string, ghostName string) error
}

// Engine applies the deletion policy: tales with children are tombstoned so
// descendants stay reachable, leaves are removed from both stores outright.
type Engine struct {
	topology TopologyStore
	content  ContentStore
	accounts AccountStore
	logger   ectologger.Logger
}

// NewEngine creates a new deletion engine
func NewEngine(topology TopologyStore, content ContentStore, accounts AccountStore, logger ectologger.Logger) *Engine {
	return &Engine{
		topology: topology,
		content:  content,
		accounts: accounts,
		logger:   logger,
	}
}

// Delete is the permissive path: tombstone when the tale has children,
// remove outright when it is a leaf. Returns false, never an error, when the
// tale is missing or the caller is not its author.
func (e *Engine) Delete(ctx context.Context, taleID string, callerID string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "deletion.Engine.Delete")
	defer span.End()

	log := e.logger.WithContext(ctx).WithFields(map[string]any{
		"method":  "Delete",
		"tale_id": taleID,
	})

	tale, err := e.content.Get(ctx, taleID)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	if !tale.IsOwnedBy(callerID) {
		return false, nil
	}

	childCount, err := e.topology.CountChildren(ctx, taleID)
	if err != nil {
		return false, err
	}

	if childCount > 0 {
		if err := e.content.Tombstone(ctx, taleID, TombstoneContent, AnonymousAuthor); err != nil {
			return false, err
		}
		log.Info("Tombstoned tale with children")
		return true, nil
	}

	if err := e.removeLeaf(ctx, taleID); err != nil {
		return false, err
	}
	log.Info("Removed leaf tale")
	return true, nil
}

// DeleteStrict is the author-initiated path: instead of tombstoning, a tale
// with children is rejected so the author edits it rather than orphaning the
// continuations visually.
func (e *Engine) DeleteStrict(ctx context.Context, taleID string, callerID string) error {
	ctx, span := tracing.StartSpan(ctx, "deletion.Engine.DeleteStrict")
	defer span.End()

	tale, err := e.content.Get(ctx, taleID)
	if err != nil {
		return err
	}
	if !tale.IsOwnedBy(callerID) {
		return httperror.NewHTTPError(http.StatusForbidden, "only the author can delete this tale")
	}

	childCount, err := e.topology.CountChildren(ctx, taleID)
	if err != nil {
		return err
	}
	if childCount > 0 {
		return httperror.NewHTTPError(http.StatusConflict, "tale has branches, edit it instead")
	}

	if err := e.removeLeaf(ctx, taleID); err != nil {
		return err
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{"tale_id": taleID}).Info("Removed leaf tale")
	return nil
}

// removeLeaf runs the hard-removal sequence: topology node and incoming edge
// first, then the tale row and its vote rows in one content-store
// transaction. A topology failure leaves the content row untouched; a content
// failure leaves a dangling content row the stores already tolerate.
func (e *Engine) removeLeaf(ctx context.Context, taleID string) error {
	if err := e.topology.DetachDelete(ctx, taleID); err != nil {
		return err
	}
	return e.content.DeleteWithVotes(ctx, taleID)
}

// DeleteUserContent runs account deletion. Tales are mass-anonymized, never
// deleted, so every tree keeps its shape; votes, notifications and the
// profile row go in the same content-store transaction.
func (e *Engine) DeleteUserContent(ctx context.Context, userID string) error {
	ctx, span := tracing.StartSpan(ctx, "deletion.Engine.DeleteUserContent")
	defer span.End()

	if err := e.accounts.PurgeAccount(ctx, userID, GhostAuthor); err != nil {
		return err
	}

	e.logger.WithContext(ctx).WithFields(map[string]any{"user_id": userID}).Info("Deleted user content")
	return nil
}

func isNotFound(err error) bool {
	return httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound
}
