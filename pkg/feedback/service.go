// Package feedback stores user-submitted feedback and forwards it to the
// outbound email sink via the event bus.
package feedback

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/DHvyas/votales-api/pkg/events"
	"github.com/DHvyas/votales-api/pkg/models"
	"github.com/DHvyas/votales-api/pkg/tracing"
)

// Store is the feedback persistence the service needs
type Store interface {
	Create(ctx context.Context, f *models.Feedback) error
}

// Publisher forwards feedback to the outbound sink
type Publisher interface {
	PublishFeedbackEvent(ctx context.Context, event *events.FeedbackEvent) error
}

// Service handles feedback submission
type Service struct {
	store     Store
	publisher Publisher
	logger    ectologger.Logger
}

// NewService creates a new feedback service
func NewService(store Store, publisher Publisher, logger ectologger.Logger) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// Submit stores a feedback row and forwards it to the email sink. The store
// write is authoritative; a failed publish is logged, not surfaced.
func (s *Service) Submit(ctx context.Context, req models.CreateFeedbackRequest) (*models.Feedback, error) {
	ctx, span := tracing.StartSpan(ctx, "feedback.Service.Submit")
	defer span.End()

	f := &models.Feedback{
		ID:          uuid.New().String(),
		UserEmail:   req.Email,
		Message:     req.Message,
		SubmittedAt: time.Now().UTC(),
	}

	if err := s.store.Create(ctx, f); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		event := &events.FeedbackEvent{
			EventType: "feedback.submitted",
			ID:        f.ID,
			UserEmail: f.UserEmail,
			Message:   f.Message,
			Timestamp: f.SubmittedAt,
		}
		if err := s.publisher.PublishFeedbackEvent(ctx, event); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Failed to forward feedback to sink")
		}
	}

	return f, nil
}
