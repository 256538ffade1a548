// Package users serves profile views and account-level mutations. Identity
// itself comes from upstream; this service only owns the profile row and how
// the user's authorship shows up across their tales.
package users

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/DHvyas/votales-api/pkg/assembler"
	"github.com/DHvyas/votales-api/pkg/deletion"
	"github.com/DHvyas/votales-api/pkg/models"
	"github.com/DHvyas/votales-api/pkg/tracing"
)

// ProfileStore is the user persistence the service needs
type ProfileStore interface {
	Get(ctx context.Context, id string) (*models.User, error)
	Upsert(ctx context.Context, id string, displayName string, now time.Time) (*models.User, error)
	Update(ctx context.Context, id string, req models.UpdateUserProfileRequest) (*models.User, error)
	Search(ctx context.Context, q string) ([]models.UserSearchResult, error)
}

// AuthorContent is the tale-side access the service needs
type AuthorContent interface {
	SetAuthorName(ctx context.Context, authorID string, name string) error
}

// VoteLedger is the vote access the service needs
type VoteLedger interface {
	VotesForAuthor(ctx context.Context, authorID string) (int, error)
}

// Service serves user profiles and account operations
type Service struct {
	profiles ProfileStore
	content  AuthorContent
	votes    VoteLedger
	assemble *assembler.Assembler
	deletes  *deletion.Engine
	logger   ectologger.Logger
}

// NewService creates a new user service
func NewService(profiles ProfileStore, content AuthorContent, votes VoteLedger, assemble *assembler.Assembler, deletes *deletion.Engine, logger ectologger.Logger) *Service {
	return &Service{
		profiles: profiles,
		content:  content,
		votes:    votes,
		assemble: assemble,
		deletes:  deletes,
		logger:   logger,
	}
}

// EnsureProfile creates the profile row on a user's first request and keeps
// the stored display name in sync with the identity provider's.
func (s *Service) EnsureProfile(ctx context.Context, userID string, displayName string) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "users.Service.EnsureProfile")
	defer span.End()

	return s.profiles.Upsert(ctx, userID, displayName, time.Now().UTC())
}

// GetProfile builds the caller's own profile view with their tales grouped
// into roots and branches
func (s *Service) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	ctx, span := tracing.StartSpan(ctx, "users.Service.GetProfile")
	defer span.End()

	user, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	roots, branches, err := s.assemble.AuthorTales(ctx, userID)
	if err != nil {
		return nil, err
	}

	voteCount, err := s.votes.VotesForAuthor(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &models.UserProfile{
		ID:                 user.ID,
		Username:           user.DisplayName,
		Bio:                user.Bio,
		AvatarStyle:        user.AvatarStyle,
		JoinedDate:         user.CreatedAt,
		TotalTalesWritten:  len(roots) + len(branches),
		TotalVotesReceived: voteCount,
		MyRoots:            roots,
		MyBranches:         branches,
	}, nil
}

// GetPublicProfile builds the profile view shown to other users
func (s *Service) GetPublicProfile(ctx context.Context, userID string) (*models.PublicUserProfile, error) {
	ctx, span := tracing.StartSpan(ctx, "users.Service.GetPublicProfile")
	defer span.End()

	user, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	roots, branches, err := s.assemble.AuthorTales(ctx, userID)
	if err != nil {
		return nil, err
	}

	voteCount, err := s.votes.VotesForAuthor(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &models.PublicUserProfile{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Bio:         user.Bio,
		AvatarStyle: user.AvatarStyle,
		TaleCount:   len(roots) + len(branches),
		VoteCount:   voteCount,
		JoinedDate:  user.CreatedAt,
	}, nil
}

// UpdateProfile applies profile edits. A display-name change also rewrites
// the denormalized author name on every one of the user's live tales.
func (s *Service) UpdateProfile(ctx context.Context, userID string, req models.UpdateUserProfileRequest) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "users.Service.UpdateProfile")
	defer span.End()

	user, err := s.profiles.Update(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		if err := s.content.SetAuthorName(ctx, userID, *req.DisplayName); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithField("user_id", userID).Warn("Failed to propagate display name to tales")
		}
	}

	return user, nil
}

// GetUserTales returns a user's tales grouped into roots and branches
func (s *Service) GetUserTales(ctx context.Context, userID string) (roots []models.TaleSummary, branches []models.TaleSummary, err error) {
	ctx, span := tracing.StartSpan(ctx, "users.Service.GetUserTales")
	defer span.End()

	return s.assemble.AuthorTales(ctx, userID)
}

// SearchUsers finds users by display name
func (s *Service) SearchUsers(ctx context.Context, q string) ([]models.UserSearchResult, error) {
	ctx, span := tracing.StartSpan(ctx, "users.Service.SearchUsers")
	defer span.End()

	return s.profiles.Search(ctx, q)
}

// DeleteAccount anonymizes the user's tales and removes their votes,
// notifications and profile
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	ctx, span := tracing.StartSpan(ctx, "users.Service.DeleteAccount")
	defer span.End()

	return s.deletes.DeleteUserContent(ctx, userID)
}
