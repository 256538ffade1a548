package models

import "time"

// User is the profile row. The ID comes from the upstream identity provider;
// it is never generated here.
type User struct {
	ID          string    `json:"id" db:"id"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Bio         *string   `json:"bio,omitempty" db:"bio"`
	AvatarStyle string    `json:"avatar_style" db:"avatar_style"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// UpdateUserProfileRequest is the request for editing the caller's profile
type UpdateUserProfileRequest struct {
	DisplayName *string `json:"display_name,omitempty" validate:"omitempty,max=100"`
	Bio         *string `json:"bio,omitempty" validate:"omitempty,max=300"`
	AvatarStyle *string `json:"avatar_style,omitempty" validate:"omitempty,max=50"`
}

// UserProfile is the caller's own profile view with tale groupings
type UserProfile struct {
	ID                 string        `json:"id"`
	Username           string        `json:"username"`
	Bio                *string       `json:"bio,omitempty"`
	AvatarStyle        string        `json:"avatar_style"`
	JoinedDate         time.Time     `json:"joined_date"`
	TotalTalesWritten  int           `json:"total_tales_written"`
	TotalVotesReceived int           `json:"total_votes_received"`
	MyRoots            []TaleSummary `json:"my_roots"`
	MyBranches         []TaleSummary `json:"my_branches"`
}

// PublicUserProfile is the profile view shown to other users
type PublicUserProfile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Bio         *string   `json:"bio,omitempty"`
	AvatarStyle string    `json:"avatar_style"`
	TaleCount   int       `json:"tale_count"`
	VoteCount   int       `json:"vote_count"`
	JoinedDate  time.Time `json:"joined_date"`
}

// UserSearchResult is a compact entry for user search
type UserSearchResult struct {
	ID          string `json:"id" db:"id"`
	DisplayName string `json:"display_name" db:"display_name"`
	AvatarStyle string `json:"avatar_style" db:"avatar_style"`
}
