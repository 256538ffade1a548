package models

import (
	"time"
)

// Tale statuses
const (
	TaleStatusDraft     = "Draft"
	TaleStatusPublished = "Published"
)

// Tale is the content-store row for a single chapter. Tree position lives in
// the topology store under the same ID; the two stores share the key, there
// is no foreign key between them.
// Field order matches schema: id, author_id, title, author_name, content, ...
type Tale struct {
	ID         string  `json:"id" db:"id"`
	AuthorID   *string `json:"author_id" db:"author_id"` // nil after account-deletion anonymization
	Title      *string `json:"title,omitempty" db:"title"`
	AuthorName string  `json:"author_name" db:"author_name"`
	Content    string  `json:"content" db:"content"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Status    string    `json:"status" db:"status"`
	IsDeleted bool      `json:"is_deleted" db:"is_deleted"`

	// SeriesVotes is the sum of all votes across the entire story tree.
	// Only meaningful on ROOT tales.
	SeriesVotes int `json:"series_votes" db:"series_votes"`

	// LastActivityAt is the time of the latest branch creation or vote
	// anywhere in the story tree. Only meaningful on ROOT tales.
	LastActivityAt *time.Time `json:"last_activity_at,omitempty" db:"last_activity_at"`

	// TrendingScore is recomputed by the batch trending job from
	// SeriesVotes and CreatedAt. Only meaningful on ROOT tales.
	TrendingScore float64 `json:"trending_score" db:"trending_score"`
}

// IsOwnedBy reports whether userID is the tale's (non-anonymized) author.
func (t *Tale) IsOwnedBy(userID string) bool {
	return t.AuthorID != nil && *t.AuthorID == userID
}

// CreateTaleRequest is the request for authoring a new root tale or branch
type CreateTaleRequest struct {
	AuthorID     string  `json:"author_id" validate:"required"`
	AuthorName   string  `json:"author_name" validate:"required,max=100"`
	Title        *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Content      string  `json:"content" validate:"required"`
	ParentTaleID *string `json:"parent_tale_id,omitempty" validate:"omitempty,uuid4"`
}

// UpdateTaleRequest is the request for editing a tale's content fields
type UpdateTaleRequest struct {
	Title   *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Content *string `json:"content,omitempty"`
}

// TaleChoice is one continuation option under a tale, ordered by edge votes
type TaleChoice struct {
	ID          string  `json:"id"`
	Title       *string `json:"title,omitempty"`
	Votes       int     `json:"votes"`
	PreviewText string  `json:"preview_text"`
}

// TaleResponse is the full read view of a tale
type TaleResponse struct {
	ID             string       `json:"id"`
	Title          *string      `json:"title,omitempty"`
	AuthorName     string       `json:"author_name"`
	Content        string       `json:"content"`
	AuthorID       *string      `json:"author_id"`
	CreatedAt      time.Time    `json:"created_at"`
	Votes          int          `json:"votes"`
	HasVoted       bool         `json:"has_voted"`
	SeriesVotes    int          `json:"series_votes"`
	LastActivityAt *time.Time   `json:"last_activity_at,omitempty"`
	Choices        []TaleChoice `json:"choices"`
}

// TaleSummary is a compact listing entry used in author profiles
type TaleSummary struct {
	ID             string    `json:"id"`
	Title          *string   `json:"title,omitempty"`
	ContentPreview string    `json:"content_preview"`
	CreatedAt      time.Time `json:"created_at"`
	VotesReceived  int       `json:"votes_received"`
}

// TalePreview holds the title and truncated body used when joining
// topology-store results with content-store text
type TalePreview struct {
	Title   *string
	Preview string
}

// Page is a paginated result envelope
type Page[T any] struct {
	Items      []T `json:"items"`
	TotalCount int `json:"total_count"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
}

// Preview returns content truncated to max runes. Adds no ellipsis; callers
// that want one append it. Truncation never splits a multi-byte character.
func Preview(content string, max int) string {
	if len(content) <= max {
		return content
	}
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max])
}
