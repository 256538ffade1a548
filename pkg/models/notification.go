package models

import "time"

// Notification types
const (
	NotificationTypeVote   = "VOTE"
	NotificationTypeBranch = "BRANCH"
	NotificationTypeSystem = "SYSTEM"
)

// Notification is a stored in-app notification. Rows where the recipient is
// the triggering actor are never written.
type Notification struct {
	ID              string    `json:"id" db:"id"`
	UserID          string    `json:"user_id" db:"user_id"`
	TriggeredByID   string    `json:"triggered_by_id" db:"triggered_by_id"`
	TriggeredByName string    `json:"triggered_by_name" db:"triggered_by_name"`
	Type            string    `json:"type" db:"type"`
	Message         string    `json:"message" db:"message"`
	RelatedTaleID   *string   `json:"related_tale_id,omitempty" db:"related_tale_id"`
	IsRead          bool      `json:"is_read" db:"is_read"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
