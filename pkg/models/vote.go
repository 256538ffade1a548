package models

import "time"

// Vote is one row of the per-user vote ledger. The (user_id, tale_id)
// uniqueness constraint is the only serialization point for concurrent votes;
// the ledger row is the source of truth for "did this vote happen".
type Vote struct {
	ID      string    `json:"id" db:"id"`
	UserID  string    `json:"user_id" db:"user_id"`
	TaleID  string    `json:"tale_id" db:"tale_id"`
	VotedAt time.Time `json:"voted_at" db:"voted_at"`
}
