package models

import "time"

// Feedback is a user-submitted feedback row
type Feedback struct {
	ID          string    `json:"id" db:"id"`
	UserEmail   string    `json:"user_email" db:"user_email"`
	Message     string    `json:"message" db:"message"`
	SubmittedAt time.Time `json:"submitted_at" db:"submitted_at"`
}

// CreateFeedbackRequest is the request for submitting feedback
type CreateFeedbackRequest struct {
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required,max=2000"`
}
