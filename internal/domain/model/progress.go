package model

import "time"

// ProgressEvent is what the progress aggregator consumes for streaks and badges.
type ProgressEvent struct {
	UserID          string    `json:"user_id"`
	ProblemID       string    `json:"problem_id"`
	SubmissionID    string    `json:"submission_id"`
	FirstAcceptedAt time.Time `json:"first_accepted_at"`
	Attempts        int       `json:"attempts,omitempty"` // relay attempts so far
}
