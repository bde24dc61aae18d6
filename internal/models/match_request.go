package models

import "time"

type MatchStatus string

const (
	MatchStatusPending  MatchStatus = "pending"
	MatchStatusAccepted MatchStatus = "accepted"
	MatchStatusRejected MatchStatus = "rejected"
)

// ActiveMatchStatuses are the statuses that count towards the
// one-active-request-per-member rule.
var ActiveMatchStatuses = []MatchStatus{MatchStatusPending, MatchStatusAccepted}

func (s MatchStatus) IsActive() bool {
	return s == MatchStatusPending || s == MatchStatusAccepted
}

type Referral struct {
	AlternativeTrainerID   string `json:"alternative_trainer_id"`
	AlternativeTrainerName string `json:"alternative_trainer_name"`
}

type MatchRequest struct {
	ID           string      `json:"id"`
	MemberID     string      `json:"member_id"`
	TrainerID    string      `json:"trainer_id"`
	TrainingGoal string      `json:"training_goal"`
	Status       MatchStatus `json:"status"`
	RequestedAt  time.Time   `json:"requested_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	Referral     *Referral   `json:"referral,omitempty"`
}

func (r *MatchRequest) IsPending() bool {
	return r.Status == MatchStatusPending
}

type MatchRequestResult struct {
	MatchRequest
	Warnings []string `json:"warnings,omitempty"`
}
