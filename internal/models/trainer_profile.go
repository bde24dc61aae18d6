package models

import "time"

type TrainerProfile struct {
	UserID          string    `json:"user_id"`
	FullName        string    `json:"full_name"`
	Specializations []string  `json:"specializations"`
	Certifications  []string  `json:"certifications"`
	ExperienceYears int       `json:"experience_years"`
	Rating          *float64  `json:"rating"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DisplayName falls back to the user id when no name is on file.
func (p *TrainerProfile) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.FullName != "" {
		return p.FullName
	}
	return p.UserID
}

type TrainerMatch struct {
	TrainerProfile
	MatchScore int `json:"match_score"`
}
