package models

import "time"

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

// DateLayout is the wire and storage layout of Appointment.Date.
const DateLayout = "2006-01-02"

type Appointment struct {
	ID              string            `json:"id"`
	MemberID        string            `json:"member_id"`
	TrainerID       string            `json:"trainer_id"`
	CourseType      string            `json:"course_type"`
	Date            time.Time         `json:"-"`
	TimeStart       TimeOfDay         `json:"time_start"`
	TimeEnd         TimeOfDay         `json:"time_end"`
	DurationMinutes int               `json:"duration_minutes"`
	Status          AppointmentStatus `json:"status"`
	Notes           *string           `json:"notes"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// DateString renders Date as a calendar day.
func (a *Appointment) DateString() string {
	return a.Date.Format(DateLayout)
}

// EndsAt places the end of the appointment on the wall clock of loc.
func (a *Appointment) EndsAt(loc *time.Location) time.Time {
	return a.TimeEnd.On(a.Date, loc)
}

// AppointmentView is an appointment as seen at read time.
type AppointmentView struct {
	Appointment
	Date            string            `json:"date"`
	EffectiveStatus AppointmentStatus `json:"effective_status"`
}

type AppointmentResult struct {
	AppointmentView
	Warnings []string `json:"warnings,omitempty"`
}

// TotalSessionsPerCourse is the number of completed sessions that make up a
// full course.
const TotalSessionsPerCourse = 10

type CourseProgress struct {
	MemberID              string `json:"member_id"`
	TrainerID             string `json:"trainer_id"`
	CourseType            string `json:"course_type"`
	CompletedSessions     int    `json:"completed_sessions"`
	TotalSessionsRequired int    `json:"total_sessions_required"`
	ProgressPercentage    int    `json:"progress_percentage"`
}
