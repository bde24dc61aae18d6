package services

import (
	"math"
	"sort"
	"time"

	"github.com/saeid-a/coachmatch/internal/models"
)

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) share any minute. Touching intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd models.TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}

// FindConflict returns the first scheduled appointment in existing that
// overlaps [start, end), or nil.
func FindConflict(existing []models.Appointment, start, end models.TimeOfDay) *models.Appointment {
	for i := range existing {
		appointment := &existing[i]
		if appointment.Status != models.AppointmentStatusScheduled {
			continue
		}
		if Overlaps(start, end, appointment.TimeStart, appointment.TimeEnd) {
			return appointment
		}
	}
	return nil
}

// EffectiveStatus is the status of appointment as observed at now. A
// scheduled appointment whose end lies strictly in the past reads as
// completed; the stored record is left alone.
func EffectiveStatus(appointment models.Appointment, now time.Time) models.AppointmentStatus {
	if appointment.Status == models.AppointmentStatusScheduled && appointment.EndsAt(now.Location()).Before(now) {
		return models.AppointmentStatusCompleted
	}
	return appointment.Status
}

func NewAppointmentView(appointment models.Appointment, now time.Time) models.AppointmentView {
	return models.AppointmentView{
		Appointment:     appointment,
		Date:            appointment.DateString(),
		EffectiveStatus: EffectiveStatus(appointment, now),
	}
}

// ComputeProgress groups appointments by course type and counts the ones that
// are effectively completed at now.
func ComputeProgress(
	memberID string,
	trainerID string,
	appointments []models.Appointment,
	now time.Time,
) map[string]models.CourseProgress {
	progress := make(map[string]models.CourseProgress)
	for _, appointment := range appointments {
		course := progress[appointment.CourseType]
		course.MemberID = memberID
		course.TrainerID = trainerID
		course.CourseType = appointment.CourseType
		course.TotalSessionsRequired = models.TotalSessionsPerCourse
		if EffectiveStatus(appointment, now) == models.AppointmentStatusCompleted {
			course.CompletedSessions++
		}
		progress[appointment.CourseType] = course
	}

	for courseType, course := range progress {
		course.ProgressPercentage = progressPercentage(course.CompletedSessions, course.TotalSessionsRequired)
		progress[courseType] = course
	}
	return progress
}

func progressPercentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	percentage := int(math.Round(100 * float64(completed) / float64(total)))
	return min(percentage, 100)
}

// filterByTimeframe keeps appointments that end after now ("upcoming") or at
// or before now ("past"). Any other timeframe keeps everything.
func filterByTimeframe(appointments []models.Appointment, timeframe string, now time.Time) []models.Appointment {
	if timeframe != "upcoming" && timeframe != "past" {
		return appointments
	}
	kept := make([]models.Appointment, 0, len(appointments))
	for _, appointment := range appointments {
		upcoming := appointment.EndsAt(now.Location()).After(now)
		if (timeframe == "upcoming") == upcoming {
			kept = append(kept, appointment)
		}
	}
	return kept
}

func sortAppointments(appointments []models.Appointment) {
	sort.SliceStable(appointments, func(i, j int) bool {
		a, b := appointments[i], appointments[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.TimeStart < b.TimeStart
	})
}
