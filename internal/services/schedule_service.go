package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/saeid-a/coachmatch/internal/keylock"
	"github.com/saeid-a/coachmatch/internal/metrics"
	"github.com/saeid-a/coachmatch/internal/models"
	"github.com/saeid-a/coachmatch/internal/repository"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type ScheduleService struct {
	appointments appointmentStore
	dispatcher   eventDispatcher
	locks        *keylock.Locker
	timeout      time.Duration
	now          func() time.Time
	newID        func() string
}

func NewScheduleService(
	appointments appointmentStore,
	dispatcher eventDispatcher,
	locks *keylock.Locker,
	timeout time.Duration,
) *ScheduleService {
	if locks == nil {
		locks = keylock.New()
	}
	return &ScheduleService{
		appointments: appointments,
		dispatcher:   dispatcher,
		locks:        locks,
		timeout:      timeout,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

type BookInput struct {
	TrainerID  string
	MemberID   string
	CourseType string
	Date       time.Time
	TimeStart  models.TimeOfDay
	TimeEnd    models.TimeOfDay
	Notes      *string
}

// Book creates a scheduled appointment unless it overlaps another scheduled
// appointment of the same trainer on the same day. The conflict check and
// the insert are serialised per (trainer, date).
func (s *ScheduleService) Book(ctx context.Context, input BookInput) (*models.AppointmentResult, error) {
	ctx, span := tracer.Start(ctx, "ScheduleService.Book", trace.WithAttributes(
		attribute.String("trainer.id", input.TrainerID),
		attribute.String("appointment.date", input.Date.Format(models.DateLayout)),
	))
	defer span.End()

	input.TrainerID = strings.TrimSpace(input.TrainerID)
	input.MemberID = strings.TrimSpace(input.MemberID)
	input.CourseType = strings.TrimSpace(input.CourseType)
	if input.TrainerID == "" || input.MemberID == "" || input.CourseType == "" || input.Date.IsZero() {
		return nil, ErrInvalidInput
	}
	if !input.TimeStart.Valid() || !input.TimeEnd.Valid() || input.TimeEnd <= input.TimeStart {
		return nil, ErrInvalidTimeRange
	}

	date := calendarDate(input.Date)
	lockKey := fmt.Sprintf("trainer:%s:%s", input.TrainerID, date.Format(models.DateLayout))
	lockCtx, cancelLock := repositoryContext(ctx, s.timeout)
	unlock, err := s.locks.Lock(lockCtx, lockKey)
	cancelLock()
	if err != nil {
		return nil, fmt.Errorf("%w: waiting for trainer schedule lock: %v", ErrRepositoryUnavailable, err)
	}
	defer unlock()

	callCtx, cancel := repositoryContext(ctx, s.timeout)
	existing, err := s.appointments.ListByTrainerAndDate(
		callCtx,
		input.TrainerID,
		date,
		[]models.AppointmentStatus{models.AppointmentStatusScheduled},
	)
	cancel()
	if err != nil {
		return nil, storeError("appointments.list_by_trainer_date", err)
	}
	if FindConflict(existing, input.TimeStart, input.TimeEnd) != nil {
		metrics.RecordAppointment("conflict")
		return nil, ErrSchedulingConflict
	}

	now := s.now()
	callCtx, cancel = repositoryContext(ctx, s.timeout)
	defer cancel()
	created, err := s.appointments.CreateIfNoOverlap(callCtx, models.Appointment{
		ID:              s.newID(),
		MemberID:        input.MemberID,
		TrainerID:       input.TrainerID,
		CourseType:      input.CourseType,
		Date:            date,
		TimeStart:       input.TimeStart,
		TimeEnd:         input.TimeEnd,
		DurationMinutes: input.TimeEnd.Minutes() - input.TimeStart.Minutes(),
		Status:          models.AppointmentStatusScheduled,
		Notes:           input.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			metrics.RecordAppointment("conflict")
			return nil, ErrSchedulingConflict
		}
		return nil, storeError("appointments.create", err)
	}
	metrics.RecordAppointment("booked")

	warnings := s.dispatch(ctx, Event{
		Kind:        EventAppointmentBooked,
		ActorID:     input.MemberID,
		Appointment: created,
		OccurredAt:  now,
	})
	return &models.AppointmentResult{
		AppointmentView: NewAppointmentView(*created, now),
		Warnings:        warnings,
	}, nil
}

// Cancel moves a scheduled appointment to cancelled on behalf of its member
// or trainer and tells the other party.
func (s *ScheduleService) Cancel(ctx context.Context, appointmentID string, actorID string) (*models.AppointmentResult, error) {
	ctx, span := tracer.Start(ctx, "ScheduleService.Cancel", trace.WithAttributes(
		attribute.String("appointment.id", appointmentID),
	))
	defer span.End()

	callCtx, cancel := repositoryContext(ctx, s.timeout)
	appointment, err := s.appointments.GetByID(callCtx, appointmentID)
	cancel()
	if err != nil {
		return nil, storeError("appointments.get", err)
	}
	if actorID != appointment.MemberID && actorID != appointment.TrainerID {
		return nil, ErrNotAuthorized
	}

	now := s.now()
	if EffectiveStatus(*appointment, now) != models.AppointmentStatusScheduled {
		return nil, ErrInvalidState
	}

	callCtx, cancel = repositoryContext(ctx, s.timeout)
	defer cancel()
	updated, err := s.appointments.UpdateStatusIfCurrent(
		callCtx,
		appointment.ID,
		models.AppointmentStatusScheduled,
		models.AppointmentStatusCancelled,
	)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrInvalidState
		}
		return nil, storeError("appointments.update_status", err)
	}
	metrics.RecordAppointment("cancelled")

	warnings := s.dispatch(ctx, Event{
		Kind:        EventAppointmentCancelled,
		ActorID:     actorID,
		Appointment: updated,
		OccurredAt:  now,
	})
	return &models.AppointmentResult{
		AppointmentView: NewAppointmentView(*updated, now),
		Warnings:        warnings,
	}, nil
}

// EffectiveStatus is the read-time status of appointment right now.
func (s *ScheduleService) EffectiveStatus(appointment models.Appointment) models.AppointmentStatus {
	return EffectiveStatus(appointment, s.now())
}

func (s *ScheduleService) Progress(
	ctx context.Context,
	memberID string,
	trainerID string,
) (map[string]models.CourseProgress, error) {
	callCtx, cancel := repositoryContext(ctx, s.timeout)
	defer cancel()

	appointments, err := s.appointments.ListByMemberAndTrainer(callCtx, memberID, trainerID)
	if err != nil {
		return nil, storeError("appointments.list_by_member_trainer", err)
	}
	return ComputeProgress(memberID, trainerID, appointments, s.now()), nil
}

// ListForActor returns the actor's appointments with their effective status,
// optionally narrowed to "upcoming" or "past".
func (s *ScheduleService) ListForActor(
	ctx context.Context,
	actorID string,
	role string,
	timeframe string,
) ([]models.AppointmentView, error) {
	if role != models.RoleMember && role != models.RoleTrainer {
		return nil, ErrNotAuthorized
	}

	callCtx, cancel := repositoryContext(ctx, s.timeout)
	defer cancel()

	appointments, err := s.appointments.ListForParticipant(callCtx, actorID, role)
	if err != nil {
		return nil, storeError("appointments.list_for_participant", err)
	}

	now := s.now()
	appointments = filterByTimeframe(appointments, timeframe, now)
	sortAppointments(appointments)

	views := make([]models.AppointmentView, 0, len(appointments))
	for _, appointment := range appointments {
		views = append(views, NewAppointmentView(appointment, now))
	}
	return views, nil
}

// GetForActor returns one appointment if the actor takes part in it.
func (s *ScheduleService) GetForActor(ctx context.Context, appointmentID string, actorID string) (*models.AppointmentView, error) {
	callCtx, cancel := repositoryContext(ctx, s.timeout)
	defer cancel()

	appointment, err := s.appointments.GetByID(callCtx, appointmentID)
	if err != nil {
		return nil, storeError("appointments.get", err)
	}
	if actorID != appointment.MemberID && actorID != appointment.TrainerID {
		return nil, ErrNotAuthorized
	}
	view := NewAppointmentView(*appointment, s.now())
	return &view, nil
}

func (s *ScheduleService) CheckAvailability(
	ctx context.Context,
	trainerID string,
	date time.Time,
	start models.TimeOfDay,
	end models.TimeOfDay,
) (bool, error) {
	if !start.Valid() || !end.Valid() || end <= start {
		return false, ErrInvalidTimeRange
	}

	callCtx, cancel := repositoryContext(ctx, s.timeout)
	defer cancel()

	existing, err := s.appointments.ListByTrainerAndDate(
		callCtx,
		trainerID,
		calendarDate(date),
		[]models.AppointmentStatus{models.AppointmentStatusScheduled},
	)
	if err != nil {
		return false, storeError("appointments.list_by_trainer_date", err)
	}
	return FindConflict(existing, start, end) == nil, nil
}

func (s *ScheduleService) dispatch(ctx context.Context, event Event) []string {
	if s.dispatcher == nil {
		return nil
	}
	return s.dispatcher.Dispatch(ctx, event)
}

func calendarDate(date time.Time) time.Time {
	year, month, day := date.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, date.Location())
}
