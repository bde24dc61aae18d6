package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/saeid-a/coachmatch/internal/metrics"
	"github.com/saeid-a/coachmatch/internal/models"
)

type EventKind string

const (
	EventRequestAccepted      EventKind = "request.accepted"
	EventRequestRejected      EventKind = "request.rejected"
	EventAppointmentBooked    EventKind = "appointment.booked"
	EventAppointmentCancelled EventKind = "appointment.cancelled"
	// EventAppointmentReminder is mapped to a notification, but nothing in the
	// core schedules it.
	EventAppointmentReminder EventKind = "appointment.reminder"
)

var notificationNamespace = uuid.MustParse("5d3c9a1e-7f0b-4c55-9d6e-2a8b1f4e6c10")

// Event is a completed state transition that members or trainers should
// hear about.
type Event struct {
	Kind         EventKind
	ActorID      string
	MatchRequest *models.MatchRequest
	Appointment  *models.Appointment
	TrainerName  string
	OccurredAt   time.Time
}

// NotificationSink receives notifications after they were stored. Sinks are
// best-effort: their errors are logged and otherwise ignored.
type NotificationSink interface {
	Publish(ctx context.Context, notification models.Notification) error
}

// RetryQueue keeps notifications whose write failed so they can be written
// later, outside the operation that produced them.
type RetryQueue interface {
	Enqueue(ctx context.Context, notification models.Notification) error
}

type NotificationDispatcher struct {
	store   notificationStore
	sinks   []NotificationSink
	retry   RetryQueue
	timeout time.Duration
}

func NewNotificationDispatcher(
	store notificationStore,
	retry RetryQueue,
	timeout time.Duration,
	sinks ...NotificationSink,
) *NotificationDispatcher {
	return &NotificationDispatcher{
		store:   store,
		sinks:   sinks,
		retry:   retry,
		timeout: timeout,
	}
}

// Dispatch stores the notifications for event and fans them out to the
// sinks. It never fails: every notification that could not be stored is
// queued for retry and reported as a warning.
func (d *NotificationDispatcher) Dispatch(ctx context.Context, event Event) []string {
	ctx = context.WithoutCancel(ctx)
	ctx, span := tracer.Start(ctx, "NotificationDispatcher.Dispatch")
	defer span.End()

	var warnings []string
	for _, notification := range BuildNotifications(event) {
		stored, err := d.write(ctx, notification)
		if err != nil {
			log.Printf("notification %s for %s not written: %v", notification.ID, notification.RecipientID, err)
			metrics.RecordNotification(string(notification.Type), "failed")
			d.enqueueRetry(ctx, notification)
			warnings = append(warnings, fmt.Sprintf("notification to %s was not delivered", notification.RecipientID))
			continue
		}
		metrics.RecordNotification(string(notification.Type), "written")
		d.publish(ctx, *stored)
	}
	return warnings
}

func (d *NotificationDispatcher) write(ctx context.Context, notification models.Notification) (*models.Notification, error) {
	if d.store == nil {
		return nil, fmt.Errorf("%w: no notification store", ErrRepositoryUnavailable)
	}
	callCtx, cancel := repositoryContext(ctx, d.timeout)
	defer cancel()

	stored, err := d.store.Create(callCtx, notification)
	if err != nil {
		return nil, storeError("notifications.create", err)
	}
	return stored, nil
}

func (d *NotificationDispatcher) enqueueRetry(ctx context.Context, notification models.Notification) {
	if d.retry == nil {
		return
	}
	callCtx, cancel := repositoryContext(ctx, d.timeout)
	defer cancel()

	if err := d.retry.Enqueue(callCtx, notification); err != nil {
		log.Printf("notification %s could not be queued for retry: %v", notification.ID, err)
	}
}

func (d *NotificationDispatcher) publish(ctx context.Context, notification models.Notification) {
	for _, sink := range d.sinks {
		callCtx, cancel := repositoryContext(ctx, d.timeout)
		if err := sink.Publish(callCtx, notification); err != nil {
			log.Printf("notification %s publish failed: %v", notification.ID, err)
		}
		cancel()
	}
}

// BuildNotifications maps an event to the notifications it produces. The
// mapping is pure: the same event always yields the same records, ids
// included, so a retried write cannot create a duplicate.
func BuildNotifications(event Event) []models.Notification {
	switch event.Kind {
	case EventRequestAccepted:
		request := event.MatchRequest
		if request == nil {
			return nil
		}
		return []models.Notification{newNotification(
			event,
			request.ID,
			request.MemberID,
			models.NotificationTypeTraining,
			"Training request accepted",
			fmt.Sprintf("Your training request was accepted by %s.", trainerLabel(event.TrainerName, request.TrainerID)),
		)}
	case EventRequestRejected:
		request := event.MatchRequest
		if request == nil {
			return nil
		}
		description := fmt.Sprintf("%s is not able to take your training request.", trainerLabel(event.TrainerName, request.TrainerID))
		if request.Referral != nil {
			description += fmt.Sprintf(" They recommend training with %s instead.",
				trainerLabel(request.Referral.AlternativeTrainerName, request.Referral.AlternativeTrainerID))
		}
		return []models.Notification{newNotification(
			event,
			request.ID,
			request.MemberID,
			models.NotificationTypeTraining,
			"Training request declined",
			description,
		)}
	case EventAppointmentBooked:
		appointment := event.Appointment
		if appointment == nil {
			return nil
		}
		return []models.Notification{newNotification(
			event,
			appointment.ID,
			appointment.MemberID,
			models.NotificationTypeAppointment,
			"New session booked",
			fmt.Sprintf("%s session on %s from %s to %s.",
				appointment.CourseType, appointment.DateString(), appointment.TimeStart, appointment.TimeEnd),
		)}
	case EventAppointmentCancelled:
		appointment := event.Appointment
		if appointment == nil {
			return nil
		}
		recipient := appointment.MemberID
		if event.ActorID == appointment.MemberID {
			recipient = appointment.TrainerID
		}
		return []models.Notification{newNotification(
			event,
			appointment.ID,
			recipient,
			models.NotificationTypeAppointment,
			"Session cancelled",
			fmt.Sprintf("The %s session on %s from %s to %s was cancelled.",
				appointment.CourseType, appointment.DateString(), appointment.TimeStart, appointment.TimeEnd),
		)}
	case EventAppointmentReminder:
		appointment := event.Appointment
		if appointment == nil {
			return nil
		}
		return []models.Notification{newNotification(
			event,
			appointment.ID,
			appointment.MemberID,
			models.NotificationTypeAppointment,
			"Upcoming session",
			fmt.Sprintf("Reminder: %s session on %s at %s.",
				appointment.CourseType, appointment.DateString(), appointment.TimeStart),
		)}
	default:
		return nil
	}
}

func newNotification(
	event Event,
	subjectID string,
	recipientID string,
	notificationType models.NotificationType,
	title string,
	description string,
) models.Notification {
	key := string(event.Kind) + "|" + subjectID + "|" + recipientID
	return models.Notification{
		ID:          uuid.NewSHA1(notificationNamespace, []byte(key)).String(),
		RecipientID: recipientID,
		Title:       title,
		Description: description,
		Type:        notificationType,
		Read:        false,
		CreatedAt:   event.OccurredAt,
	}
}

func trainerLabel(name, id string) string {
	if name != "" {
		return name
	}
	return "trainer " + id
}
