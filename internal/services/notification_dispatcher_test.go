package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/saeid-a/coachmatch/internal/models"
	"github.com/saeid-a/coachmatch/internal/repository"
	"github.com/saeid-a/coachmatch/internal/repository/memstore"
)

type recordingRetryQueue struct {
	mu    sync.Mutex
	items []models.Notification
}

func (q *recordingRetryQueue) Enqueue(_ context.Context, notification models.Notification) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, notification)
	return nil
}

type recordingSink struct {
	published []models.Notification
	err       error
}

func (s *recordingSink) Publish(_ context.Context, notification models.Notification) error {
	s.published = append(s.published, notification)
	return s.err
}

type failingNotificationStore struct {
	notificationStore
}

func (s *failingNotificationStore) Create(context.Context, models.Notification) (*models.Notification, error) {
	return nil, errStoreDown
}

func sampleAppointment() *models.Appointment {
	return &models.Appointment{
		ID:         "appt-1",
		MemberID:   "member-1",
		TrainerID:  "trainer-1",
		CourseType: "strength",
		Date:       time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC),
		TimeStart:  models.NewTimeOfDay(9, 0),
		TimeEnd:    models.NewTimeOfDay(10, 0),
		Status:     models.AppointmentStatusScheduled,
	}
}

func TestBuildNotificationsRecipients(t *testing.T) {
	request := &models.MatchRequest{ID: "req-1", MemberID: "member-1", TrainerID: "trainer-1"}
	appointment := sampleAppointment()

	cases := []struct {
		name      string
		event     Event
		recipient string
		kind      models.NotificationType
	}{
		{"accepted", Event{Kind: EventRequestAccepted, ActorID: "trainer-1", MatchRequest: request}, "member-1", models.NotificationTypeTraining},
		{"rejected", Event{Kind: EventRequestRejected, ActorID: "trainer-1", MatchRequest: request}, "member-1", models.NotificationTypeTraining},
		{"booked", Event{Kind: EventAppointmentBooked, ActorID: "member-1", Appointment: appointment}, "member-1", models.NotificationTypeAppointment},
		{"cancelled by member", Event{Kind: EventAppointmentCancelled, ActorID: "member-1", Appointment: appointment}, "trainer-1", models.NotificationTypeAppointment},
		{"cancelled by trainer", Event{Kind: EventAppointmentCancelled, ActorID: "trainer-1", Appointment: appointment}, "member-1", models.NotificationTypeAppointment},
		{"reminder", Event{Kind: EventAppointmentReminder, Appointment: appointment}, "member-1", models.NotificationTypeAppointment},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			notifications := BuildNotifications(tc.event)
			if len(notifications) != 1 {
				t.Fatalf("expected one notification, got %d", len(notifications))
			}
			if notifications[0].RecipientID != tc.recipient || notifications[0].Type != tc.kind {
				t.Fatalf("unexpected notification %+v", notifications[0])
			}
			if notifications[0].Read {
				t.Fatalf("new notifications must be unread")
			}
		})
	}

	if got := BuildNotifications(Event{Kind: "unknown"}); got != nil {
		t.Fatalf("expected no notifications for unknown event, got %+v", got)
	}
}

func TestBuildNotificationsIsDeterministic(t *testing.T) {
	event := Event{Kind: EventAppointmentBooked, ActorID: "member-1", Appointment: sampleAppointment()}

	first := BuildNotifications(event)
	second := BuildNotifications(event)
	if first[0].ID != second[0].ID {
		t.Fatalf("expected stable id, got %s and %s", first[0].ID, second[0].ID)
	}

	cancelled := BuildNotifications(Event{Kind: EventAppointmentCancelled, ActorID: "member-1", Appointment: sampleAppointment()})
	if cancelled[0].ID == first[0].ID {
		t.Fatalf("different events must not share an id")
	}
}

func TestRejectedNotificationNamesReferral(t *testing.T) {
	notifications := BuildNotifications(Event{
		Kind:        EventRequestRejected,
		TrainerName: "Sara Coach",
		MatchRequest: &models.MatchRequest{
			ID:       "req-1",
			MemberID: "member-1",
			Referral: &models.Referral{AlternativeTrainerID: "trainer-2", AlternativeTrainerName: "Ali Strong"},
		},
	})
	description := notifications[0].Description
	if !strings.Contains(description, "Sara Coach") || !strings.Contains(description, "Ali Strong") {
		t.Fatalf("expected both trainers in %q", description)
	}
}

func TestDispatchStoresAndPublishes(t *testing.T) {
	store := memstore.New()
	sink := &recordingSink{err: errors.New("socket closed")}
	dispatcher := NewNotificationDispatcher(store.Notifications(), nil, time.Second, sink)
	event := Event{Kind: EventAppointmentBooked, ActorID: "member-1", Appointment: sampleAppointment()}

	if warnings := dispatcher.Dispatch(context.Background(), event); len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
	// A repeated dispatch of the same event must not duplicate.
	dispatcher.Dispatch(context.Background(), event)

	items, total, err := store.Notifications().ListByRecipient(context.Background(), repository.NotificationListFilter{RecipientID: "member-1"})
	if err != nil {
		t.Fatalf("ListByRecipient: %v", err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("expected one stored notification, got %d", total)
	}
	if len(sink.published) != 2 {
		t.Fatalf("expected sink to see both dispatches, got %d", len(sink.published))
	}
}

func TestDispatchQueuesFailedWritesAsWarnings(t *testing.T) {
	retry := &recordingRetryQueue{}
	sink := &recordingSink{}
	dispatcher := NewNotificationDispatcher(&failingNotificationStore{}, retry, time.Second, sink)

	warnings := dispatcher.Dispatch(context.Background(), Event{
		Kind:        EventAppointmentCancelled,
		ActorID:     "member-1",
		Appointment: sampleAppointment(),
	})
	if len(warnings) != 1 || !strings.Contains(warnings[0], "trainer-1") {
		t.Fatalf("expected a warning naming the recipient, got %v", warnings)
	}
	if len(retry.items) != 1 || retry.items[0].RecipientID != "trainer-1" {
		t.Fatalf("expected failed notification to be queued, got %+v", retry.items)
	}
	if len(sink.published) != 0 {
		t.Fatalf("unstored notifications must not be published")
	}
}

func TestDispatchSurvivesCanceledCaller(t *testing.T) {
	store := memstore.New()
	dispatcher := NewNotificationDispatcher(store.Notifications(), nil, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	warnings := dispatcher.Dispatch(ctx, Event{Kind: EventAppointmentBooked, ActorID: "member-1", Appointment: sampleAppointment()})
	if len(warnings) != 0 {
		t.Fatalf("expected dispatch to finish after caller cancel, got %v", warnings)
	}
}

func TestBookWarnsWhenNotificationFails(t *testing.T) {
	store := memstore.New()
	retry := &recordingRetryQueue{}
	dispatcher := NewNotificationDispatcher(&failingNotificationStore{}, retry, time.Second)
	service := NewScheduleService(store.Appointments(), dispatcher, nil, time.Second)
	service.now = (&fixedClock{now: scheduleNow}).Now

	result, err := service.Book(context.Background(), bookInput(t, "member-1", scheduleNow.AddDate(0, 0, 1), "09:00", "10:00"))
	if err != nil {
		t.Fatalf("booking must succeed when notification write fails: %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", result.Warnings)
	}
	if _, err := store.Appointments().GetByID(context.Background(), result.ID); err != nil {
		t.Fatalf("appointment should be stored: %v", err)
	}
}
