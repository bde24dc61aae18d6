package services

import (
	"context"
	"time"

	"github.com/saeid-a/coachmatch/internal/models"
	"github.com/saeid-a/coachmatch/internal/repository"
)

type matchRequestStore interface {
	GetByID(ctx context.Context, id string) (*models.MatchRequest, error)
	ListByMember(ctx context.Context, memberID string, statuses []models.MatchStatus) ([]models.MatchRequest, error)
	ListByTrainer(ctx context.Context, trainerID string, statuses []models.MatchStatus) ([]models.MatchRequest, error)
	CreateIfNoActive(ctx context.Context, request models.MatchRequest) (*models.MatchRequest, error)
	UpdateStatusIfCurrent(
		ctx context.Context,
		id string,
		currentStatus models.MatchStatus,
		nextStatus models.MatchStatus,
		referral *models.Referral,
	) (*models.MatchRequest, error)
}

type appointmentStore interface {
	GetByID(ctx context.Context, id string) (*models.Appointment, error)
	ListByTrainerAndDate(
		ctx context.Context,
		trainerID string,
		date time.Time,
		statuses []models.AppointmentStatus,
	) ([]models.Appointment, error)
	ListByMemberAndTrainer(ctx context.Context, memberID string, trainerID string) ([]models.Appointment, error)
	ListForParticipant(ctx context.Context, actorID string, role string) ([]models.Appointment, error)
	CreateIfNoOverlap(ctx context.Context, appointment models.Appointment) (*models.Appointment, error)
	UpdateStatusIfCurrent(
		ctx context.Context,
		id string,
		currentStatus models.AppointmentStatus,
		nextStatus models.AppointmentStatus,
	) (*models.Appointment, error)
}

type notificationStore interface {
	Create(ctx context.Context, notification models.Notification) (*models.Notification, error)
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	ListByRecipient(ctx context.Context, filter repository.NotificationListFilter) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, id string, recipientID string) (*models.Notification, error)
}

type trainerReader interface {
	GetByUserID(ctx context.Context, userID string) (*models.TrainerProfile, error)
}

type TrainerLister interface {
	ListAll(ctx context.Context) ([]models.TrainerProfile, error)
}

type trainerDirectory interface {
	trainerReader
	TrainerLister
}

type eventDispatcher interface {
	Dispatch(ctx context.Context, event Event) []string
}

// Stores groups the repository collaborators the services are built on.
// PostgreSQL repositories and the in-memory store both fill it.
type Stores struct {
	MatchRequests matchRequestStore
	Appointments  appointmentStore
	Notifications notificationStore
	Trainers      trainerDirectory
}
