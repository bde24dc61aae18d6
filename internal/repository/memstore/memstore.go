// Package memstore is an in-process implementation of the repository
// contracts. It backs local development without PostgreSQL and the service
// tests. All writers share one mutex, which makes every conditional write
// atomic with respect to the others.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/saeid-a/coachmatch/internal/models"
	"github.com/saeid-a/coachmatch/internal/repository"
)

type Store struct {
	mu            sync.RWMutex
	now           func() time.Time
	matchRequests map[string]models.MatchRequest
	appointments  map[string]models.Appointment
	notifications map[string]models.Notification
	trainers      map[string]models.TrainerProfile
}

func New() *Store {
	return &Store{
		now:           time.Now,
		matchRequests: make(map[string]models.MatchRequest),
		appointments:  make(map[string]models.Appointment),
		notifications: make(map[string]models.Notification),
		trainers:      make(map[string]models.TrainerProfile),
	}
}

// MatchRequests, Appointments, Notifications and Trainers expose the store
// under the per-kind method sets the services consume.
func (s *Store) MatchRequests() *MatchRequests { return &MatchRequests{s: s} }
func (s *Store) Appointments() *Appointments   { return &Appointments{s: s} }
func (s *Store) Notifications() *Notifications { return &Notifications{s: s} }
func (s *Store) Trainers() *Trainers           { return &Trainers{s: s} }

type MatchRequests struct{ s *Store }

func (r *MatchRequests) GetByID(ctx context.Context, id string) (*models.MatchRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	request, ok := r.s.matchRequests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneMatchRequest(request), nil
}

func (r *MatchRequests) ListByMember(
	ctx context.Context,
	memberID string,
	statuses []models.MatchStatus,
) ([]models.MatchRequest, error) {
	requests, err := r.filter(ctx, func(request models.MatchRequest) bool {
		return request.MemberID == memberID && statusIn(request.Status, statuses)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].RequestedAt.After(requests[j].RequestedAt)
	})
	return requests, nil
}

func (r *MatchRequests) ListByTrainer(
	ctx context.Context,
	trainerID string,
	statuses []models.MatchStatus,
) ([]models.MatchRequest, error) {
	requests, err := r.filter(ctx, func(request models.MatchRequest) bool {
		return request.TrainerID == trainerID && statusIn(request.Status, statuses)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(requests, func(i, j int) bool {
		return requests[i].RequestedAt.Before(requests[j].RequestedAt)
	})
	return requests, nil
}

func (r *MatchRequests) CreateIfNoActive(ctx context.Context, request models.MatchRequest) (*models.MatchRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.matchRequests[request.ID]; exists {
		return nil, repository.ErrConflict
	}
	for _, existing := range r.s.matchRequests {
		if existing.MemberID == request.MemberID && existing.Status.IsActive() {
			return nil, repository.ErrConflict
		}
	}
	request.UpdatedAt = request.RequestedAt
	r.s.matchRequests[request.ID] = request
	return cloneMatchRequest(request), nil
}

func (r *MatchRequests) UpdateStatusIfCurrent(
	ctx context.Context,
	id string,
	currentStatus models.MatchStatus,
	nextStatus models.MatchStatus,
	referral *models.Referral,
) (*models.MatchRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	request, ok := r.s.matchRequests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if request.Status != currentStatus {
		return nil, repository.ErrConflict
	}
	request.Status = nextStatus
	if referral != nil {
		copied := *referral
		request.Referral = &copied
	}
	request.UpdatedAt = r.s.now()
	r.s.matchRequests[id] = request
	return cloneMatchRequest(request), nil
}

func (r *MatchRequests) filter(ctx context.Context, keep func(models.MatchRequest) bool) ([]models.MatchRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	requests := make([]models.MatchRequest, 0)
	for _, request := range r.s.matchRequests {
		if keep(request) {
			requests = append(requests, *cloneMatchRequest(request))
		}
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].ID < requests[j].ID })
	return requests, nil
}

type Appointments struct{ s *Store }

func (r *Appointments) GetByID(ctx context.Context, id string) (*models.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	appointment, ok := r.s.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneAppointment(appointment), nil
}

func (r *Appointments) ListByTrainerAndDate(
	ctx context.Context,
	trainerID string,
	date time.Time,
	statuses []models.AppointmentStatus,
) ([]models.Appointment, error) {
	return r.filter(ctx, func(appointment models.Appointment) bool {
		return appointment.TrainerID == trainerID &&
			sameDay(appointment.Date, date) &&
			(len(statuses) == 0 || slices.Contains(statuses, appointment.Status))
	})
}

func (r *Appointments) ListByMemberAndTrainer(
	ctx context.Context,
	memberID string,
	trainerID string,
) ([]models.Appointment, error) {
	return r.filter(ctx, func(appointment models.Appointment) bool {
		return appointment.MemberID == memberID && appointment.TrainerID == trainerID
	})
}

func (r *Appointments) ListForParticipant(ctx context.Context, actorID string, role string) ([]models.Appointment, error) {
	return r.filter(ctx, func(appointment models.Appointment) bool {
		if role == models.RoleTrainer {
			return appointment.TrainerID == actorID
		}
		return appointment.MemberID == actorID
	})
}

func (r *Appointments) CreateIfNoOverlap(ctx context.Context, appointment models.Appointment) (*models.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.appointments[appointment.ID]; exists {
		return nil, repository.ErrConflict
	}
	for _, existing := range r.s.appointments {
		if existing.TrainerID != appointment.TrainerID ||
			existing.Status != models.AppointmentStatusScheduled ||
			!sameDay(existing.Date, appointment.Date) {
			continue
		}
		if existing.TimeStart < appointment.TimeEnd && appointment.TimeStart < existing.TimeEnd {
			return nil, repository.ErrConflict
		}
	}
	appointment.UpdatedAt = appointment.CreatedAt
	r.s.appointments[appointment.ID] = appointment
	return cloneAppointment(appointment), nil
}

func (r *Appointments) UpdateStatusIfCurrent(
	ctx context.Context,
	id string,
	currentStatus models.AppointmentStatus,
	nextStatus models.AppointmentStatus,
) (*models.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	appointment, ok := r.s.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if appointment.Status != currentStatus {
		return nil, repository.ErrConflict
	}
	appointment.Status = nextStatus
	appointment.UpdatedAt = r.s.now()
	r.s.appointments[id] = appointment
	return cloneAppointment(appointment), nil
}

func (r *Appointments) filter(ctx context.Context, keep func(models.Appointment) bool) ([]models.Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	appointments := make([]models.Appointment, 0)
	for _, appointment := range r.s.appointments {
		if keep(appointment) {
			appointments = append(appointments, *cloneAppointment(appointment))
		}
	}
	sort.Slice(appointments, func(i, j int) bool {
		if !sameDay(appointments[i].Date, appointments[j].Date) {
			return appointments[i].Date.Before(appointments[j].Date)
		}
		if appointments[i].TimeStart != appointments[j].TimeStart {
			return appointments[i].TimeStart < appointments[j].TimeStart
		}
		return appointments[i].ID < appointments[j].ID
	})
	return appointments, nil
}

type Notifications struct{ s *Store }

func (r *Notifications) Create(ctx context.Context, notification models.Notification) (*models.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if existing, ok := r.s.notifications[notification.ID]; ok {
		return &existing, nil
	}
	r.s.notifications[notification.ID] = notification
	return &notification, nil
}

func (r *Notifications) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	notification, ok := r.s.notifications[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &notification, nil
}

func (r *Notifications) ListByRecipient(
	ctx context.Context,
	filter repository.NotificationListFilter,
) ([]models.Notification, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := make([]models.Notification, 0)
	for _, notification := range r.s.notifications {
		if notification.RecipientID != filter.RecipientID {
			continue
		}
		if filter.UnreadOnly && notification.Read {
			continue
		}
		matched = append(matched, notification)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := min(max(filter.Offset, 0), total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}
	return matched[start:end], total, nil
}

func (r *Notifications) MarkRead(ctx context.Context, id string, recipientID string) (*models.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	notification, ok := r.s.notifications[id]
	if !ok || notification.RecipientID != recipientID {
		return nil, repository.ErrNotFound
	}
	notification.Read = true
	r.s.notifications[id] = notification
	return &notification, nil
}

type Trainers struct{ s *Store }

func (r *Trainers) GetByUserID(ctx context.Context, userID string) (*models.TrainerProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	profile, ok := r.s.trainers[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &profile, nil
}

func (r *Trainers) ListAll(ctx context.Context) ([]models.TrainerProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	profiles := make([]models.TrainerProfile, 0, len(r.s.trainers))
	for _, profile := range r.s.trainers {
		profiles = append(profiles, profile)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].UserID < profiles[j].UserID })
	return profiles, nil
}

func (r *Trainers) Upsert(ctx context.Context, input repository.UpsertTrainerInput) (*models.TrainerProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	profile, ok := r.s.trainers[input.UserID]
	if !ok {
		profile.CreatedAt = now
	}
	profile.UserID = input.UserID
	profile.FullName = input.FullName
	profile.Specializations = slices.Clone(input.Specializations)
	profile.Certifications = slices.Clone(input.Certifications)
	profile.ExperienceYears = input.ExperienceYears
	profile.Rating = input.Rating
	profile.UpdatedAt = now
	r.s.trainers[input.UserID] = profile
	return &profile, nil
}

func statusIn(status models.MatchStatus, statuses []models.MatchStatus) bool {
	return len(statuses) == 0 || slices.Contains(statuses, status)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func cloneMatchRequest(request models.MatchRequest) *models.MatchRequest {
	if request.Referral != nil {
		referral := *request.Referral
		request.Referral = &referral
	}
	return &request
}

func cloneAppointment(appointment models.Appointment) *models.Appointment {
	if appointment.Notes != nil {
		notes := *appointment.Notes
		appointment.Notes = &notes
	}
	return &appointment
}
