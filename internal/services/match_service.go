package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
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

type MatchService struct {
	requests    matchRequestStore
	trainers    trainerDirectory
	dispatcher  eventDispatcher
	matchmaking *MatchmakingService
	locks       *keylock.Locker
	timeout     time.Duration
	now         func() time.Time
	newID       func() string
}

func NewMatchService(
	requests matchRequestStore,
	trainers trainerDirectory,
	dispatcher eventDispatcher,
	locks *keylock.Locker,
	timeout time.Duration,
) *MatchService {
	if locks == nil {
		locks = keylock.New()
	}
	return &MatchService{
		requests:    requests,
		trainers:    trainers,
		dispatcher:  dispatcher,
		matchmaking: NewMatchmakingService(trainers),
		locks:       locks,
		timeout:     timeout,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Submit opens a pending request from member to trainer. A member may hold
// only one pending or accepted request; the check and the insert run under a
// per-member lock and the insert itself is conditional.
func (s *MatchService) Submit(
	ctx context.Context,
	memberID string,
	trainerID string,
	trainingGoal string,
) (*models.MatchRequestResult, error) {
	ctx, span := tracer.Start(ctx, "MatchService.Submit", trace.WithAttributes(
		attribute.String("member.id", memberID),
		attribute.String("trainer.id", trainerID),
	))
	defer span.End()

	memberID = strings.TrimSpace(memberID)
	trainerID = strings.TrimSpace(trainerID)
	goal := strings.TrimSpace(trainingGoal)
	if memberID == "" || trainerID == "" || goal == "" {
		return nil, ErrInvalidInput
	}
	if memberID == trainerID {
		return nil, ErrInvalidInput
	}

	if _, err := s.getTrainer(ctx, trainerID); err != nil {
		return nil, err
	}

	lockCtx, cancelLock := repositoryContext(ctx, s.timeout)
	unlock, err := s.locks.Lock(lockCtx, "member:"+memberID)
	cancelLock()
	if err != nil {
		return nil, fmt.Errorf("%w: waiting for member lock: %v", ErrRepositoryUnavailable, err)
	}
	defer unlock()

	callCtx, cancel := repositoryContext(ctx, s.timeout)
	active, err := s.requests.ListByMember(callCtx, memberID, models.ActiveMatchStatuses)
	cancel()
	if err != nil {
		return nil, storeError("match_requests.list_by_member", err)
	}
	if len(active) > 0 {
		metrics.RecordMatchRequest("duplicate")
		return nil, ErrDuplicateActiveRequest
	}

	now := s.now()
	callCtx, cancel = repositoryContext(ctx, s.timeout)
	defer cancel()
	created, err := s.requests.CreateIfNoActive(callCtx, models.MatchRequest{
		ID:           s.newID(),
		MemberID:     memberID,
		TrainerID:    trainerID,
		TrainingGoal: goal,
		Status:       models.MatchStatusPending,
		RequestedAt:  now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			metrics.RecordMatchRequest("duplicate")
			return nil, ErrDuplicateActiveRequest
		}
		return nil, storeError("match_requests.create", err)
	}

	metrics.RecordMatchRequest("submitted")
	return &models.MatchRequestResult{MatchRequest: *created}, nil
}

func (s *MatchService) Accept(
	ctx context.Context,
	requestID string,
	actingTrainerID string,
) (*models.MatchRequestResult, error) {
	ctx, span := tracer.Start(ctx, "MatchService.Accept", trace.WithAttributes(
		attribute.String("match_request.id", requestID),
	))
	defer span.End()

	request, err := s.loadForTrainer(ctx, requestID, actingTrainerID)
	if err != nil {
		return nil, err
	}

	updated, err := s.transition(ctx, request, models.MatchStatusAccepted, nil)
	if err != nil {
		return nil, err
	}
	metrics.RecordMatchRequest("accepted")

	warnings := s.dispatch(ctx, Event{
		Kind:         EventRequestAccepted,
		ActorID:      actingTrainerID,
		MatchRequest: updated,
		TrainerName:  s.trainerName(ctx, actingTrainerID),
		OccurredAt:   s.now(),
	})
	return &models.MatchRequestResult{MatchRequest: *updated, Warnings: warnings}, nil
}

// RejectWithReferral declines the request and points the member to another
// trainer. The member has to submit a new request to follow the referral.
func (s *MatchService) RejectWithReferral(
	ctx context.Context,
	requestID string,
	actingTrainerID string,
	alternativeTrainerID string,
) (*models.MatchRequestResult, error) {
	ctx, span := tracer.Start(ctx, "MatchService.RejectWithReferral", trace.WithAttributes(
		attribute.String("match_request.id", requestID),
		attribute.String("referral.trainer_id", alternativeTrainerID),
	))
	defer span.End()

	request, err := s.loadForTrainer(ctx, requestID, actingTrainerID)
	if err != nil {
		return nil, err
	}

	alternativeTrainerID = strings.TrimSpace(alternativeTrainerID)
	if alternativeTrainerID == "" || alternativeTrainerID == actingTrainerID {
		return nil, ErrInvalidReferral
	}
	alternative, err := s.getTrainer(ctx, alternativeTrainerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidReferral
		}
		return nil, err
	}

	updated, err := s.transition(ctx, request, models.MatchStatusRejected, &models.Referral{
		AlternativeTrainerID:   alternative.UserID,
		AlternativeTrainerName: alternative.DisplayName(),
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordMatchRequest("rejected")

	warnings := s.dispatch(ctx, Event{
		Kind:         EventRequestRejected,
		ActorID:      actingTrainerID,
		MatchRequest: updated,
		TrainerName:  s.trainerName(ctx, actingTrainerID),
		OccurredAt:   s.now(),
	})
	return &models.MatchRequestResult{MatchRequest: *updated, Warnings: warnings}, nil
}

// ListActiveForTrainer yields the trainer's pending requests, oldest first.
// Nothing is read until the sequence is ranged over, and every range runs a
// fresh query. A failed query yields a single error.
func (s *MatchService) ListActiveForTrainer(ctx context.Context, trainerID string) iter.Seq2[models.MatchRequest, error] {
	return func(yield func(models.MatchRequest, error) bool) {
		callCtx, cancel := repositoryContext(ctx, s.timeout)
		requests, err := s.requests.ListByTrainer(callCtx, trainerID, []models.MatchStatus{models.MatchStatusPending})
		cancel()
		if err != nil {
			yield(models.MatchRequest{}, storeError("match_requests.list_by_trainer", err))
			return
		}

		sortByRequestedAt(requests)
		for _, request := range requests {
			if !yield(request, nil) {
				return
			}
		}
	}
}

// ListForMember returns the member's request history, newest first.
func (s *MatchService) ListForMember(ctx context.Context, memberID string) ([]models.MatchRequest, error) {
	callCtx, cancel := repositoryContext(ctx, s.timeout)
	defer cancel()

	requests, err := s.requests.ListByMember(callCtx, memberID, nil)
	if err != nil {
		return nil, storeError("match_requests.list_by_member", err)
	}
	return requests, nil
}

// RecommendReferrals ranks the trainers the acting trainer could refer the
// member to, based on the request's training goal.
func (s *MatchService) RecommendReferrals(
	ctx context.Context,
	requestID string,
	actingTrainerID string,
	limit int,
) ([]models.TrainerMatch, error) {
	request, err := s.loadForTrainer(ctx, requestID, actingTrainerID)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := repositoryContext(ctx, s.timeout)
	defer cancel()
	matches, err := s.matchmaking.RankTrainers(callCtx, request.TrainingGoal, []string{actingTrainerID, request.MemberID}, limit)
	if err != nil {
		return nil, storeError("trainers.list", err)
	}
	return matches, nil
}

// loadForTrainer fetches a request the acting trainer may decide on.
func (s *MatchService) loadForTrainer(ctx context.Context, requestID, actingTrainerID string) (*models.MatchRequest, error) {
	callCtx, cancel := repositoryContext(ctx, s.timeout)
	defer cancel()

	request, err := s.requests.GetByID(callCtx, requestID)
	if err != nil {
		return nil, storeError("match_requests.get", err)
	}
	if request.TrainerID != actingTrainerID {
		return nil, ErrNotAuthorized
	}
	if !request.IsPending() {
		return nil, ErrInvalidState
	}
	return request, nil
}

func (s *MatchService) transition(
	ctx context.Context,
	request *models.MatchRequest,
	next models.MatchStatus,
	referral *models.Referral,
) (*models.MatchRequest, error) {
	callCtx, cancel := repositoryContext(ctx, s.timeout)
	defer cancel()

	updated, err := s.requests.UpdateStatusIfCurrent(callCtx, request.ID, request.Status, next, referral)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrInvalidState
		}
		return nil, storeError("match_requests.update_status", err)
	}
	return updated, nil
}

func (s *MatchService) getTrainer(ctx context.Context, trainerID string) (*models.TrainerProfile, error) {
	callCtx, cancel := repositoryContext(ctx, s.timeout)
	defer cancel()

	trainer, err := s.trainers.GetByUserID(callCtx, trainerID)
	if err != nil {
		return nil, storeError("trainers.get", err)
	}
	return trainer, nil
}

// trainerName is only used for notification text, so lookup failures fall
// back to the id.
func (s *MatchService) trainerName(ctx context.Context, trainerID string) string {
	trainer, err := s.getTrainer(ctx, trainerID)
	if err != nil {
		return ""
	}
	return trainer.DisplayName()
}

func (s *MatchService) dispatch(ctx context.Context, event Event) []string {
	if s.dispatcher == nil {
		return nil
	}
	return s.dispatcher.Dispatch(ctx, event)
}

func sortByRequestedAt(requests []models.MatchRequest) {
	slices.SortStableFunc(requests, func(a, b models.MatchRequest) int {
		return a.RequestedAt.Compare(b.RequestedAt)
	})
}
