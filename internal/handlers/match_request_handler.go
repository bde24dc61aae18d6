package handlers

import (
	"context"
	"iter"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/coachmatch/internal/models"
)

type MatchRequestHandler struct {
	service matchApplicationService
}

type matchApplicationService interface {
	Submit(ctx context.Context, memberID, trainerID, trainingGoal string) (*models.MatchRequestResult, error)
	Accept(ctx context.Context, requestID, actingTrainerID string) (*models.MatchRequestResult, error)
	RejectWithReferral(ctx context.Context, requestID, actingTrainerID, alternativeTrainerID string) (*models.MatchRequestResult, error)
	ListActiveForTrainer(ctx context.Context, trainerID string) iter.Seq2[models.MatchRequest, error]
	ListForMember(ctx context.Context, memberID string) ([]models.MatchRequest, error)
	RecommendReferrals(ctx context.Context, requestID, actingTrainerID string, limit int) ([]models.TrainerMatch, error)
}

func NewMatchRequestHandler(service matchApplicationService) *MatchRequestHandler {
	return &MatchRequestHandler{service: service}
}

type submitMatchRequest struct {
	TrainerID    string `json:"trainer_id" validate:"required,max=128"`
	TrainingGoal string `json:"training_goal" validate:"required,max=2000"`
}

type rejectMatchRequest struct {
	AlternativeTrainerID string `json:"alternative_trainer_id" validate:"required,max=128"`
}

func (h *MatchRequestHandler) Submit(c *fiber.Ctx) error {
	actor, ok := actorFromLocals(c)
	if !ok {
		return unauthorized(c)
	}
	if actor.Role != models.RoleMember {
		return forbidden(c)
	}

	var req submitMatchRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	result, err := h.service.Submit(c.Context(), actor.ID, req.TrainerID, req.TrainingGoal)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"match_request": result})
}

// List returns the member's request history, or the trainer's pending
// requests oldest first.
func (h *MatchRequestHandler) List(c *fiber.Ctx) error {
	actor, ok := actorFromLocals(c)
	if !ok {
		return unauthorized(c)
	}

	switch actor.Role {
	case models.RoleMember:
		requests, err := h.service.ListForMember(c.Context(), actor.ID)
		if err != nil {
			return mapServiceError(c, err)
		}
		return c.JSON(fiber.Map{"match_requests": requests})
	case models.RoleTrainer:
		requests := make([]models.MatchRequest, 0)
		for request, err := range h.service.ListActiveForTrainer(c.Context(), actor.ID) {
			if err != nil {
				return mapServiceError(c, err)
			}
			requests = append(requests, request)
		}
		return c.JSON(fiber.Map{"match_requests": requests})
	default:
		return forbidden(c)
	}
}

func (h *MatchRequestHandler) Accept(c *fiber.Ctx) error {
	actor, ok := actorFromLocals(c)
	if !ok {
		return unauthorized(c)
	}
	if actor.Role != models.RoleTrainer {
		return forbidden(c)
	}

	result, err := h.service.Accept(c.Context(), c.Params("id"), actor.ID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{"match_request": result})
}

func (h *MatchRequestHandler) Reject(c *fiber.Ctx) error {
	actor, ok := actorFromLocals(c)
	if !ok {
		return unauthorized(c)
	}
	if actor.Role != models.RoleTrainer {
		return forbidden(c)
	}

	var req rejectMatchRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	result, err := h.service.RejectWithReferral(c.Context(), c.Params("id"), actor.ID, req.AlternativeTrainerID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{"match_request": result})
}

func (h *MatchRequestHandler) Referrals(c *fiber.Ctx) error {
	actor, ok := actorFromLocals(c)
	if !ok {
		return unauthorized(c)
	}
	if actor.Role != models.RoleTrainer {
		return forbidden(c)
	}

	limit := parsePositiveInt(c.Query("limit"), 5)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	trainers, err := h.service.RecommendReferrals(c.Context(), c.Params("id"), actor.ID, limit)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{"trainers": trainers})
}
