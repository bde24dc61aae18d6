package handlers

import (
	"context"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/coachmatch/internal/models"
	"github.com/saeid-a/coachmatch/internal/repository"
)

type trainerDirectoryStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.TrainerProfile, error)
	ListAll(ctx context.Context) ([]models.TrainerProfile, error)
	Upsert(ctx context.Context, input repository.UpsertTrainerInput) (*models.TrainerProfile, error)
}

type trainerRanker interface {
	RankTrainers(ctx context.Context, trainingGoal string, exclude []string, limit int) ([]models.TrainerMatch, error)
}

// TrainerHandler serves the trainer directory that matching and referrals
// read from.
type TrainerHandler struct {
	trainers trainerDirectoryStore
	ranker   trainerRanker
}

func NewTrainerHandler(trainers trainerDirectoryStore, ranker trainerRanker) *TrainerHandler {
	return &TrainerHandler{trainers: trainers, ranker: ranker}
}

type trainerProfileRequest struct {
	FullName        string   `json:"full_name" validate:"required,max=200"`
	Specializations []string `json:"specializations" validate:"required,min=1,dive,required,max=100"`
	Certifications  []string `json:"certifications" validate:"omitempty,dive,required,max=200"`
	ExperienceYears int      `json:"experience_years" validate:"gte=0,lte=80"`
	Rating          *float64 `json:"rating" validate:"omitempty,gte=0,lte=5"`
}

func (h *TrainerHandler) ListTrainers(c *fiber.Ctx) error {
	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	trainers, err := h.trainers.ListAll(c.Context())
	if err != nil {
		return mapServiceError(c, err)
	}

	if specialization := strings.ToLower(strings.TrimSpace(c.Query("specialization"))); specialization != "" {
		trainers = slices.DeleteFunc(trainers, func(trainer models.TrainerProfile) bool {
			return !slices.ContainsFunc(trainer.Specializations, func(value string) bool {
				return strings.ToLower(strings.TrimSpace(value)) == specialization
			})
		})
	}

	total := len(trainers)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)

	return c.JSON(fiber.Map{
		"trainers":   trainers[start:end],
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *TrainerHandler) GetTrainer(c *fiber.Ctx) error {
	trainer, err := h.trainers.GetByUserID(c.Context(), c.Params("id"))
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(fiber.Map{"trainer": trainer})
}

// RecommendedTrainers ranks trainers against the goal query parameter.
func (h *TrainerHandler) RecommendedTrainers(c *fiber.Ctx) error {
	goal := strings.TrimSpace(c.Query("goal"))
	if goal == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "goal is required"})
	}

	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	trainers, err := h.ranker.RankTrainers(c.Context(), goal, nil, limit)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{"trainers": trainers})
}

// UpsertProfile lets a trainer publish or update their own directory entry.
func (h *TrainerHandler) UpsertProfile(c *fiber.Ctx) error {
	actor, ok := actorFromLocals(c)
	if !ok {
		return unauthorized(c)
	}
	if actor.Role != models.RoleTrainer {
		return forbidden(c)
	}

	var req trainerProfileRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	profile, err := h.trainers.Upsert(c.Context(), repository.UpsertTrainerInput{
		UserID:          actor.ID,
		FullName:        strings.TrimSpace(req.FullName),
		Specializations: trimAll(req.Specializations),
		Certifications:  trimAll(req.Certifications),
		ExperienceYears: req.ExperienceYears,
		Rating:          req.Rating,
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{"trainer": profile})
}

func trimAll(values []string) []string {
	trimmed := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			trimmed = append(trimmed, value)
		}
	}
	return trimmed
}
