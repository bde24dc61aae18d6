package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/coachmatch/internal/models"
	"github.com/saeid-a/coachmatch/internal/services"
)

type AppointmentHandler struct {
	service  appointmentApplicationService
	location *time.Location
}

type appointmentApplicationService interface {
	Book(ctx context.Context, input services.BookInput) (*models.AppointmentResult, error)
	Cancel(ctx context.Context, appointmentID, actorID string) (*models.AppointmentResult, error)
	GetForActor(ctx context.Context, appointmentID, actorID string) (*models.AppointmentView, error)
	ListForActor(ctx context.Context, actorID, role, timeframe string) ([]models.AppointmentView, error)
	Progress(ctx context.Context, memberID, trainerID string) (map[string]models.CourseProgress, error)
	CheckAvailability(ctx context.Context, trainerID string, date time.Time, start, end models.TimeOfDay) (bool, error)
}

// NewAppointmentHandler parses calendar days in location, which must match
// the wall clock the scheduler compares against.
func NewAppointmentHandler(service appointmentApplicationService, location *time.Location) *AppointmentHandler {
	if location == nil {
		location = time.Local
	}
	return &AppointmentHandler{service: service, location: location}
}

type bookAppointmentRequest struct {
	TrainerID  string  `json:"trainer_id" validate:"max=128"`
	MemberID   string  `json:"member_id" validate:"max=128"`
	CourseType string  `json:"course_type" validate:"required,max=100"`
	Date       string  `json:"date" validate:"required,datetime=2006-01-02"`
	TimeStart  string  `json:"time_start" validate:"required,timeofday"`
	TimeEnd    string  `json:"time_end" validate:"required,timeofday"`
	Notes      *string `json:"notes" validate:"omitempty,max=2000"`
}

// Book schedules a session. Members book with a trainer_id, trainers with a
// member_id; the caller fills the other side.
func (h *AppointmentHandler) Book(c *fiber.Ctx) error {
	actor, ok := actorFromLocals(c)
	if !ok {
		return unauthorized(c)
	}

	var req bookAppointmentRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	input := services.BookInput{CourseType: req.CourseType, Notes: req.Notes}
	switch actor.Role {
	case models.RoleMember:
		input.MemberID, input.TrainerID = actor.ID, req.TrainerID
	case models.RoleTrainer:
		input.MemberID, input.TrainerID = req.MemberID, actor.ID
	default:
		return forbidden(c)
	}
	if input.MemberID == "" || input.TrainerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "trainer_id or member_id is required"})
	}
	if input.Notes != nil && strings.TrimSpace(*input.Notes) == "" {
		input.Notes = nil
	}

	date, start, end, err := h.parseSlot(req.Date, req.TimeStart, req.TimeEnd)
	if err != nil {
		return mapServiceError(c, err)
	}
	input.Date, input.TimeStart, input.TimeEnd = date, start, end

	result, err := h.service.Book(c.Context(), input)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"appointment": result})
}

func (h *AppointmentHandler) List(c *fiber.Ctx) error {
	actor, ok := actorFromLocals(c)
	if !ok {
		return unauthorized(c)
	}

	timeframe := strings.TrimSpace(c.Query("timeframe"))
	if timeframe != "" && timeframe != "upcoming" && timeframe != "past" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "timeframe must be upcoming or past"})
	}

	appointments, err := h.service.ListForActor(c.Context(), actor.ID, actor.Role, timeframe)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{"appointments": appointments})
}

func (h *AppointmentHandler) Get(c *fiber.Ctx) error {
	actor, ok := actorFromLocals(c)
	if !ok {
		return unauthorized(c)
	}

	appointment, err := h.service.GetForActor(c.Context(), c.Params("id"), actor.ID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{"appointment": appointment})
}

func (h *AppointmentHandler) Cancel(c *fiber.Ctx) error {
	actor, ok := actorFromLocals(c)
	if !ok {
		return unauthorized(c)
	}

	result, err := h.service.Cancel(c.Context(), c.Params("id"), actor.ID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{"appointment": result})
}

// Progress reports course progress between the caller and the counterpart
// named in the query: trainer_id for members, member_id for trainers.
func (h *AppointmentHandler) Progress(c *fiber.Ctx) error {
	actor, ok := actorFromLocals(c)
	if !ok {
		return unauthorized(c)
	}

	var memberID, trainerID string
	switch actor.Role {
	case models.RoleMember:
		memberID, trainerID = actor.ID, strings.TrimSpace(c.Query("trainer_id"))
	case models.RoleTrainer:
		memberID, trainerID = strings.TrimSpace(c.Query("member_id")), actor.ID
	default:
		return forbidden(c)
	}
	if memberID == "" || trainerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "trainer_id or member_id is required"})
	}

	progress, err := h.service.Progress(c.Context(), memberID, trainerID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{"progress": progress})
}

func (h *AppointmentHandler) Availability(c *fiber.Ctx) error {
	trainerID := strings.TrimSpace(c.Query("trainer_id"))
	if trainerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "trainer_id is required"})
	}

	date, start, end, err := h.parseSlot(c.Query("date"), c.Query("time_start"), c.Query("time_end"))
	if err != nil {
		return mapServiceError(c, err)
	}

	available, err := h.service.CheckAvailability(c.Context(), trainerID, date, start, end)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{"available": available})
}

func (h *AppointmentHandler) parseSlot(dateValue, startValue, endValue string) (time.Time, models.TimeOfDay, models.TimeOfDay, error) {
	date, err := time.ParseInLocation(models.DateLayout, strings.TrimSpace(dateValue), h.location)
	if err != nil {
		return time.Time{}, 0, 0, services.ErrInvalidInput
	}
	start, err := models.ParseTimeOfDay(startValue)
	if err != nil {
		return time.Time{}, 0, 0, err
	}
	end, err := models.ParseTimeOfDay(endValue)
	if err != nil {
		return time.Time{}, 0, 0, err
	}
	return date, start, end, nil
}
