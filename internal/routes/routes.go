package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/saeid-a/coachmatch/internal/config"
	"github.com/saeid-a/coachmatch/internal/handlers"
	"github.com/saeid-a/coachmatch/internal/middleware"
	"github.com/saeid-a/coachmatch/internal/models"
)

// Handlers bundles everything the API surface is built from. main wires the
// services behind them.
type Handlers struct {
	MatchRequests *handlers.MatchRequestHandler
	Appointments  *handlers.AppointmentHandler
	Notifications *handlers.NotificationHandler
	Trainers      *handlers.TrainerHandler
	Limiter       *middleware.RateLimiter
}

func RegisterRoutes(app *fiber.App, cfg *config.Config, h Handlers) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if cfg.MetricsEnabled() {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := app.Group("/api/v1", middleware.AuthRequired(cfg.JWTSecret))
	if h.Limiter != nil {
		api.Use(middleware.RateLimit(h.Limiter))
	}

	memberOnly := middleware.RequireRole(models.RoleMember)
	trainerOnly := middleware.RequireRole(models.RoleTrainer)

	trainers := api.Group("/trainers")
	trainers.Get("", h.Trainers.ListTrainers)
	trainers.Get("/recommended", memberOnly, h.Trainers.RecommendedTrainers)
	trainers.Put("/profile", trainerOnly, h.Trainers.UpsertProfile)
	trainers.Get("/:id", h.Trainers.GetTrainer)

	requests := api.Group("/match-requests")
	requests.Post("", memberOnly, h.MatchRequests.Submit)
	requests.Get("", h.MatchRequests.List)
	requests.Post("/:id/accept", trainerOnly, h.MatchRequests.Accept)
	requests.Post("/:id/reject", trainerOnly, h.MatchRequests.Reject)
	requests.Get("/:id/referrals", trainerOnly, h.MatchRequests.Referrals)

	appointments := api.Group("/appointments")
	appointments.Post("", h.Appointments.Book)
	appointments.Get("", h.Appointments.List)
	appointments.Get("/availability", h.Appointments.Availability)
	appointments.Get("/:id", h.Appointments.Get)
	appointments.Post("/:id/cancel", h.Appointments.Cancel)

	api.Get("/progress", h.Appointments.Progress)

	notifications := api.Group("/notifications")
	notifications.Get("", h.Notifications.List)
	notifications.Post("/:id/read", h.Notifications.MarkRead)

	api.Get("/ws", h.Notifications.WebSocketUpgrade, websocket.New(h.Notifications.HandleWebSocket))
}
