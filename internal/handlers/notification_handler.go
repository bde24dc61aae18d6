package handlers

import (
	"context"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/coachmatch/internal/models"
	"github.com/saeid-a/coachmatch/internal/services"
	notifyws "github.com/saeid-a/coachmatch/internal/websocket"
)

type NotificationHandler struct {
	service notificationApplicationService
	hub     *notifyws.Hub
}

type notificationApplicationService interface {
	List(ctx context.Context, input services.NotificationListInput) (*services.NotificationList, error)
	MarkRead(ctx context.Context, notificationID, recipientID string) (*models.Notification, error)
}

func NewNotificationHandler(service notificationApplicationService, hub *notifyws.Hub) *NotificationHandler {
	return &NotificationHandler{service: service, hub: hub}
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	actor, ok := actorFromLocals(c)
	if !ok {
		return unauthorized(c)
	}

	page := parsePositiveInt(c.Query("page"), 1)
	limit := parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	list, err := h.service.List(c.Context(), services.NotificationListInput{
		RecipientID: actor.ID,
		UnreadOnly:  c.QueryBool("unread", false),
		Page:        page,
		Limit:       limit,
	})
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"notifications": list.Items,
		"pagination":    buildPaginationMeta(page, limit, list.Total),
	})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	actor, ok := actorFromLocals(c)
	if !ok {
		return unauthorized(c)
	}

	notification, err := h.service.MarkRead(c.Context(), c.Params("id"), actor.ID)
	if err != nil {
		return mapServiceError(c, err)
	}

	return c.JSON(fiber.Map{"notification": notification})
}

// WebSocketUpgrade must run after AuthRequired, which also accepts the token
// as a query parameter for browsers.
func (h *NotificationHandler) WebSocketUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}
	return c.Next()
}

func (h *NotificationHandler) HandleWebSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(string)
	client := notifyws.NewClient(h.hub, conn, userID)

	h.hub.Register(client)
	go client.WritePump()
	client.ReadPump(h.service)
}
