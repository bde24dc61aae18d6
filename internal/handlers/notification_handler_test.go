package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/saeid-a/coachmatch/internal/models"
	"github.com/saeid-a/coachmatch/internal/services"
)

type stubNotificationService struct {
	list       *services.NotificationList
	markErr    error
	lastInput  services.NotificationListInput
	lastID     string
	lastReader string
}

func (s *stubNotificationService) List(_ context.Context, input services.NotificationListInput) (*services.NotificationList, error) {
	s.lastInput = input
	return s.list, nil
}

func (s *stubNotificationService) MarkRead(_ context.Context, notificationID, recipientID string) (*models.Notification, error) {
	s.lastID = notificationID
	s.lastReader = recipientID
	if s.markErr != nil {
		return nil, s.markErr
	}
	return &models.Notification{ID: notificationID, RecipientID: recipientID, Read: true}, nil
}

func TestListNotificationsPaginates(t *testing.T) {
	service := &stubNotificationService{list: &services.NotificationList{
		Items: []models.Notification{{ID: "n-3"}, {ID: "n-2"}},
		Total: 5,
	}}
	handler := NewNotificationHandler(service, nil)

	app := newTestApp("member-1", models.RoleMember)
	app.Get("/api/v1/notifications", handler.List)

	resp, body := doRequest(t, app, http.MethodGet, "/api/v1/notifications?page=2&limit=2&unread=true", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastInput.RecipientID != "member-1" || service.lastInput.Page != 2 ||
		service.lastInput.Limit != 2 || !service.lastInput.UnreadOnly {
		t.Fatalf("unexpected list input %+v", service.lastInput)
	}
	pagination, _ := body["pagination"].(map[string]any)
	if pagination["total_pages"] != float64(3) {
		t.Fatalf("expected 3 pages, got %v", pagination)
	}
}

func TestMarkNotificationRead(t *testing.T) {
	service := &stubNotificationService{}
	handler := NewNotificationHandler(service, nil)

	app := newTestApp("member-1", models.RoleMember)
	app.Post("/api/v1/notifications/:id/read", handler.MarkRead)

	resp, body := doRequest(t, app, http.MethodPost, "/api/v1/notifications/n-1/read", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	notification, _ := body["notification"].(map[string]any)
	if notification["read"] != true || service.lastReader != "member-1" {
		t.Fatalf("unexpected result %v", body)
	}

	service.markErr = services.ErrNotAuthorized
	resp, _ = doRequest(t, app, http.MethodPost, "/api/v1/notifications/n-1/read", "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestNotificationsRequireIdentity(t *testing.T) {
	handler := NewNotificationHandler(&stubNotificationService{}, nil)

	app := newTestApp("", "")
	app.Get("/api/v1/notifications", handler.List)

	resp, _ := doRequest(t, app, http.MethodGet, "/api/v1/notifications", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestWebSocketUpgradeRequiresUpgradeHeader(t *testing.T) {
	handler := NewNotificationHandler(&stubNotificationService{}, nil)

	app := newTestApp("member-1", models.RoleMember)
	app.Get("/api/v1/ws", handler.WebSocketUpgrade)

	resp, _ := doRequest(t, app, http.MethodGet, "/api/v1/ws", "")
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Fatalf("expected 426, got %d", resp.StatusCode)
	}
}
