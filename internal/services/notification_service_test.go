package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/saeid-a/coachmatch/internal/models"
	"github.com/saeid-a/coachmatch/internal/repository/memstore"
)

func seedNotifications(t *testing.T, store *memstore.Store, recipientID string, count int) {
	t.Helper()
	base := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range count {
		if _, err := store.Notifications().Create(context.Background(), models.Notification{
			ID:          fmt.Sprintf("%s-n%02d", recipientID, i),
			RecipientID: recipientID,
			Title:       "Session cancelled",
			Type:        models.NotificationTypeAppointment,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("seed notification: %v", err)
		}
	}
}

func TestNotificationListPaginates(t *testing.T) {
	store := memstore.New()
	seedNotifications(t, store, "member-1", 5)
	seedNotifications(t, store, "member-2", 2)
	service := NewNotificationService(store.Notifications(), time.Second)

	page, err := service.List(context.Background(), NotificationListInput{RecipientID: "member-1", Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 5 || len(page.Items) != 2 {
		t.Fatalf("expected 2 of 5, got %d of %d", len(page.Items), page.Total)
	}
	if page.Items[0].ID != "member-1-n02" {
		t.Fatalf("expected newest-first ordering, got %s", page.Items[0].ID)
	}

	if _, err := service.List(context.Background(), NotificationListInput{RecipientID: "member-1", Page: 0, Limit: 2}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNotificationMarkRead(t *testing.T) {
	store := memstore.New()
	seedNotifications(t, store, "member-1", 2)
	service := NewNotificationService(store.Notifications(), time.Second)
	ctx := context.Background()

	if _, err := service.MarkRead(ctx, "member-1-n00", "member-2"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if _, err := service.MarkRead(ctx, "missing", "member-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	read, err := service.MarkRead(ctx, "member-1-n00", "member-1")
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if !read.Read {
		t.Fatalf("expected notification to be read")
	}

	unread, err := service.List(ctx, NotificationListInput{RecipientID: "member-1", UnreadOnly: true, Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if unread.Total != 1 || unread.Items[0].ID != "member-1-n01" {
		t.Fatalf("expected only the unread notification, got %+v", unread.Items)
	}
}
