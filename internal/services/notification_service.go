package services

import (
	"context"
	"time"

	"github.com/saeid-a/coachmatch/internal/models"
	"github.com/saeid-a/coachmatch/internal/repository"
)

type NotificationListInput struct {
	RecipientID string
	UnreadOnly  bool
	Page        int
	Limit       int
}

type NotificationList struct {
	Items []models.Notification
	Total int
}

type NotificationService struct {
	notifications notificationStore
	timeout       time.Duration
}

func NewNotificationService(notifications notificationStore, timeout time.Duration) *NotificationService {
	return &NotificationService{notifications: notifications, timeout: timeout}
}

// List returns one page of the recipient's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, input NotificationListInput) (*NotificationList, error) {
	if input.RecipientID == "" || input.Page < 1 || input.Limit < 1 {
		return nil, ErrInvalidInput
	}

	callCtx, cancel := repositoryContext(ctx, s.timeout)
	defer cancel()

	items, total, err := s.notifications.ListByRecipient(callCtx, repository.NotificationListFilter{
		RecipientID: input.RecipientID,
		UnreadOnly:  input.UnreadOnly,
		Offset:      (input.Page - 1) * input.Limit,
		Limit:       input.Limit,
	})
	if err != nil {
		return nil, storeError("notifications.list", err)
	}
	if items == nil {
		items = []models.Notification{}
	}
	return &NotificationList{Items: items, Total: total}, nil
}

// MarkRead flags one notification as read. Only its recipient may do so.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID string, recipientID string) (*models.Notification, error) {
	callCtx, cancel := repositoryContext(ctx, s.timeout)
	defer cancel()

	notification, err := s.notifications.GetByID(callCtx, notificationID)
	if err != nil {
		return nil, storeError("notifications.get", err)
	}
	if notification.RecipientID != recipientID {
		return nil, ErrNotAuthorized
	}
	if notification.Read {
		return notification, nil
	}

	updated, err := s.notifications.MarkRead(callCtx, notificationID, recipientID)
	if err != nil {
		return nil, storeError("notifications.mark_read", err)
	}
	return updated, nil
}
