package models

import "time"

type NotificationType string

const (
	NotificationTypeAppointment NotificationType = "appointment"
	NotificationTypeTraining    NotificationType = "training"
	NotificationTypeSystem      NotificationType = "system"
)

type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipient_id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Type        NotificationType `json:"type"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"created_at"`
}
