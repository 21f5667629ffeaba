package domain

import "time"

// NotificationKind - назначение уведомления
type NotificationKind string

const (
	NotifyZoneExit        NotificationKind = "zone_exit"
	NotifyHeartbeatPrompt NotificationKind = "heartbeat_prompt"
	NotifyHeartbeatLogout NotificationKind = "heartbeat_logout"
	NotifySessionConflict NotificationKind = "session_conflict"
)

// Notification - локальное уведомление на устройство водителя
type Notification struct {
	ID          string           `json:"id"`
	UID         string           `json:"uid"`
	Device      string           `json:"device,omitempty"`
	Kind        NotificationKind `json:"kind"`
	Title       string           `json:"title"`
	Body        string           `json:"body"`
	Interactive bool             `json:"interactive"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NotificationResponse - ответ водителя на интерактивное уведомление
type NotificationResponse struct {
	NotificationID string `json:"notification_id"`
	UID            string `json:"uid"`
	Device         string `json:"device,omitempty"`
	Answer         bool   `json:"answer"`
}
