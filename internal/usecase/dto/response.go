package dto

import "github.com/droszt-service/internal/domain"

// MemberView - участник очереди с готовой строкой отображения
type MemberView struct {
	UID          string          `json:"uid"`
	Username     string          `json:"username"`
	LicensePlate string          `json:"licensePlate"`
	UserType     domain.UserType `json:"userType"`
	CheckInTime  string          `json:"checkInTime,omitempty"`
	Markers      domain.Markers  `json:"markers"`
	DisplayName  string          `json:"displayName"`
	Position     int             `json:"position"`
}

// QueueResponse - состояние очереди
type QueueResponse struct {
	Queue   string       `json:"queue"`
	Members []MemberView `json:"members"`
}

// NewQueueResponse строит ответ из снимка
func NewQueueResponse(s *domain.QueueSnapshot) QueueResponse {
	resp := QueueResponse{Queue: s.Queue, Members: make([]MemberView, 0, len(s.Members))}
	for i, m := range s.Members {
		resp.Members = append(resp.Members, MemberView{
			UID:          m.UID,
			Username:     m.Username,
			LicensePlate: m.LicensePlate,
			UserType:     m.UserType,
			CheckInTime:  m.CheckInTime,
			Markers:      m.Markers,
			DisplayName:  m.DisplayName(),
			Position:     i + 1,
		})
	}
	return resp
}

// SessionResponse - результат входа на устройстве
type SessionResponse struct {
	UID          string `json:"uid"`
	Admin        bool   `json:"admin"`
	DeviceID     string `json:"deviceId"`
	SessionToken int64  `json:"sessionToken"`
}

// GeofenceStatusResponse - статус каждой зоны
type GeofenceStatusResponse struct {
	Running bool            `json:"running"`
	Zones   map[string]bool `json:"zones"`
}

// TrackingResponse - результат запуска или остановки фоновой задачи
type TrackingResponse struct {
	Active bool `json:"active"`
}

// NotesResponse - заметки Reptér по порядку
type NotesResponse struct {
	Notes []string `json:"notes"`
}
