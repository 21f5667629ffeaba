package dto

import (
	"time"

	"github.com/droszt-service/internal/domain"
)

// CheckOutRequest - снять водителя с очереди; пустой uid - самого себя
type CheckOutRequest struct {
	UID string `json:"uid,omitempty" validate:"omitempty,max=128"`
}

// CheckoutAllRequest - снять себя со всех очередей, кроме перечисленных
type CheckoutAllRequest struct {
	Exclude []string `json:"exclude,omitempty" validate:"omitempty,max=16"`
}

// ReorderRequest - новый порядок очереди списком uid
type ReorderRequest struct {
	UIDs []string `json:"uids" validate:"required,min=1,dive,required"`
}

// ProfileUpdateRequest - изменённый профиль для перезаписи во всех очередях
type ProfileUpdateRequest struct {
	Username     string `json:"username" validate:"required,max=64"`
	LicensePlate string `json:"licensePlate" validate:"required,max=16,plate"`
	UserType     string `json:"userType" validate:"required,usertype"`
}

// NoteRequest - текст заметки
type NoteRequest struct {
	Text string `json:"text" validate:"required,max=500"`
}

// MoveNoteRequest - перенос заметки
type MoveNoteRequest struct {
	From int `json:"from" validate:"min=0"`
	To   int `json:"to" validate:"min=0"`
}

// LocationSampleRequest - одна точка устройства
type LocationSampleRequest struct {
	Lat       float64    `json:"lat" validate:"min=-90,max=90"`
	Lng       float64    `json:"lng" validate:"min=-180,max=180"`
	Accuracy  float64    `json:"accuracy,omitempty" validate:"omitempty,min=0"`
	Mocked    bool       `json:"mocked"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Sample собирает доменную точку; время по умолчанию - now
func (r LocationSampleRequest) Sample(uid string, now time.Time) domain.LocationSample {
	at := now
	if r.Timestamp != nil {
		at = *r.Timestamp
	}
	return domain.LocationSample{
		UID:       uid,
		Point:     domain.Point{Lat: r.Lat, Lng: r.Lng},
		Accuracy:  r.Accuracy,
		Mocked:    r.Mocked,
		Timestamp: at,
	}
}

// BatchSamplesRequest - пачка точек фоновой задачи
type BatchSamplesRequest struct {
	Samples []LocationSampleRequest `json:"samples" validate:"required,min=1,max=100,dive"`
	// Foreground - точки идут из foreground подписки, а не из фоновой задачи
	Foreground bool `json:"foreground"`
}

// RegionEventRequest - callback нативного геофенса
type RegionEventRequest struct {
	Region string `json:"region" validate:"required"`
	Kind   string `json:"kind" validate:"required,oneof=enter exit"`
}

// DeviceStateRequest - разрешения и видимость приложения
type DeviceStateRequest struct {
	Foreground           *bool `json:"foreground,omitempty"`
	ForegroundPermission *bool `json:"foregroundPermission,omitempty"`
	BackgroundPermission *bool `json:"backgroundPermission,omitempty"`
}

// HeartbeatResponseRequest - ответ на «Dolgozol még?»
type HeartbeatResponseRequest struct {
	Answer *bool `json:"answer" validate:"required"`
}
