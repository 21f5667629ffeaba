package domain

import "time"

// Stream names
const (
	StreamGPSSamples   = "stream:gps:samples"
	StreamRegionEvents = "stream:gps:regions"
	StreamLiveLocation = "stream:location:live"
)

// Имена фоновых задач ОС
const (
	TaskLocationUpdates = "droszt-location-updates"
	TaskGeofencing      = "droszt-geofencing"
)

// Accuracy - требуемая точность позиционирования
type Accuracy string

const (
	AccuracyHigh     Accuracy = "high"
	AccuracyBalanced Accuracy = "balanced"
)

// WatchOptions - параметры подписки на позицию
type WatchOptions struct {
	Accuracy  Accuracy      `json:"accuracy"`
	Interval  time.Duration `json:"interval"`
	DistanceM float64       `json:"distance_m"`
}

// LocationSample - одна GPS точка от устройства
type LocationSample struct {
	UID       string    `json:"uid"`
	Device    string    `json:"device,omitempty"`
	Point     Point     `json:"point"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Mocked    bool      `json:"mocked"`
	Timestamp time.Time `json:"timestamp"`
}

// LiveLocation - документ driver_locations/{uid}
type LiveLocation struct {
	UID       string    `json:"uid" db:"uid"`
	Lat       float64   `json:"lat" db:"lat"`
	Lng       float64   `json:"lng" db:"lng"`
	Timestamp time.Time `json:"timestamp" db:"recorded_at"`
}

// RegionEventKind - вход или выход из нативного круга
type RegionEventKind string

const (
	RegionEnter RegionEventKind = "enter"
	RegionExit  RegionEventKind = "exit"
)

// RegionEvent - callback нативного геофенса
type RegionEvent struct {
	UID       string          `json:"uid"`
	Device    string          `json:"device,omitempty"`
	Region    string          `json:"region"`
	Kind      RegionEventKind `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
}
