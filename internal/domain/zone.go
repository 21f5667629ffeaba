package domain

// Имена очередей (документов locations/{name})
const (
	QueueAkademia = "Akadémia"
	QueueBelvaros = "Belváros"
	QueueBudai    = "Budai"
	QueueConti    = "Conti"
	QueueCrowne   = "Crowne"
	QueueKozmo    = "Kozmo"
	QueueRepter   = "Reptér"
	QueueEmirates = "Emirates"
	QueueVOsztaly = "V-Osztály"
	Queue213      = "213"
)

// CircularRegion - круг для нативного геофенса ОС
type CircularRegion struct {
	Identifier   string  `json:"identifier"`
	Center       Point   `json:"center"`
	RadiusMeters float64 `json:"radius_m"`
}

// Zone - именованная стоянка с полигоном
type Zone struct {
	Name     string          `json:"name"`
	Polygon  []Point         `json:"polygon"`
	Fallback *CircularRegion `json:"fallback,omitempty"`
}

// QueueFamily группирует очереди по правилам check-in
type QueueFamily string

const (
	FamilyCity    QueueFamily = "city"
	FamilyAirport QueueFamily = "airport"
	FamilyVirtual QueueFamily = "virtual"
)

// QueueRef описывает, где хранится очередь и каким полигоном она ограничена.
// Emirates живёт в документе Reptér в поле emiratesMembers.
type QueueRef struct {
	Name     string      `json:"name"`
	Document string      `json:"document"`
	Field    QueueField  `json:"field"`
	Geofence string      `json:"geofence,omitempty"`
	Family   QueueFamily `json:"family"`
}

// Constrained - требует ли очередь нахождения в полигоне
func (q QueueRef) Constrained() bool {
	return q.Geofence != ""
}
