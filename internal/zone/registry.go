// Package zone - справочник стоянок и очередей, загружаемый из YAML.
package zone

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/pkg/geometry"
)

//go:embed zones.yaml
var defaultTable []byte

type zoneEntry struct {
	Name            string      `mapstructure:"name"`
	Polygon         [][]float64 `mapstructure:"polygon"`
	FallbackRadiusM float64     `mapstructure:"fallback_radius_m"`
}

type queueEntry struct {
	Name     string `mapstructure:"name"`
	Document string `mapstructure:"document"`
	Field    string `mapstructure:"field"`
	Geofence string `mapstructure:"geofence"`
	Family   string `mapstructure:"family"`
}

type table struct {
	Zones  []zoneEntry  `mapstructure:"zones"`
	Queues []queueEntry `mapstructure:"queues"`
}

// Registry - неизменяемый после загрузки справочник
type Registry struct {
	zones      map[string]domain.Zone
	zoneOrder  []string
	queues     map[string]domain.QueueRef
	queueOrder []string
}

// Default - встроенная таблица стоянок
func Default() (*Registry, error) {
	return Parse(defaultTable)
}

// Load читает таблицу из файла; пустой путь - встроенная таблица
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read zones file: %w", err)
	}
	return Parse(data)
}

// Parse разбирает YAML таблицу стоянок и очередей
func Parse(data []byte) (*Registry, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to parse zones table: %w", err)
	}

	var t table
	if err := v.Unmarshal(&t); err != nil {
		return nil, fmt.Errorf("failed to decode zones table: %w", err)
	}

	r := &Registry{
		zones:  make(map[string]domain.Zone, len(t.Zones)),
		queues: make(map[string]domain.QueueRef, len(t.Queues)),
	}

	for _, ze := range t.Zones {
		if _, dup := r.zones[ze.Name]; dup {
			return nil, fmt.Errorf("duplicate zone %q", ze.Name)
		}
		polygon := make([]domain.Point, 0, len(ze.Polygon))
		for i, v := range ze.Polygon {
			if len(v) != 2 {
				return nil, fmt.Errorf("zone %q vertex %d: expected [lat, lng]", ze.Name, i)
			}
			polygon = append(polygon, domain.Point{Lat: v[0], Lng: v[1]})
		}
		if len(polygon) < 3 {
			return nil, fmt.Errorf("zone %q: polygon needs at least 3 vertices", ze.Name)
		}

		z := domain.Zone{Name: ze.Name, Polygon: polygon}
		if ze.FallbackRadiusM > 0 {
			z.Fallback = &domain.CircularRegion{
				Identifier:   ze.Name,
				Center:       geometry.Centroid(polygon),
				RadiusMeters: ze.FallbackRadiusM,
			}
		}
		r.zones[z.Name] = z
		r.zoneOrder = append(r.zoneOrder, z.Name)
	}

	for _, qe := range t.Queues {
		if _, dup := r.queues[qe.Name]; dup {
			return nil, fmt.Errorf("duplicate queue %q", qe.Name)
		}
		ref := domain.QueueRef{
			Name:     qe.Name,
			Document: qe.Document,
			Field:    domain.QueueField(qe.Field),
			Geofence: qe.Geofence,
			Family:   domain.QueueFamily(qe.Family),
		}
		if ref.Document == "" {
			ref.Document = ref.Name
		}
		if ref.Field == "" {
			ref.Field = domain.FieldMembers
		}
		if ref.Family == "" {
			ref.Family = domain.FamilyCity
		}
		if ref.Geofence != "" {
			if _, ok := r.zones[ref.Geofence]; !ok {
				return nil, fmt.Errorf("queue %q references unknown zone %q", ref.Name, ref.Geofence)
			}
		}
		r.queues[ref.Name] = ref
		r.queueOrder = append(r.queueOrder, ref.Name)
	}

	return r, nil
}

// Zone - стоянка с полигоном по точному имени (с учётом регистра)
func (r *Registry) Zone(name string) (domain.Zone, bool) {
	z, ok := r.zones[name]
	return z, ok
}

// Zones - все полигоны в порядке объявления
func (r *Registry) Zones() []domain.Zone {
	out := make([]domain.Zone, 0, len(r.zoneOrder))
	for _, name := range r.zoneOrder {
		out = append(out, r.zones[name])
	}
	return out
}

// Queue - описание очереди по имени
func (r *Registry) Queue(name string) (domain.QueueRef, bool) {
	q, ok := r.queues[name]
	return q, ok
}

// Queues - все очереди в порядке обхода
func (r *Registry) Queues() []domain.QueueRef {
	out := make([]domain.QueueRef, 0, len(r.queueOrder))
	for _, name := range r.queueOrder {
		out = append(out, r.queues[name])
	}
	return out
}

// QueuesForGeofence - очереди, ограниченные данным полигоном
func (r *Registry) QueuesForGeofence(zone string) []domain.QueueRef {
	var out []domain.QueueRef
	for _, name := range r.queueOrder {
		if q := r.queues[name]; q.Geofence == zone {
			out = append(out, q)
		}
	}
	return out
}

// Documents - уникальные документы хранилища
func (r *Registry) Documents() []string {
	seen := make(map[string]bool)
	var out []string
	for _, name := range r.queueOrder {
		doc := r.queues[name].Document
		if !seen[doc] {
			seen[doc] = true
			out = append(out, doc)
		}
	}
	return out
}

// Regions - запасные круги для нативного геофенса
func (r *Registry) Regions() []domain.CircularRegion {
	var out []domain.CircularRegion
	for _, name := range r.zoneOrder {
		if z := r.zones[name]; z.Fallback != nil {
			out = append(out, *z.Fallback)
		}
	}
	return out
}
