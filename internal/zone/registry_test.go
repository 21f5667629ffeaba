package zone_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/droszt-service/internal/domain"
	"github.com/droszt-service/internal/pkg/geometry"
	"github.com/droszt-service/internal/zone"
)

func TestDefault_Zones(t *testing.T) {
	r, err := zone.Default()
	require.NoError(t, err)

	names := make([]string, 0)
	for _, z := range r.Zones() {
		names = append(names, z.Name)
		assert.GreaterOrEqual(t, len(z.Polygon), 3, z.Name)
		require.NotNil(t, z.Fallback, z.Name)
		// центр запасного круга лежит внутри полигона
		assert.True(t, geometry.IsInside(z.Fallback.Center, z.Polygon), z.Name)
	}
	assert.Equal(t, []string{"Akadémia", "Belváros", "Budai", "Conti", "Crowne", "Kozmo", "Reptér"}, names)
	assert.Len(t, r.Regions(), 7)
}

func TestRegistry_ZoneLookup(t *testing.T) {
	r, err := zone.Default()
	require.NoError(t, err)

	z, ok := r.Zone("Kozmo")
	require.True(t, ok)
	assert.Equal(t, domain.Point{Lat: 47.493255, Lng: 19.067396}, z.Polygon[0])

	_, ok = r.Zone("kozmo")
	assert.False(t, ok, "lookup is case-sensitive")

	_, ok = r.Zone(domain.QueueVOsztaly)
	assert.False(t, ok, "V-Osztály has no geofence")
}

func TestRegistry_Queues(t *testing.T) {
	r, err := zone.Default()
	require.NoError(t, err)

	assert.Len(t, r.Queues(), 10)

	emirates, ok := r.Queue(domain.QueueEmirates)
	require.True(t, ok)
	assert.Equal(t, domain.QueueRepter, emirates.Document)
	assert.Equal(t, domain.FieldEmiratesMembers, emirates.Field)
	assert.Equal(t, domain.QueueRepter, emirates.Geofence)
	assert.Equal(t, domain.FamilyAirport, emirates.Family)

	v, ok := r.Queue(domain.QueueVOsztaly)
	require.True(t, ok)
	assert.False(t, v.Constrained())
	assert.Equal(t, domain.FieldMembers, v.Field)

	q213, ok := r.Queue(domain.Queue213)
	require.True(t, ok)
	assert.Equal(t, domain.FamilyVirtual, q213.Family)

	airport := r.QueuesForGeofence(domain.QueueRepter)
	require.Len(t, airport, 2)
	assert.Equal(t, domain.QueueRepter, airport[0].Name)
	assert.Equal(t, domain.QueueEmirates, airport[1].Name)

	docs := r.Documents()
	assert.Len(t, docs, 9)
	assert.NotContains(t, docs, domain.QueueEmirates)
}

func TestParse_Errors(t *testing.T) {
	_, err := zone.Parse([]byte("zones:\n  - name: A\n    polygon:\n      - [1, 2]\n      - [3, 4]\n"))
	assert.Error(t, err)

	_, err = zone.Parse([]byte("zones: []\nqueues:\n  - {name: X, geofence: Missing}\n"))
	assert.Error(t, err)

	_, err = zone.Parse([]byte("zones: [unclosed"))
	assert.Error(t, err)
}
