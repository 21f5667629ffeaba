// Package geometry - проверка точки в полигоне и круговые регионы.
package geometry

import (
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"github.com/droszt-service/internal/domain"
)

const EarthRadiusMeters = 6371008.8

// IsInside - ray casting по сырым (lat, lng) как по плоскости.
// Полигоны стоянок маленькие, проекция не нужна. Меньше трёх вершин - всегда false.
func IsInside(p domain.Point, polygon []domain.Point) bool {
	if len(polygon) < 3 {
		return false
	}

	x, y := p.Lat, p.Lng
	inside := false

	for i, j := 0, len(polygon)-1; i < len(polygon); j, i = i, i+1 {
		xi, yi := polygon[i].Lat, polygon[i].Lng
		xj, yj := polygon[j].Lat, polygon[j].Lng

		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}

	return inside
}

// DistanceMeters - расстояние по большой окружности
func DistanceMeters(a, b domain.Point) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lng)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lng)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// InCircle проверяет попадание в круговой регион через s2.Cap
func InCircle(p domain.Point, region domain.CircularRegion) bool {
	if region.RadiusMeters <= 0 {
		return false
	}
	center := s2.PointFromLatLng(s2.LatLngFromDegrees(region.Center.Lat, region.Center.Lng))
	angle := s1.Angle(region.RadiusMeters / EarthRadiusMeters)
	c := s2.CapFromCenterAngle(center, angle)
	return c.ContainsPoint(s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat, p.Lng)))
}

// Centroid - среднее вершин; годится для подбора центра запасного круга
func Centroid(polygon []domain.Point) domain.Point {
	if len(polygon) == 0 {
		return domain.Point{}
	}
	var lat, lng float64
	for _, v := range polygon {
		lat += v.Lat
		lng += v.Lng
	}
	n := float64(len(polygon))
	return domain.Point{Lat: lat / n, Lng: lng / n}
}
