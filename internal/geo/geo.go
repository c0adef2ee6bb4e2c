// Package geo contains pure geographic and delivery pricing computations.
package geo

import "math"

const earthRadiusKm = 6371.0

// Coord is a latitude/longitude pair in decimal degrees.
type Coord struct {
	Lat float64
	Lng float64
}

// Tariff describes the delivery fee schedule.
type Tariff struct {
	BaseFare     float64
	FreeRadiusKm float64
	PerKmRate    float64
}

// DefaultTariff matches the restaurant's standard schedule: a flat 5.00
// within 1 km, plus 2.00 per extra kilometre.
func DefaultTariff() Tariff {
	return Tariff{BaseFare: 5.0, FreeRadiusKm: 1.0, PerKmRate: 2.0}
}

// DistanceKm returns the great-circle distance in kilometres between two
// points. Inputs are not validated; callers are responsible for plausible
// ranges.
func DistanceKm(a, b Coord) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// DeliveryFee returns the delivery price for a trip of the given distance.
// The fee is the flat base fare within the free radius and grows linearly
// beyond it, so it is monotonic in distance and never negative.
func DeliveryFee(distanceKm float64, t Tariff) float64 {
	if distanceKm <= t.FreeRadiusKm {
		return t.BaseFare
	}
	return t.BaseFare + (distanceKm-t.FreeRadiusKm)*t.PerKmRate
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
