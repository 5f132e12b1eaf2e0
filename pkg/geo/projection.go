// Package geo provides a flat-earth projection for small regions.
// Distances are only meaningful close to the reference latitude.
package geo

import (
	"math"

	"github.com/mpapenbr/lapsim/pkg/model"
)

// MetersPerDegree is the length of one degree of latitude
const MetersPerDegree = 111320.0

type Projection struct {
	LatFactor float64 // meters per degree latitude
	LonFactor float64 // meters per degree longitude at the reference latitude
}

func NewProjection(refLat float64) Projection {
	return Projection{
		LatFactor: MetersPerDegree,
		LonFactor: MetersPerDegree * math.Cos(refLat*math.Pi/180),
	}
}

// Distance returns the planar distance in meters between a and b
func (p Projection) Distance(a, b model.Position) float64 {
	dx := (b.Lon - a.Lon) * p.LonFactor
	dy := (b.Lat - a.Lat) * p.LatFactor
	return math.Sqrt(dx*dx + dy*dy)
}

func (p Projection) MetersToLat(m float64) float64 {
	return m / p.LatFactor
}

func (p Projection) MetersToLon(m float64) float64 {
	return m / p.LonFactor
}
