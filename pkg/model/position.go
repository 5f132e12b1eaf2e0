package model

// Position is a point in degrees
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}
