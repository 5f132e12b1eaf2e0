package model

import (
	"slices"
	"time"
)

// Lap is a completed run of samples that left the start position and
// returned to it. A Lap is never modified after it was created.
type Lap struct {
	Number    int
	Distance  float64 // meters, rounded to 2 decimals
	Points    []Position
	StartTime time.Time
	EndTime   time.Time
}

func (l *Lap) Duration() time.Duration {
	return l.EndTime.Sub(l.StartTime)
}

// Clone returns a deep copy so callers can't alias the points of a stored lap
func (l *Lap) Clone() *Lap {
	ret := *l
	ret.Points = slices.Clone(l.Points)
	return &ret
}
