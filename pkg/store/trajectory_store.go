// Package store holds the published simulation state.
//
// There is exactly one writer (the scheduler) which publishes a complete
// Snapshot after each tick. Readers load the current snapshot without locking
// and therefore always see the state of a single tick.
package store

import (
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mpapenbr/lapsim/pkg/model"
)

type (
	// Snapshot is the state after a tick. The slices are read-only views,
	// they must not be modified by anyone.
	Snapshot struct {
		Tick        uint64
		Time        time.Time
		Latest      model.Position
		Pending     []model.Position
		RunDistance float64
		Laps        []model.Lap
		NumLaps     int
	}
	TrajectoryStore struct {
		runID   uuid.UUID
		current atomic.Pointer[Snapshot]
	}
	Option func(*TrajectoryStore)
)

// WithInitialPosition sets the position reported before the first tick
func WithInitialPosition(pos model.Position) Option {
	return func(s *TrajectoryStore) {
		s.current.Store(&Snapshot{Latest: pos})
	}
}

func WithRunID(id uuid.UUID) Option {
	return func(s *TrajectoryStore) {
		s.runID = id
	}
}

func New(opts ...Option) *TrajectoryStore {
	ret := &TrajectoryStore{runID: uuid.New()}
	ret.current.Store(&Snapshot{})
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// RunID identifies the simulation run. It changes with every process start.
func (s *TrajectoryStore) RunID() uuid.UUID {
	return s.runID
}

// Publish replaces the current snapshot. Only the scheduler calls this.
func (s *TrajectoryStore) Publish(snap *Snapshot) {
	s.current.Store(snap)
}

// Snapshot returns the current snapshot. The result must be treated as read-only.
func (s *TrajectoryStore) Snapshot() *Snapshot {
	return s.current.Load()
}

func (s *TrajectoryStore) LatestPosition() model.Position {
	return s.current.Load().Latest
}

func (s *TrajectoryStore) PendingRun() []model.Position {
	return slices.Clone(s.current.Load().Pending)
}

// LastCompletedLap returns a copy of the most recent lap, nil if no lap
// was completed yet
func (s *TrajectoryStore) LastCompletedLap() *model.Lap {
	laps := s.current.Load().Laps
	if len(laps) == 0 {
		return nil
	}
	return laps[len(laps)-1].Clone()
}

// Laps returns copies of all retained laps, oldest first
func (s *TrajectoryStore) Laps() []model.Lap {
	laps := s.current.Load().Laps
	ret := make([]model.Lap, len(laps))
	for i := range laps {
		ret[i] = *laps[i].Clone()
	}
	return ret
}
