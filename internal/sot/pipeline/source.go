package pipeline

import (
	"context"
	"sync"

	"github.com/banshee-data/pointtrack/internal/sot"
	"github.com/banshee-data/pointtrack/internal/sot/l8track"
)

// SequenceSource enumerates the tracking sequences of one dataset.
// Implementations must allow concurrent Open calls: the runner opens
// sequences from several workers at once.
type SequenceSource interface {
	// Sequences returns how many sequences the source can open.
	Sequences() int

	// Open materialises sequence i in [0, Sequences()).
	Open(i int) (Sequence, error)
}

// Sequence is one object's ordered frames plus its given frame-0 box.
// A Sequence is consumed by exactly one worker and need not be
// goroutine-safe.
type Sequence interface {
	// ID identifies the sequence within its dataset.
	ID() string

	// Len returns the frame count, counting frame 0.
	Len() int

	// InitialBox returns the ground-truth box for frame 0.
	InitialBox() sot.Box

	// Cloud loads one frame's raw points. An empty cloud is valid input
	// (sensor dropout) and feeds the tracker's occlusion handling; only
	// genuine read failures return an error.
	Cloud(frame int) ([]sot.Point, error)
}

// Trajectory is one sequence's complete tracking output.
type Trajectory struct {
	SequenceID string
	Results    []l8track.Result
	FinalState l8track.TrackState
}

// MeanConfidence averages the per-frame confidence across the trajectory.
func (tr Trajectory) MeanConfidence() float64 {
	if len(tr.Results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range tr.Results {
		sum += r.Confidence
	}
	return sum / float64(len(tr.Results))
}

// ResultSink consumes finished trajectories. Implementations must be safe
// for concurrent SaveTrajectory calls; the runner saves from its workers.
type ResultSink interface {
	SaveTrajectory(ctx context.Context, tr Trajectory) error
}

// MemorySink collects trajectories in memory. It backs tests and runs
// without a results database.
type MemorySink struct {
	mu           sync.Mutex
	trajectories []Trajectory
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// SaveTrajectory appends tr to the sink.
func (s *MemorySink) SaveTrajectory(_ context.Context, tr Trajectory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trajectories = append(s.trajectories, tr)
	return nil
}

// Trajectories returns a copy of everything saved so far.
func (s *MemorySink) Trajectories() []Trajectory {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Trajectory, len(s.trajectories))
	copy(out, s.trajectories)
	return out
}
