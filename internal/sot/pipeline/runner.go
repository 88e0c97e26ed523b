package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/pointtrack/internal/sot"
	"github.com/banshee-data/pointtrack/internal/sot/l8track"
	"github.com/banshee-data/pointtrack/internal/timeutil"
)

// RunStats aggregates one run's counters across all sequences.
type RunStats struct {
	Sequences      int     // Sequences tracked to completion
	Skipped        int     // Sequences skipped (no points at start)
	Frames         int     // Frames processed, counting frame 0 echoes
	LostTracks     int     // Sequences whose final state is lost
	MeanConfidence float64 // Mean per-frame confidence across the run
}

// Runner drains a SequenceSource through per-sequence Controllers and
// forwards finished trajectories to the sink.
type Runner struct {
	Source SequenceSource
	Sink   ResultSink      // Optional; nil discards trajectories
	Layers *l8track.Layers // Shared read-only layer stack
	Config l8track.Config

	// Workers bounds how many sequences run concurrently. Values below 1
	// run sequences one at a time.
	Workers int

	// Limit caps how many sequences are taken from the source. Zero means
	// all of them.
	Limit int

	// Clock measures the run duration; nil uses the wall clock.
	Clock timeutil.Clock
}

// Run processes the source's sequences and returns the aggregated counters.
// The first sequence error cancels the remaining workers; already-finished
// trajectories stay saved. Lost tracks are not errors — they are counted
// and surfaced through each trajectory's FinalState.
func (r *Runner) Run(ctx context.Context) (RunStats, error) {
	if r.Source == nil {
		return RunStats{}, errors.New("pipeline: runner needs a source")
	}
	if r.Layers == nil {
		return RunStats{}, errors.New("pipeline: runner needs a layer stack")
	}

	clock := r.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	started := clock.Now()

	total := r.Source.Sequences()
	if r.Limit > 0 && r.Limit < total {
		total = r.Limit
	}
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}

	diagf("run start: %d sequences, %d workers", total, workers)

	var (
		mu         sync.Mutex
		stats      RunStats
		confidence float64
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < total; i++ {
		g.Go(func() error {
			tr, err := r.runSequence(ctx, i)
			if err != nil {
				if errors.Is(err, sot.ErrEmptyCrop) {
					// A sequence with no usable frame-0 points cannot
					// start; skip it rather than failing the run.
					opsf("sequence %d skipped: %v", i, err)
					mu.Lock()
					stats.Skipped++
					mu.Unlock()
					return nil
				}
				return err
			}

			mu.Lock()
			stats.Sequences++
			stats.Frames += len(tr.Results)
			if tr.FinalState == l8track.TrackLost {
				stats.LostTracks++
			}
			for _, res := range tr.Results {
				confidence += res.Confidence
			}
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	if stats.Frames > 0 {
		stats.MeanConfidence = confidence / float64(stats.Frames)
	}
	if err != nil {
		return stats, err
	}

	opsf("run complete: %d sequences (%d skipped), %d frames, %d lost, mean confidence %.3f in %s",
		stats.Sequences, stats.Skipped, stats.Frames, stats.LostTracks, stats.MeanConfidence, clock.Since(started))
	return stats, nil
}

// runSequence tracks one sequence start to finish and saves its trajectory.
func (r *Runner) runSequence(ctx context.Context, i int) (Trajectory, error) {
	seq, err := r.Source.Open(i)
	if err != nil {
		return Trajectory{}, fmt.Errorf("open sequence %d: %w", i, err)
	}

	cloud, err := seq.Cloud(0)
	if err != nil {
		return Trajectory{}, fmt.Errorf("sequence %s: frame 0: %w", seq.ID(), err)
	}
	ctrl, err := l8track.New(seq.InitialBox(), cloud, r.Layers, r.Config)
	if err != nil {
		return Trajectory{}, fmt.Errorf("sequence %s: %w", seq.ID(), err)
	}

	results := make([]l8track.Result, 0, seq.Len())
	results = append(results, ctrl.Initial())

	for frame := 1; frame < seq.Len(); frame++ {
		cloud, err := seq.Cloud(frame)
		if err != nil {
			return Trajectory{}, fmt.Errorf("sequence %s: frame %d: %w", seq.ID(), frame, err)
		}
		res, err := ctrl.Step(ctx, cloud)
		if err != nil {
			return Trajectory{}, fmt.Errorf("sequence %s: frame %d: %w", seq.ID(), frame, err)
		}
		results = append(results, res)
		tracef("sequence %s frame %d: state=%s confidence=%.3f center=(%.2f, %.2f, %.2f)",
			seq.ID(), frame, res.State, res.Confidence, res.Box.CenterX, res.Box.CenterY, res.Box.CenterZ)
	}

	tr := Trajectory{
		SequenceID: seq.ID(),
		Results:    results,
		FinalState: results[len(results)-1].State,
	}
	if r.Sink != nil {
		if err := r.Sink.SaveTrajectory(ctx, tr); err != nil {
			return Trajectory{}, fmt.Errorf("sequence %s: save trajectory: %w", seq.ID(), err)
		}
	}

	diagf("sequence %s done: %d frames, final state %s, mean confidence %.3f",
		seq.ID(), len(results), tr.FinalState, tr.MeanConfidence())
	return tr, nil
}
