package pipeline

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/banshee-data/pointtrack/internal/sot"
)

// SyntheticConfig parameterises the built-in synthetic scene generator.
type SyntheticConfig struct {
	Sequences  int     // Generated sequence count
	Frames     int     // Frames per sequence, counting frame 0
	Step       float64 // Per-frame displacement along the box heading (metres)
	Spacing    float64 // Grid spacing of generated points (metres)
	Distractor bool    // Add a same-shape static distractor beside the path
	Seed       int64   // Varies box geometry between sequences
}

// DefaultSyntheticConfig returns the canonical synthetic scene: a handful of
// short straight-line sequences at LiDAR-ish point density.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Sequences: 4,
		Frames:    10,
		Step:      0.15,
		Spacing:   0.4,
		Seed:      1,
	}
}

// SyntheticSource generates deterministic rigid-body sequences: a box-shaped
// point cloud translating on a straight line, optionally shadowed by a
// static distractor of the same shape inside the search region. The same
// config always generates the same clouds.
type SyntheticSource struct {
	cfg  SyntheticConfig
	seqs []syntheticSequence
}

// NewSyntheticSource precomputes the per-sequence geometry.
func NewSyntheticSource(cfg SyntheticConfig) *SyntheticSource {
	if cfg.Sequences < 1 {
		cfg.Sequences = 1
	}
	if cfg.Frames < 1 {
		cfg.Frames = 1
	}
	if cfg.Spacing <= 0 {
		cfg.Spacing = 0.4
	}

	seqs := make([]syntheticSequence, cfg.Sequences)
	for i := range seqs {
		rng := rand.New(rand.NewSource(cfg.Seed + int64(i)))
		box := sot.Box{
			Length:     1.8 + 0.8*rng.Float64(),
			Width:      1.6 + 0.6*rng.Float64(),
			Height:     1.4 + 0.4*rng.Float64(),
			HeadingRad: (rng.Float64() - 0.5) * math.Pi / 2,
		}
		seq := syntheticSequence{
			id:      fmt.Sprintf("synth-%03d", i),
			frames:  cfg.Frames,
			spacing: cfg.Spacing,
			box:     box,
			dx:      cfg.Step * math.Cos(box.HeadingRad),
			dy:      cfg.Step * math.Sin(box.HeadingRad),
		}
		if cfg.Distractor {
			// Same shape, parked beside the start of the path: close
			// enough to sit inside every frame's search crop, far enough
			// to be clearly background.
			d := box
			d.CenterX += -2.5 * math.Sin(box.HeadingRad)
			d.CenterY += 2.5 * math.Cos(box.HeadingRad)
			seq.distractor = &d
		}
		seqs[i] = seq
	}
	return &SyntheticSource{cfg: cfg, seqs: seqs}
}

// Sequences returns the generated sequence count.
func (s *SyntheticSource) Sequences() int { return len(s.seqs) }

// Open returns sequence i. Synthetic sequences are stateless value types,
// so concurrent opens are safe.
func (s *SyntheticSource) Open(i int) (Sequence, error) {
	if i < 0 || i >= len(s.seqs) {
		return nil, fmt.Errorf("pipeline: synthetic sequence %d out of range [0,%d)", i, len(s.seqs))
	}
	seq := s.seqs[i]
	return &seq, nil
}

type syntheticSequence struct {
	id         string
	frames     int
	spacing    float64
	box        sot.Box
	dx, dy     float64
	distractor *sot.Box
}

func (s *syntheticSequence) ID() string { return s.id }

func (s *syntheticSequence) Len() int { return s.frames }

func (s *syntheticSequence) InitialBox() sot.Box { return s.box }

func (s *syntheticSequence) Cloud(frame int) ([]sot.Point, error) {
	if frame < 0 || frame >= s.frames {
		return nil, fmt.Errorf("pipeline: synthetic frame %d out of range [0,%d)", frame, s.frames)
	}
	box := s.box.Translated(s.dx*float64(frame), s.dy*float64(frame), 0)
	cloud := boxGrid(box, s.spacing)
	if s.distractor != nil {
		cloud = append(cloud, boxGrid(*s.distractor, s.spacing)...)
	}
	return cloud, nil
}

// boxGrid fills box with a regular grid of points at the given spacing,
// generated in the box frame and lifted to world coordinates.
func boxGrid(box sot.Box, spacing float64) []sot.Point {
	var pts []sot.Point
	for x := -box.Length / 2; x <= box.Length/2+1e-9; x += spacing {
		for y := -box.Width / 2; y <= box.Width/2+1e-9; y += spacing {
			for z := -box.Height / 2; z <= box.Height/2+1e-9; z += spacing {
				p := box.ToWorld(sot.Point{X: x, Y: y, Z: z})
				p.Intensity = 0.5
				pts = append(pts, p)
			}
		}
	}
	return pts
}
