package l8track

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/pointtrack/internal/config"
	"github.com/banshee-data/pointtrack/internal/nnet"
	"github.com/banshee-data/pointtrack/internal/sot"
	"github.com/banshee-data/pointtrack/internal/sot/l1region"
	"github.com/banshee-data/pointtrack/internal/sot/l2encode"
	"github.com/banshee-data/pointtrack/internal/sot/l3motion"
	"github.com/banshee-data/pointtrack/internal/sot/l4boxaware"
	"github.com/banshee-data/pointtrack/internal/sot/l5context"
	"github.com/banshee-data/pointtrack/internal/sot/l6match"
	"github.com/banshee-data/pointtrack/internal/sot/l7regress"
)

// TrackState represents the lifecycle state of a tracked sequence.
type TrackState string

const (
	TrackInitialized TrackState = "initialized" // Frame 0: box given, nothing predicted yet
	TrackTracking    TrackState = "tracking"    // Normal per-frame update
	TrackDegraded    TrackState = "degraded"    // Confidence below threshold, template frozen
	TrackLost        TrackState = "lost"        // Terminal: low confidence for N consecutive frames
)

// Config holds the tunable parameters for a tracking sequence. One Config
// feeds every layer of the per-frame pipeline plus the state machine.
type Config struct {
	TemplateCapacity int     // Fixed template point budget
	SearchCapacity   int     // Fixed search-region point budget
	CropMargin       float64 // Additive search crop margin per face (metres)
	TemplateMargin   float64 // Additive template recrop margin per face (metres)

	FeatureDim     int // Per-point descriptor width
	Neighbors      int // kNN fan-in for the edge convolution
	AttentionHeads int // Cross-attention head count

	MotionPriorSigma    float64 // Distance-weight sigma for motion estimation (metres)
	BackgroundRelevance float64 // Relevance below which a point pools into context
	ContextTokens       int     // Azimuthal context sector count
	MatchBiasSigma      float64 // Geometric attention prior width (metres)

	VoteGate        float64 // Centre-vote refinement gate radius (metres)
	SizeEMAAlpha    float64 // Extent EMA step; 0 freezes the box size
	HeadingEMAAlpha float64 // Heading smoothing step
	MaxHeadingDelta float64 // Per-frame heading change clamp (radians)

	ConfidenceThreshold float64 // Below this a frame counts as low confidence
	MaxLowConfidence    int     // Consecutive low-confidence frames before lost
}

// DefaultConfig returns controller configuration loaded from the canonical
// tuning defaults file (config/tuning.defaults.json). Panics if the file
// cannot be found — intended for tests and binaries that have already
// validated config availability.
func DefaultConfig() Config {
	cfg := config.MustLoadDefaultConfig()
	return ConfigFromTuning(cfg)
}

// ConfigFromTuning builds a controller Config from a loaded TuningConfig.
// Use this in production code where the TuningConfig is already loaded.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		TemplateCapacity:    cfg.GetTemplateCapacity(),
		SearchCapacity:      cfg.GetSearchCapacity(),
		CropMargin:          cfg.GetCropMargin(),
		TemplateMargin:      cfg.GetTemplateMargin(),
		FeatureDim:          cfg.GetFeatureDim(),
		Neighbors:           cfg.GetNeighbors(),
		AttentionHeads:      cfg.GetAttentionHeads(),
		MotionPriorSigma:    cfg.GetMotionPriorSigma(),
		BackgroundRelevance: cfg.GetBackgroundRelevance(),
		ContextTokens:       cfg.GetContextTokens(),
		MatchBiasSigma:      cfg.GetMatchBiasSigma(),
		VoteGate:            cfg.GetVoteGate(),
		SizeEMAAlpha:        cfg.GetSizeEMAAlpha(),
		HeadingEMAAlpha:     cfg.GetHeadingEMAAlpha(),
		MaxHeadingDelta:     cfg.GetMaxHeadingDelta(),
		ConfidenceThreshold: cfg.GetConfidenceThreshold(),
		MaxLowConfidence:    cfg.GetMaxLowConfidence(),
	}
}

// Layers bundles the constructed layer 2-7 processors. Layers hold only
// parameter matrices after construction, so one bundle is safe to share
// across concurrently running Controllers.
type Layers struct {
	Encoder    *l2encode.Encoder
	Enhancer   *l4boxaware.Enhancer
	Aggregator *l5context.Aggregator
	Matcher    *l6match.Matcher
	Regressor  *l7regress.Regressor
}

// BuildLayers constructs the full layer stack against one parameter set.
// Call ps.Load afterwards to overlay checkpoint values; shapes are already
// pinned by registration here.
func BuildLayers(ps *nnet.ParamSet, cfg Config) (*Layers, error) {
	enc, err := l2encode.New(ps, l2encode.Config{
		FeatureDim: cfg.FeatureDim,
		Neighbors:  cfg.Neighbors,
	})
	if err != nil {
		return nil, fmt.Errorf("l8track: build encoder: %w", err)
	}
	matcher, err := l6match.New(ps, l6match.Config{
		FeatureDim: cfg.FeatureDim,
		Heads:      cfg.AttentionHeads,
		BiasSigma:  cfg.MatchBiasSigma,
	})
	if err != nil {
		return nil, fmt.Errorf("l8track: build matcher: %w", err)
	}
	return &Layers{
		Encoder:  enc,
		Enhancer: l4boxaware.New(ps, cfg.FeatureDim),
		Aggregator: l5context.New(ps, cfg.FeatureDim, l5context.Config{
			Tokens:              cfg.ContextTokens,
			BackgroundThreshold: cfg.BackgroundRelevance,
		}),
		Matcher: matcher,
		Regressor: l7regress.New(ps, cfg.FeatureDim, l7regress.Config{
			VoteGate:        cfg.VoteGate,
			SizeEMAAlpha:    cfg.SizeEMAAlpha,
			HeadingEMAAlpha: cfg.HeadingEMAAlpha,
			MaxHeadingDelta: cfg.MaxHeadingDelta,
		}),
	}, nil
}

// Result is one frame's tracking output. Degraded marks best-effort frames
// whose box was repeated, extrapolated, or regressed below the confidence
// threshold; callers treat those boxes as bookkeeping, not measurements.
type Result struct {
	FrameIndex int
	Box        sot.Box
	Confidence float64
	State      TrackState
	Degraded   bool
}

// Controller owns the tracking state of exactly one sequence: the template,
// the prior box, and the lifecycle state machine. It is not safe for
// concurrent use; sequences own their Controller and never share it.
type Controller struct {
	cfg    Config
	layers *Layers

	state     TrackState
	frame     int // next frame index handed to Step
	box       sot.Box
	anchor    sot.Box // last confident box, output after lost
	template  sot.Template
	tmplEnc   l2encode.Encoding
	lowStreak int // consecutive low-confidence frames

	// Per-frame displacement of the last confident update, world frame.
	// Extrapolates the anchor once the track is lost.
	motionDX, motionDY, motionDZ float64
}

// New builds a Controller from the sequence's frame-0 cloud and given box.
// An empty template crop or a parameter shape mismatch aborts the sequence
// before any frame is processed.
func New(box sot.Box, cloud []sot.Point, layers *Layers, cfg Config) (*Controller, error) {
	if layers == nil {
		return nil, errors.New("l8track: nil layer bundle")
	}
	if cfg.MaxLowConfidence < 1 {
		return nil, fmt.Errorf("l8track: max low confidence must be at least 1, got %d", cfg.MaxLowConfidence)
	}
	box.HeadingRad = sot.WrapHeading(box.HeadingRad)

	tmpl, err := l1region.CropTemplate(cloud, box, cfg.TemplateMargin, cfg.TemplateCapacity)
	if err != nil {
		return nil, fmt.Errorf("l8track: initial template: %w", err)
	}
	tmplEnc, err := layers.Encoder.Encode(tmpl.Set)
	if err != nil {
		return nil, fmt.Errorf("l8track: encode initial template: %w", err)
	}

	return &Controller{
		cfg:      cfg,
		layers:   layers,
		state:    TrackInitialized,
		frame:    1,
		box:      box,
		anchor:   box,
		template: tmpl,
		tmplEnc:  tmplEnc,
	}, nil
}

// Initial returns the frame-0 result: the given box echoed with full
// confidence. No prediction is involved.
func (c *Controller) Initial() Result {
	return Result{FrameIndex: 0, Box: c.anchor, Confidence: 1, State: TrackInitialized}
}

// State returns the current lifecycle state.
func (c *Controller) State() TrackState { return c.state }

// Box returns the current prior box: the last output, which frames the next
// search crop.
func (c *Controller) Box() sot.Box { return c.box }

// Frames returns the number of frames processed so far, counting frame 0.
func (c *Controller) Frames() int { return c.frame }

// Template returns a deep copy of the current template for inspection.
func (c *Controller) Template() sot.Template {
	return sot.Template{Set: c.template.Set.Clone(), Box: c.template.Box}
}

// Step advances the sequence by one frame of raw points and returns that
// frame's tracking result. Only shape mismatches and context cancellation
// return an error; empty crops and low confidence feed the state machine
// and still produce a result. State mutation is atomic: a successful frame
// commits the new box and template together, a low-confidence frame leaves
// the template untouched.
func (c *Controller) Step(ctx context.Context, cloud []sot.Point) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	frame := c.frame
	c.frame++

	// A lost track never recovers. Keep producing bookkeeping boxes by
	// extrapolating the last confident motion.
	if c.state == TrackLost {
		c.box = c.box.Translated(c.motionDX, c.motionDY, c.motionDZ)
		return Result{FrameIndex: frame, Box: c.box, State: TrackLost, Degraded: true}, nil
	}

	// Step 1: crop the search region around the prior box.
	region, err := l1region.CropSearch(cloud, c.box, c.cfg.CropMargin, c.cfg.SearchCapacity)
	if err != nil {
		if errors.Is(err, sot.ErrEmptyCrop) {
			// Occlusion or sensor dropout: counts as a low-confidence
			// frame, repeats the prior box, never touches the template.
			return c.flagLow(frame, c.box, 0), nil
		}
		return Result{}, fmt.Errorf("l8track: frame %d: %w", frame, err)
	}

	// Step 2: estimate inter-frame motion and compensate the region so the
	// target sits near its template-local position.
	motion := l3motion.Estimate(c.template, region, l3motion.Config{PriorSigma: c.cfg.MotionPriorSigma})
	region = l3motion.Apply(region, motion)

	// Step 3: encode the compensated search points.
	searchEnc, err := c.layers.Encoder.Encode(region.Set)
	if err != nil {
		return Result{}, fmt.Errorf("l8track: frame %d: encode search: %w", frame, err)
	}

	// Step 4: box-aware relevance gating and context aggregation.
	enhanced, relevance, err := c.layers.Enhancer.Enhance(region, searchEnc, c.template, c.tmplEnc)
	if err != nil {
		return Result{}, fmt.Errorf("l8track: frame %d: enhance: %w", frame, err)
	}
	tokens, err := c.layers.Aggregator.Aggregate(region, enhanced, relevance)
	if err != nil {
		return Result{}, fmt.Errorf("l8track: frame %d: aggregate context: %w", frame, err)
	}

	// Step 5: match against the template and regress the new box.
	match, err := c.layers.Matcher.Match(region, enhanced, c.template, c.tmplEnc.Map(), tokens)
	if err != nil {
		return Result{}, fmt.Errorf("l8track: frame %d: match: %w", frame, err)
	}
	box, conf, err := c.layers.Regressor.Regress(region, match, relevance, c.template, motion)
	if err != nil {
		return Result{}, fmt.Errorf("l8track: frame %d: regress: %w", frame, err)
	}

	if conf < c.cfg.ConfidenceThreshold {
		// Best-effort box: output it and keep searching there, but the
		// template stays frozen until confidence recovers.
		return c.flagLow(frame, box, conf), nil
	}

	// Step 6: confident frame. Recrop the template from the raw cloud
	// around the predicted box with the fixed template margin, encoded off
	// to the side so a failure leaves the controller untouched.
	tmpl, tmplEnc := c.template, c.tmplEnc
	if fresh, cropErr := l1region.CropTemplate(cloud, box, c.cfg.TemplateMargin, c.cfg.TemplateCapacity); cropErr == nil {
		freshEnc, encErr := c.layers.Encoder.Encode(fresh.Set)
		if encErr != nil {
			return Result{}, fmt.Errorf("l8track: frame %d: encode template: %w", frame, encErr)
		}
		tmpl, tmplEnc = fresh, freshEnc
	} else if !errors.Is(cropErr, sot.ErrEmptyCrop) {
		return Result{}, fmt.Errorf("l8track: frame %d: recrop template: %w", frame, cropErr)
	}

	// Step 7: commit. Box, anchor, motion, template, and state move
	// together; the low streak resets.
	c.motionDX = box.CenterX - c.box.CenterX
	c.motionDY = box.CenterY - c.box.CenterY
	c.motionDZ = box.CenterZ - c.box.CenterZ
	c.box = box
	c.anchor = box
	c.template = tmpl
	c.tmplEnc = tmplEnc
	c.lowStreak = 0
	c.state = TrackTracking

	return Result{FrameIndex: frame, Box: box, Confidence: conf, State: TrackTracking}, nil
}

// flagLow feeds one low-confidence frame through the state machine: the
// streak grows, the state degrades, and on the Nth consecutive low frame
// the track transitions to lost and snaps back to the last confident box.
func (c *Controller) flagLow(frame int, box sot.Box, conf float64) Result {
	c.lowStreak++
	if c.lowStreak >= c.cfg.MaxLowConfidence {
		c.state = TrackLost
		c.box = c.anchor
	} else {
		c.state = TrackDegraded
		c.box = box
	}
	return Result{FrameIndex: frame, Box: c.box, Confidence: conf, State: c.state, Degraded: true}
}
