package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tracker tuning
// parameters. All fields are optional in the JSON; the Get* methods supply
// the hardcoded default for any field left nil, so partial configs are safe.
type TuningConfig struct {
	// Crop/sample params
	TemplateCapacity *int     `json:"template_capacity,omitempty"`
	SearchCapacity   *int     `json:"search_capacity,omitempty"`
	CropMargin       *float64 `json:"crop_margin,omitempty"`     // metres per face, search crop
	TemplateMargin   *float64 `json:"template_margin,omitempty"` // metres per face, template recrop

	// Encoder params
	FeatureDim     *int   `json:"feature_dim,omitempty"`
	Neighbors      *int   `json:"neighbors,omitempty"`
	AttentionHeads *int   `json:"attention_heads,omitempty"`
	ParamSeed      *int64 `json:"param_seed,omitempty"`

	// Motion params
	MotionPriorSigma *float64 `json:"motion_prior_sigma,omitempty"` // metres

	// Box-aware / context params
	BackgroundRelevance *float64 `json:"background_relevance,omitempty"`
	ContextTokens       *int     `json:"context_tokens,omitempty"`

	// Matcher params
	MatchBiasSigma *float64 `json:"match_bias_sigma,omitempty"` // metres

	// Regression params
	VoteGate        *float64 `json:"vote_gate,omitempty"` // metres
	SizeEMAAlpha    *float64 `json:"size_ema_alpha,omitempty"`
	HeadingEMAAlpha *float64 `json:"heading_ema_alpha,omitempty"`
	MaxHeadingDelta *float64 `json:"max_heading_delta,omitempty"` // radians per frame

	// Controller params
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	MaxLowConfidence    *int     `json:"max_low_confidence,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from a file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	// Validate the config file path.
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/sot/l*/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.TemplateCapacity != nil && *c.TemplateCapacity < 1 {
		return fmt.Errorf("template_capacity must be positive, got %d", *c.TemplateCapacity)
	}
	if c.SearchCapacity != nil && *c.SearchCapacity < 1 {
		return fmt.Errorf("search_capacity must be positive, got %d", *c.SearchCapacity)
	}
	if c.CropMargin != nil && *c.CropMargin <= 0 {
		return fmt.Errorf("crop_margin must be positive, got %f", *c.CropMargin)
	}
	if c.TemplateMargin != nil && *c.TemplateMargin < 0 {
		return fmt.Errorf("template_margin must be non-negative, got %f", *c.TemplateMargin)
	}
	if c.FeatureDim != nil && *c.FeatureDim < 1 {
		return fmt.Errorf("feature_dim must be positive, got %d", *c.FeatureDim)
	}
	if c.Neighbors != nil && *c.Neighbors < 1 {
		return fmt.Errorf("neighbors must be positive, got %d", *c.Neighbors)
	}
	if c.AttentionHeads != nil && *c.AttentionHeads < 1 {
		return fmt.Errorf("attention_heads must be positive, got %d", *c.AttentionHeads)
	}
	if c.FeatureDim != nil || c.AttentionHeads != nil {
		dim := c.GetFeatureDim()
		heads := c.GetAttentionHeads()
		if dim%heads != 0 {
			return fmt.Errorf("feature_dim %d must be divisible by attention_heads %d", dim, heads)
		}
	}
	if c.MotionPriorSigma != nil && *c.MotionPriorSigma <= 0 {
		return fmt.Errorf("motion_prior_sigma must be positive, got %f", *c.MotionPriorSigma)
	}
	if c.BackgroundRelevance != nil {
		if *c.BackgroundRelevance < 0 || *c.BackgroundRelevance > 1 {
			return fmt.Errorf("background_relevance must be between 0 and 1, got %f", *c.BackgroundRelevance)
		}
	}
	if c.ContextTokens != nil && *c.ContextTokens < 0 {
		return fmt.Errorf("context_tokens must be non-negative, got %d", *c.ContextTokens)
	}
	if c.MatchBiasSigma != nil && *c.MatchBiasSigma <= 0 {
		return fmt.Errorf("match_bias_sigma must be positive, got %f", *c.MatchBiasSigma)
	}
	if c.VoteGate != nil && *c.VoteGate <= 0 {
		return fmt.Errorf("vote_gate must be positive, got %f", *c.VoteGate)
	}
	if c.SizeEMAAlpha != nil {
		if *c.SizeEMAAlpha < 0 || *c.SizeEMAAlpha > 1 {
			return fmt.Errorf("size_ema_alpha must be between 0 and 1, got %f", *c.SizeEMAAlpha)
		}
	}
	if c.HeadingEMAAlpha != nil {
		if *c.HeadingEMAAlpha < 0 || *c.HeadingEMAAlpha > 1 {
			return fmt.Errorf("heading_ema_alpha must be between 0 and 1, got %f", *c.HeadingEMAAlpha)
		}
	}
	if c.MaxHeadingDelta != nil && *c.MaxHeadingDelta < 0 {
		return fmt.Errorf("max_heading_delta must be non-negative, got %f", *c.MaxHeadingDelta)
	}
	if c.ConfidenceThreshold != nil {
		if *c.ConfidenceThreshold < 0 || *c.ConfidenceThreshold > 1 {
			return fmt.Errorf("confidence_threshold must be between 0 and 1, got %f", *c.ConfidenceThreshold)
		}
	}
	if c.MaxLowConfidence != nil && *c.MaxLowConfidence < 1 {
		return fmt.Errorf("max_low_confidence must be positive, got %d", *c.MaxLowConfidence)
	}
	return nil
}

// GetTemplateCapacity returns the template_capacity value or the default.
func (c *TuningConfig) GetTemplateCapacity() int {
	if c.TemplateCapacity == nil {
		return 128
	}
	return *c.TemplateCapacity
}

// GetSearchCapacity returns the search_capacity value or the default.
func (c *TuningConfig) GetSearchCapacity() int {
	if c.SearchCapacity == nil {
		return 256
	}
	return *c.SearchCapacity
}

// GetCropMargin returns the crop_margin value or the default.
func (c *TuningConfig) GetCropMargin() float64 {
	if c.CropMargin == nil {
		return 2.0
	}
	return *c.CropMargin
}

// GetTemplateMargin returns the template_margin value or the default.
func (c *TuningConfig) GetTemplateMargin() float64 {
	if c.TemplateMargin == nil {
		return 0.25
	}
	return *c.TemplateMargin
}

// GetFeatureDim returns the feature_dim value or the default.
func (c *TuningConfig) GetFeatureDim() int {
	if c.FeatureDim == nil {
		return 32
	}
	return *c.FeatureDim
}

// GetNeighbors returns the neighbors value or the default.
func (c *TuningConfig) GetNeighbors() int {
	if c.Neighbors == nil {
		return 8
	}
	return *c.Neighbors
}

// GetAttentionHeads returns the attention_heads value or the default.
func (c *TuningConfig) GetAttentionHeads() int {
	if c.AttentionHeads == nil {
		return 2
	}
	return *c.AttentionHeads
}

// GetParamSeed returns the param_seed value or the default.
func (c *TuningConfig) GetParamSeed() int64 {
	if c.ParamSeed == nil {
		return 17
	}
	return *c.ParamSeed
}

// GetMotionPriorSigma returns the motion_prior_sigma value or the default.
func (c *TuningConfig) GetMotionPriorSigma() float64 {
	if c.MotionPriorSigma == nil {
		return 1.0
	}
	return *c.MotionPriorSigma
}

// GetBackgroundRelevance returns the background_relevance value or the default.
func (c *TuningConfig) GetBackgroundRelevance() float64 {
	if c.BackgroundRelevance == nil {
		return 0.35
	}
	return *c.BackgroundRelevance
}

// GetContextTokens returns the context_tokens value or the default.
func (c *TuningConfig) GetContextTokens() int {
	if c.ContextTokens == nil {
		return 4
	}
	return *c.ContextTokens
}

// GetMatchBiasSigma returns the match_bias_sigma value or the default.
func (c *TuningConfig) GetMatchBiasSigma() float64 {
	if c.MatchBiasSigma == nil {
		return 0.5
	}
	return *c.MatchBiasSigma
}

// GetVoteGate returns the vote_gate value or the default.
func (c *TuningConfig) GetVoteGate() float64 {
	if c.VoteGate == nil {
		return 0.6
	}
	return *c.VoteGate
}

// GetSizeEMAAlpha returns the size_ema_alpha value or the default.
func (c *TuningConfig) GetSizeEMAAlpha() float64 {
	if c.SizeEMAAlpha == nil {
		return 0.1
	}
	return *c.SizeEMAAlpha
}

// GetHeadingEMAAlpha returns the heading_ema_alpha value or the default.
func (c *TuningConfig) GetHeadingEMAAlpha() float64 {
	if c.HeadingEMAAlpha == nil {
		return 0.3
	}
	return *c.HeadingEMAAlpha
}

// GetMaxHeadingDelta returns the max_heading_delta value or the default.
func (c *TuningConfig) GetMaxHeadingDelta() float64 {
	if c.MaxHeadingDelta == nil {
		return 0.3
	}
	return *c.MaxHeadingDelta
}

// GetConfidenceThreshold returns the confidence_threshold value or the default.
func (c *TuningConfig) GetConfidenceThreshold() float64 {
	if c.ConfidenceThreshold == nil {
		return 0.35
	}
	return *c.ConfidenceThreshold
}

// GetMaxLowConfidence returns the max_low_confidence value or the default.
func (c *TuningConfig) GetMaxLowConfidence() int {
	if c.MaxLowConfidence == nil {
		return 5
	}
	return *c.MaxLowConfidence
}
