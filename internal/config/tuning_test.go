package config

import (
	"os"
	"path/filepath"
	"testing"
)

func ptrFloat64(f float64) *float64 {
	return &f
}

func ptrInt(i int) *int {
	return &i
}

func TestLoadTuningConfig(t *testing.T) {
	// Create temporary directory
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	// Write test config with flat schema
	testJSON := `{
  "template_capacity": 64,
  "search_capacity": 192,
  "crop_margin": 1.5,
  "feature_dim": 16,
  "neighbors": 4,
  "attention_heads": 4,
  "match_bias_sigma": 0.75,
  "confidence_threshold": 0.5
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	// Load the config
	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify values
	if cfg.TemplateCapacity == nil || *cfg.TemplateCapacity != 64 {
		t.Errorf("Expected TemplateCapacity 64, got %v", cfg.TemplateCapacity)
	}
	if cfg.SearchCapacity == nil || *cfg.SearchCapacity != 192 {
		t.Errorf("Expected SearchCapacity 192, got %v", cfg.SearchCapacity)
	}
	if cfg.CropMargin == nil || *cfg.CropMargin != 1.5 {
		t.Errorf("Expected CropMargin 1.5, got %v", cfg.CropMargin)
	}
	if cfg.FeatureDim == nil || *cfg.FeatureDim != 16 {
		t.Errorf("Expected FeatureDim 16, got %v", cfg.FeatureDim)
	}
	if cfg.Neighbors == nil || *cfg.Neighbors != 4 {
		t.Errorf("Expected Neighbors 4, got %v", cfg.Neighbors)
	}
	if cfg.AttentionHeads == nil || *cfg.AttentionHeads != 4 {
		t.Errorf("Expected AttentionHeads 4, got %v", cfg.AttentionHeads)
	}
	if cfg.MatchBiasSigma == nil || *cfg.MatchBiasSigma != 0.75 {
		t.Errorf("Expected MatchBiasSigma 0.75, got %v", cfg.MatchBiasSigma)
	}
	if cfg.ConfidenceThreshold == nil || *cfg.ConfidenceThreshold != 0.5 {
		t.Errorf("Expected ConfidenceThreshold 0.5, got %v", cfg.ConfidenceThreshold)
	}
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	// Write invalid JSON
	invalidJSON := `{
  "crop_margin": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{
			name:    "empty config is valid",
			cfg:     &TuningConfig{},
			wantErr: false,
		},
		{
			name: "negative template capacity",
			cfg: &TuningConfig{
				TemplateCapacity: ptrInt(-1),
			},
			wantErr: true,
		},
		{
			name: "zero search capacity",
			cfg: &TuningConfig{
				SearchCapacity: ptrInt(0),
			},
			wantErr: true,
		},
		{
			name: "zero crop margin",
			cfg: &TuningConfig{
				CropMargin: ptrFloat64(0),
			},
			wantErr: true,
		},
		{
			name: "negative template margin",
			cfg: &TuningConfig{
				TemplateMargin: ptrFloat64(-0.5),
			},
			wantErr: true,
		},
		{
			name: "zero template margin is valid",
			cfg: &TuningConfig{
				TemplateMargin: ptrFloat64(0),
			},
			wantErr: false,
		},
		{
			name: "feature dim not divisible by heads",
			cfg: &TuningConfig{
				FeatureDim:     ptrInt(30),
				AttentionHeads: ptrInt(4),
			},
			wantErr: true,
		},
		{
			name: "feature dim divisible by heads",
			cfg: &TuningConfig{
				FeatureDim:     ptrInt(32),
				AttentionHeads: ptrInt(4),
			},
			wantErr: false,
		},
		{
			name: "heads alone must divide the default dim",
			cfg: &TuningConfig{
				AttentionHeads: ptrInt(3),
			},
			wantErr: true,
		},
		{
			name: "negative motion prior sigma",
			cfg: &TuningConfig{
				MotionPriorSigma: ptrFloat64(-1.0),
			},
			wantErr: true,
		},
		{
			name: "background relevance above one",
			cfg: &TuningConfig{
				BackgroundRelevance: ptrFloat64(1.5),
			},
			wantErr: true,
		},
		{
			name: "negative context tokens",
			cfg: &TuningConfig{
				ContextTokens: ptrInt(-1),
			},
			wantErr: true,
		},
		{
			name: "zero context tokens is valid",
			cfg: &TuningConfig{
				ContextTokens: ptrInt(0),
			},
			wantErr: false,
		},
		{
			name: "zero match bias sigma",
			cfg: &TuningConfig{
				MatchBiasSigma: ptrFloat64(0),
			},
			wantErr: true,
		},
		{
			name: "zero vote gate",
			cfg: &TuningConfig{
				VoteGate: ptrFloat64(0),
			},
			wantErr: true,
		},
		{
			name: "size ema alpha above one",
			cfg: &TuningConfig{
				SizeEMAAlpha: ptrFloat64(1.1),
			},
			wantErr: true,
		},
		{
			name: "heading ema alpha below zero",
			cfg: &TuningConfig{
				HeadingEMAAlpha: ptrFloat64(-0.1),
			},
			wantErr: true,
		},
		{
			name: "negative max heading delta",
			cfg: &TuningConfig{
				MaxHeadingDelta: ptrFloat64(-0.1),
			},
			wantErr: true,
		},
		{
			name: "confidence threshold above one",
			cfg: &TuningConfig{
				ConfidenceThreshold: ptrFloat64(1.2),
			},
			wantErr: true,
		},
		{
			name: "zero max low confidence",
			cfg: &TuningConfig{
				MaxLowConfidence: ptrInt(0),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadTuningConfig("../../config/tuning.defaults.json")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	// The canonical defaults file must agree with the hardcoded getter
	// defaults, so an empty config and the shipped file behave the same.
	if cfg.GetTemplateCapacity() != 128 {
		t.Errorf("Expected 128, got %d", cfg.GetTemplateCapacity())
	}
	if cfg.GetSearchCapacity() != 256 {
		t.Errorf("Expected 256, got %d", cfg.GetSearchCapacity())
	}
	if cfg.GetCropMargin() != 2.0 {
		t.Errorf("Expected 2.0, got %f", cfg.GetCropMargin())
	}
	if cfg.GetFeatureDim() != 32 {
		t.Errorf("Expected 32, got %d", cfg.GetFeatureDim())
	}
	if cfg.GetParamSeed() != 17 {
		t.Errorf("Expected 17, got %d", cfg.GetParamSeed())
	}
	if cfg.GetMatchBiasSigma() != 0.5 {
		t.Errorf("Expected 0.5, got %f", cfg.GetMatchBiasSigma())
	}
	if cfg.GetConfidenceThreshold() != 0.35 {
		t.Errorf("Expected 0.35, got %f", cfg.GetConfidenceThreshold())
	}
	if cfg.GetMaxLowConfidence() != 5 {
		t.Errorf("Expected 5, got %d", cfg.GetMaxLowConfidence())
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	// From internal/config the defaults file is two directories up; the
	// parent-directory search must find it without panicking.
	cfg := MustLoadDefaultConfig()
	if cfg.GetFeatureDim() != 32 {
		t.Errorf("Expected 32, got %d", cfg.GetFeatureDim())
	}
}

func TestLoadTuningConfigPartial(t *testing.T) {
	// Partial config: only override the crop margin; everything else should
	// keep defaults.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.json")

	partialJSON := `{
  "crop_margin": 3.0
}`
	if err := os.WriteFile(configPath, []byte(partialJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load partial config: %v", err)
	}

	// Overridden value
	if cfg.GetCropMargin() != 3.0 {
		t.Errorf("Expected overridden CropMargin 3.0, got %f", cfg.GetCropMargin())
	}
	// Default values should be preserved
	if cfg.GetTemplateCapacity() != 128 {
		t.Errorf("Expected default TemplateCapacity 128, got %d", cfg.GetTemplateCapacity())
	}
	if cfg.GetTemplateMargin() != 0.25 {
		t.Errorf("Expected default TemplateMargin 0.25, got %f", cfg.GetTemplateMargin())
	}
	if cfg.GetNeighbors() != 8 {
		t.Errorf("Expected default Neighbors 8, got %d", cfg.GetNeighbors())
	}
	if cfg.GetVoteGate() != 0.6 {
		t.Errorf("Expected default VoteGate 0.6, got %f", cfg.GetVoteGate())
	}
}

func TestLoadTuningConfigRejectsInvalidValues(t *testing.T) {
	// Well-formed JSON with out-of-range values must fail validation on load.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "out_of_range.json")

	badJSON := `{
  "feature_dim": 32,
  "attention_heads": 5
}`
	if err := os.WriteFile(configPath, []byte(badJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected validation error for indivisible feature_dim, got nil")
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadTuningConfig("/some/path/config.yaml")
	if err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadTuningConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	// Create a file larger than 1MB
	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestAllTuningParams(t *testing.T) {
	// Test that all tunable parameters can be set via JSON
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "all_params.json")

	allParamsJSON := `{
  "template_capacity": 96,
  "search_capacity": 224,
  "crop_margin": 2.5,
  "template_margin": 0.5,
  "feature_dim": 24,
  "neighbors": 6,
  "attention_heads": 3,
  "param_seed": 99,
  "motion_prior_sigma": 1.25,
  "background_relevance": 0.4,
  "context_tokens": 8,
  "match_bias_sigma": 0.45,
  "vote_gate": 0.55,
  "size_ema_alpha": 0.2,
  "heading_ema_alpha": 0.25,
  "max_heading_delta": 0.35,
  "confidence_threshold": 0.3,
  "max_low_confidence": 7
}`
	if err := os.WriteFile(configPath, []byte(allParamsJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Verify all fields are loaded correctly
	if cfg.TemplateCapacity == nil || *cfg.TemplateCapacity != 96 {
		t.Errorf("TemplateCapacity = %v, want 96", cfg.TemplateCapacity)
	}
	if cfg.SearchCapacity == nil || *cfg.SearchCapacity != 224 {
		t.Errorf("SearchCapacity = %v, want 224", cfg.SearchCapacity)
	}
	if cfg.CropMargin == nil || *cfg.CropMargin != 2.5 {
		t.Errorf("CropMargin = %v, want 2.5", cfg.CropMargin)
	}
	if cfg.TemplateMargin == nil || *cfg.TemplateMargin != 0.5 {
		t.Errorf("TemplateMargin = %v, want 0.5", cfg.TemplateMargin)
	}
	if cfg.FeatureDim == nil || *cfg.FeatureDim != 24 {
		t.Errorf("FeatureDim = %v, want 24", cfg.FeatureDim)
	}
	if cfg.Neighbors == nil || *cfg.Neighbors != 6 {
		t.Errorf("Neighbors = %v, want 6", cfg.Neighbors)
	}
	if cfg.AttentionHeads == nil || *cfg.AttentionHeads != 3 {
		t.Errorf("AttentionHeads = %v, want 3", cfg.AttentionHeads)
	}
	if cfg.ParamSeed == nil || *cfg.ParamSeed != 99 {
		t.Errorf("ParamSeed = %v, want 99", cfg.ParamSeed)
	}
	if cfg.MotionPriorSigma == nil || *cfg.MotionPriorSigma != 1.25 {
		t.Errorf("MotionPriorSigma = %v, want 1.25", cfg.MotionPriorSigma)
	}
	if cfg.BackgroundRelevance == nil || *cfg.BackgroundRelevance != 0.4 {
		t.Errorf("BackgroundRelevance = %v, want 0.4", cfg.BackgroundRelevance)
	}
	if cfg.ContextTokens == nil || *cfg.ContextTokens != 8 {
		t.Errorf("ContextTokens = %v, want 8", cfg.ContextTokens)
	}
	if cfg.MatchBiasSigma == nil || *cfg.MatchBiasSigma != 0.45 {
		t.Errorf("MatchBiasSigma = %v, want 0.45", cfg.MatchBiasSigma)
	}
	if cfg.VoteGate == nil || *cfg.VoteGate != 0.55 {
		t.Errorf("VoteGate = %v, want 0.55", cfg.VoteGate)
	}
	if cfg.SizeEMAAlpha == nil || *cfg.SizeEMAAlpha != 0.2 {
		t.Errorf("SizeEMAAlpha = %v, want 0.2", cfg.SizeEMAAlpha)
	}
	if cfg.HeadingEMAAlpha == nil || *cfg.HeadingEMAAlpha != 0.25 {
		t.Errorf("HeadingEMAAlpha = %v, want 0.25", cfg.HeadingEMAAlpha)
	}
	if cfg.MaxHeadingDelta == nil || *cfg.MaxHeadingDelta != 0.35 {
		t.Errorf("MaxHeadingDelta = %v, want 0.35", cfg.MaxHeadingDelta)
	}
	if cfg.ConfidenceThreshold == nil || *cfg.ConfidenceThreshold != 0.3 {
		t.Errorf("ConfidenceThreshold = %v, want 0.3", cfg.ConfidenceThreshold)
	}
	if cfg.MaxLowConfidence == nil || *cfg.MaxLowConfidence != 7 {
		t.Errorf("MaxLowConfidence = %v, want 7", cfg.MaxLowConfidence)
	}
}

func TestGetterDefaults(t *testing.T) {
	// Test that getter methods return expected defaults when pointers are nil
	cfg := &TuningConfig{} // empty config

	if cfg.GetTemplateCapacity() != 128 {
		t.Errorf("GetTemplateCapacity() = %d, want 128", cfg.GetTemplateCapacity())
	}
	if cfg.GetSearchCapacity() != 256 {
		t.Errorf("GetSearchCapacity() = %d, want 256", cfg.GetSearchCapacity())
	}
	if cfg.GetCropMargin() != 2.0 {
		t.Errorf("GetCropMargin() = %f, want 2.0", cfg.GetCropMargin())
	}
	if cfg.GetTemplateMargin() != 0.25 {
		t.Errorf("GetTemplateMargin() = %f, want 0.25", cfg.GetTemplateMargin())
	}
	if cfg.GetFeatureDim() != 32 {
		t.Errorf("GetFeatureDim() = %d, want 32", cfg.GetFeatureDim())
	}
	if cfg.GetNeighbors() != 8 {
		t.Errorf("GetNeighbors() = %d, want 8", cfg.GetNeighbors())
	}
	if cfg.GetAttentionHeads() != 2 {
		t.Errorf("GetAttentionHeads() = %d, want 2", cfg.GetAttentionHeads())
	}
	if cfg.GetParamSeed() != 17 {
		t.Errorf("GetParamSeed() = %d, want 17", cfg.GetParamSeed())
	}
	if cfg.GetMotionPriorSigma() != 1.0 {
		t.Errorf("GetMotionPriorSigma() = %f, want 1.0", cfg.GetMotionPriorSigma())
	}
	if cfg.GetBackgroundRelevance() != 0.35 {
		t.Errorf("GetBackgroundRelevance() = %f, want 0.35", cfg.GetBackgroundRelevance())
	}
	if cfg.GetContextTokens() != 4 {
		t.Errorf("GetContextTokens() = %d, want 4", cfg.GetContextTokens())
	}
	if cfg.GetMatchBiasSigma() != 0.5 {
		t.Errorf("GetMatchBiasSigma() = %f, want 0.5", cfg.GetMatchBiasSigma())
	}
	if cfg.GetVoteGate() != 0.6 {
		t.Errorf("GetVoteGate() = %f, want 0.6", cfg.GetVoteGate())
	}
	if cfg.GetSizeEMAAlpha() != 0.1 {
		t.Errorf("GetSizeEMAAlpha() = %f, want 0.1", cfg.GetSizeEMAAlpha())
	}
	if cfg.GetHeadingEMAAlpha() != 0.3 {
		t.Errorf("GetHeadingEMAAlpha() = %f, want 0.3", cfg.GetHeadingEMAAlpha())
	}
	if cfg.GetMaxHeadingDelta() != 0.3 {
		t.Errorf("GetMaxHeadingDelta() = %f, want 0.3", cfg.GetMaxHeadingDelta())
	}
	if cfg.GetConfidenceThreshold() != 0.35 {
		t.Errorf("GetConfidenceThreshold() = %f, want 0.35", cfg.GetConfidenceThreshold())
	}
	if cfg.GetMaxLowConfidence() != 5 {
		t.Errorf("GetMaxLowConfidence() = %d, want 5", cfg.GetMaxLowConfidence())
	}
}
