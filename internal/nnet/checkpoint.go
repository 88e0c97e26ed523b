package nnet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// maxCheckpointFileSize bounds how much checkpoint JSON will be read into
// memory. Full parameter sets for this model family are a few megabytes.
const maxCheckpointFileSize = 64 * 1024 * 1024 // 64MB

// checkpointTensor is the on-disk form of one parameter matrix, row-major.
type checkpointTensor struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

// checkpointFile is the root of the checkpoint JSON schema.
type checkpointFile struct {
	Params map[string]checkpointTensor `json:"params"`
}

// FileSource serves parameters from a checkpoint JSON file. It implements
// ParamSource.
type FileSource struct {
	params map[string][]float64
}

// LoadCheckpoint reads and validates a checkpoint file. Every tensor must
// carry consistent dimensions; shape compatibility against a concrete model
// is checked later by ParamSet.Load.
func LoadCheckpoint(path string) (*FileSource, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("checkpoint file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat checkpoint file: %w", err)
	}
	if fileInfo.Size() > maxCheckpointFileSize {
		return nil, fmt.Errorf("checkpoint file too large: %d bytes (max %d)", fileInfo.Size(), maxCheckpointFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var file checkpointFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint JSON: %w", err)
	}

	src := &FileSource{params: make(map[string][]float64, len(file.Params))}
	for name, t := range file.Params {
		if t.Rows <= 0 || t.Cols <= 0 || len(t.Data) != t.Rows*t.Cols {
			return nil, fmt.Errorf("checkpoint tensor %q: %d values for declared shape %dx%d",
				name, len(t.Data), t.Rows, t.Cols)
		}
		src.params[name] = t.Data
	}
	return src, nil
}

// Lookup implements ParamSource.
func (f *FileSource) Lookup(name string) ([]float64, bool) {
	data, ok := f.params[name]
	return data, ok
}

// WriteCheckpoint serialises every parameter in ps to path in the checkpoint
// JSON schema, so a parameter set can be round-tripped through a file.
func WriteCheckpoint(path string, ps *ParamSet) error {
	file := checkpointFile{Params: make(map[string]checkpointTensor, len(ps.order))}
	for _, name := range ps.order {
		m := ps.params[name]
		rows, cols := m.Dims()
		data := make([]float64, 0, rows*cols)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				data = append(data, m.At(i, j))
			}
		}
		file.Params[name] = checkpointTensor{Rows: rows, Cols: cols, Data: data}
	}
	out, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	return nil
}
