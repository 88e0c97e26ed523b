package kitti

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/pointtrack/internal/sot"
	"github.com/banshee-data/pointtrack/internal/sot/pipeline"
)

// DefaultCategory is the label type tracked when none is configured.
const DefaultCategory = "Car"

// pointRecordBytes is one velodyne point record: four little-endian
// float32 values (x, y, z, intensity).
const pointRecordBytes = 16

// labelFields is the column count of one tracking label line: frame,
// track, type, truncated, occluded, alpha, four 2D bbox values, 3D height,
// width, length, x, y, z, rotation_y.
const labelFields = 17

// Config selects what to read from one KITTI tracking split.
type Config struct {
	// Root is the split directory holding label_02/, calib/ and velodyne/.
	Root string

	// Category filters labels by type; empty means DefaultCategory.
	Category string
}

// Source enumerates single-object tracking sequences over a KITTI split.
// One sequence is a maximal run of consecutive labelled frames of one
// (scene, track) pair.
type Source struct {
	seqs []*Sequence
}

// New indexes the split's label and calibration files. Point clouds load
// lazily, one scan per Cloud call; New itself touches no velodyne data.
func New(cfg Config) (*Source, error) {
	category := cfg.Category
	if category == "" {
		category = DefaultCategory
	}

	labelDir := filepath.Join(cfg.Root, "label_02")
	entries, err := os.ReadDir(labelDir)
	if err != nil {
		return nil, fmt.Errorf("kitti: read label directory: %w", err)
	}

	src := &Source{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".txt") {
			continue
		}
		scene, err := strconv.Atoi(strings.TrimSuffix(name, ".txt"))
		if err != nil {
			continue
		}

		cal, err := loadCalib(filepath.Join(cfg.Root, "calib", fmt.Sprintf("%04d.txt", scene)))
		if err != nil {
			return nil, err
		}
		byTrack, err := parseLabels(filepath.Join(labelDir, name), category, cal)
		if err != nil {
			return nil, err
		}

		tracks := make([]int, 0, len(byTrack))
		for track := range byTrack {
			tracks = append(tracks, track)
		}
		sort.Ints(tracks)
		for _, track := range tracks {
			frames := byTrack[track]
			sort.Slice(frames, func(i, j int) bool { return frames[i].frame < frames[j].frame })
			for _, span := range splitSpans(frames) {
				src.seqs = append(src.seqs, &Sequence{
					id:      fmt.Sprintf("%04d-%03d-%04d", scene, track, span[0].frame),
					root:    cfg.Root,
					scene:   scene,
					entries: span,
				})
			}
		}
	}
	return src, nil
}

// Sequences returns the indexed sequence count.
func (s *Source) Sequences() int { return len(s.seqs) }

// Open returns sequence i. Sequences only read files, so concurrent opens
// and reads are safe.
func (s *Source) Open(i int) (pipeline.Sequence, error) {
	if i < 0 || i >= len(s.seqs) {
		return nil, fmt.Errorf("kitti: sequence %d out of range [0,%d)", i, len(s.seqs))
	}
	return s.seqs[i], nil
}

// Sequence is one object's consecutive-frame span within a scene. Ground
// truth boxes are retained for every frame so downstream evaluation can
// join them against predictions; the tracker itself only ever consumes
// frame 0.
type Sequence struct {
	id      string
	root    string
	scene   int
	entries []frameEntry
}

type frameEntry struct {
	frame int
	box   sot.Box
}

// ID identifies the sequence as scene-track-firstframe.
func (s *Sequence) ID() string { return s.id }

// Len returns the span's frame count.
func (s *Sequence) Len() int { return len(s.entries) }

// InitialBox returns the labelled box of the span's first frame, in the
// velodyne frame.
func (s *Sequence) InitialBox() sot.Box { return s.entries[0].box }

// GroundTruth returns the labelled box for frame i of the span.
func (s *Sequence) GroundTruth(i int) sot.Box { return s.entries[i].box }

// Cloud reads the velodyne scan backing frame i. A missing scan file
// yields an empty cloud: the benchmark has sporadic dropouts and the
// tracker treats those as occlusion, not failure.
func (s *Sequence) Cloud(i int) ([]sot.Point, error) {
	if i < 0 || i >= len(s.entries) {
		return nil, fmt.Errorf("kitti: frame %d out of range [0,%d)", i, len(s.entries))
	}
	path := filepath.Join(s.root, "velodyne",
		fmt.Sprintf("%04d", s.scene), fmt.Sprintf("%06d.bin", s.entries[i].frame))
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kitti: read scan: %w", err)
	}
	return parseScan(path, data)
}

// splitSpans cuts a frame-sorted track into maximal consecutive runs.
func splitSpans(frames []frameEntry) [][]frameEntry {
	var spans [][]frameEntry
	start := 0
	for i := 1; i <= len(frames); i++ {
		if i == len(frames) || frames[i].frame != frames[i-1].frame+1 {
			spans = append(spans, frames[start:i])
			start = i
		}
	}
	return spans
}

// calib is one scene's velodyne→camera rigid transform as published in the
// calibration file. Labels go the other way, so the transform is applied
// inverted: p_velo = Rᵀ(p_cam − t).
type calib struct {
	r [9]float64 // row-major rotation
	t [3]float64
}

func (c calib) toVelo(x, y, z float64) (float64, float64, float64) {
	dx, dy, dz := x-c.t[0], y-c.t[1], z-c.t[2]
	return c.r[0]*dx + c.r[3]*dy + c.r[6]*dz,
		c.r[1]*dx + c.r[4]*dy + c.r[7]*dz,
		c.r[2]*dx + c.r[5]*dy + c.r[8]*dz
}

// loadCalib extracts the Tr_velo_cam row-major 3x4 matrix from a scene
// calibration file. Other calibration keys (camera projections, IMU) are
// irrelevant here and skipped.
func loadCalib(path string) (calib, error) {
	f, err := os.Open(path)
	if err != nil {
		return calib{}, fmt.Errorf("kitti: read calibration: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		key := strings.TrimSuffix(fields[0], ":")
		if key != "Tr_velo_cam" && key != "Tr_velo_to_cam" {
			continue
		}
		if len(fields) != 13 {
			return calib{}, fmt.Errorf("kitti: %s: %s carries %d values, want 12", path, key, len(fields)-1)
		}
		var c calib
		for i := 0; i < 12; i++ {
			v, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return calib{}, fmt.Errorf("kitti: %s: %s value %d: %w", path, key, i+1, err)
			}
			row, col := i/4, i%4
			if col == 3 {
				c.t[row] = v
			} else {
				c.r[row*3+col] = v
			}
		}
		return c, nil
	}
	if err := scanner.Err(); err != nil {
		return calib{}, fmt.Errorf("kitti: read calibration: %w", err)
	}
	return calib{}, fmt.Errorf("kitti: %s: no Tr_velo_cam entry", path)
}

// parseLabels reads one scene's label file into per-track frame entries,
// keeping only the requested category. Camera-frame label positions name
// the bottom-face centre; the returned boxes are velodyne-frame volumetric
// centres with the heading converted from camera rotation_y.
func parseLabels(path, category string, cal calib) (map[int][]frameEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("kitti: read labels: %w", err)
	}
	defer f.Close()

	byTrack := make(map[int][]frameEntry)
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < labelFields {
			return nil, fmt.Errorf("kitti: %s:%d: %d fields, want %d", path, lineNo, len(fields), labelFields)
		}

		frame, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("kitti: %s:%d: frame: %w", path, lineNo, err)
		}
		track, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("kitti: %s:%d: track: %w", path, lineNo, err)
		}
		if track < 0 || fields[2] != category {
			continue
		}

		var parseErr error
		fv := func(i int) float64 {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil && parseErr == nil {
				parseErr = fmt.Errorf("kitti: %s:%d: field %d: %w", path, lineNo, i+1, err)
			}
			return v
		}
		h, w, l := fv(10), fv(11), fv(12)
		x, y, z := fv(13), fv(14), fv(15)
		ry := fv(16)
		if parseErr != nil {
			return nil, parseErr
		}

		vx, vy, vz := cal.toVelo(x, y, z)
		byTrack[track] = append(byTrack[track], frameEntry{
			frame: frame,
			box: sot.Box{
				CenterX: vx,
				CenterY: vy,
				// Label positions name the bottom face; lift to the
				// volumetric centre.
				CenterZ:    vz + h/2,
				Length:     l,
				Width:      w,
				Height:     h,
				HeadingRad: sot.WrapHeading(-(ry + math.Pi/2)),
			},
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("kitti: read labels: %w", err)
	}
	return byTrack, nil
}

// parseScan decodes a raw velodyne file: packed little-endian float32
// records of x, y, z, intensity.
func parseScan(path string, data []byte) ([]sot.Point, error) {
	if len(data)%pointRecordBytes != 0 {
		return nil, fmt.Errorf("kitti: %s: %d bytes is not a whole number of %d-byte point records",
			path, len(data), pointRecordBytes)
	}
	pts := make([]sot.Point, 0, len(data)/pointRecordBytes)
	for off := 0; off < len(data); off += pointRecordBytes {
		pts = append(pts, sot.Point{
			X:         float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))),
			Y:         float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off+4:]))),
			Z:         float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off+8:]))),
			Intensity: float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off+12:]))),
		})
	}
	return pts, nil
}
