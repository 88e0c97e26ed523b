package nnet

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/pointtrack/internal/sot"
)

// ParamSource supplies named flat parameter tensors, typically from a
// checkpoint file. Lookup returns the row-major data for name and whether
// the source holds it.
type ParamSource interface {
	Lookup(name string) ([]float64, bool)
}

// ParamSet is the registry of every parameter matrix a model owns. Layers
// register matrices at construction time; the set hands back deterministic
// seeded initial values so inference is reproducible before any checkpoint
// is loaded, and Load overwrites them in place from a ParamSource with shape
// checking.
type ParamSet struct {
	seed   uint64
	order  []string
	params map[string]*mat.Dense
}

// NewParamSet returns an empty registry. The seed feeds the per-name
// deterministic initialisers; two sets built with the same seed and the same
// registration calls hold identical values.
func NewParamSet(seed uint64) *ParamSet {
	return &ParamSet{
		seed:   seed,
		params: make(map[string]*mat.Dense),
	}
}

// register stores a freshly initialised matrix under name, or returns the
// existing one when the same name is registered again with matching
// dimensions. Re-registering a name with a different shape is a programming
// error and panics, matching gonum's own shape-misuse convention.
func (ps *ParamSet) register(name string, rows, cols int, fill func(rng *rand.Rand) float64) *mat.Dense {
	if m, ok := ps.params[name]; ok {
		r, c := m.Dims()
		if r != rows || c != cols {
			panic(fmt.Sprintf("nnet: parameter %q re-registered as %dx%d, was %dx%d", name, rows, cols, r, c))
		}
		return m
	}
	rng := rand.New(rand.NewSource(ps.nameSeed(name)))
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = fill(rng)
	}
	m := mat.NewDense(rows, cols, data)
	ps.params[name] = m
	ps.order = append(ps.order, name)
	return m
}

func (ps *ParamSet) nameSeed(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(h.Sum64() ^ ps.seed)
}

// Xavier registers a rows×cols matrix initialised from the uniform Xavier
// distribution for its fan-in/fan-out.
func (ps *ParamSet) Xavier(name string, rows, cols int) *mat.Dense {
	limit := math.Sqrt(6.0 / float64(rows+cols))
	return ps.register(name, rows, cols, func(rng *rand.Rand) float64 {
		return (rng.Float64()*2 - 1) * limit
	})
}

// Zeros registers a zero-initialised matrix (bias vectors, projections that
// should start inert).
func (ps *ParamSet) Zeros(name string, rows, cols int) *mat.Dense {
	return ps.register(name, rows, cols, func(*rand.Rand) float64 { return 0 })
}

// Ones registers a one-initialised matrix (layer-norm gains).
func (ps *ParamSet) Ones(name string, rows, cols int) *mat.Dense {
	return ps.register(name, rows, cols, func(*rand.Rand) float64 { return 1 })
}

// Get returns the registered matrix for name.
func (ps *ParamSet) Get(name string) (*mat.Dense, bool) {
	m, ok := ps.params[name]
	return m, ok
}

// Names returns every registered parameter name in sorted order.
func (ps *ParamSet) Names() []string {
	out := make([]string, len(ps.order))
	copy(out, ps.order)
	sort.Strings(out)
	return out
}

// Load overwrites registered parameters from src. Every tensor the source
// supplies must match the registered shape exactly; a length mismatch is a
// ShapeError. In strict mode a parameter missing from the source is an
// error; otherwise the deterministic initial value stands.
func (ps *ParamSet) Load(src ParamSource, strict bool) error {
	for _, name := range ps.order {
		m := ps.params[name]
		rows, cols := m.Dims()
		data, ok := src.Lookup(name)
		if !ok {
			if strict {
				return fmt.Errorf("nnet: checkpoint missing parameter %q", name)
			}
			continue
		}
		if len(data) != rows*cols {
			return &sot.ShapeError{
				Context: "parameter " + name,
				Got:     [2]int{len(data), 1},
				Want:    [2]int{rows * cols, 1},
			}
		}
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				m.Set(i, j, data[i*cols+j])
			}
		}
	}
	return nil
}

// MapSource is the in-memory ParamSource used by tests and by callers that
// assemble parameters programmatically.
type MapSource map[string][]float64

// Lookup implements ParamSource.
func (m MapSource) Lookup(name string) ([]float64, bool) {
	data, ok := m[name]
	return data, ok
}
