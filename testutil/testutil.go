package testutil

import (
	"math/rand"
	"sync"

	"github.com/hupe1980/stepwise/table"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Uniform returns a rows×cols table with values in [0, 1).
func (r *RNG) Uniform(rows, cols int) *table.Dense {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := table.MustNew(rows, cols, table.Float)
	for i := range t.Data() {
		t.Data()[i] = r.rand.Float64()
	}
	return t
}

// Gaussian returns a rows×cols table of standard normal values.
func (r *RNG) Gaussian(rows, cols int) *table.Dense {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := table.MustNew(rows, cols, table.Float)
	for i := range t.Data() {
		t.Data()[i] = r.rand.NormFloat64()
	}
	return t
}

// Clustered returns rows drawn round-robin around the given centers with
// Gaussian noise of the given spread, and the center index of every row
// as an n×1 int table.
func (r *RNG) Clustered(centers [][]float64, rows int, spread float64) (*table.Dense, *table.Dense) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cols := len(centers[0])
	data := table.MustNew(rows, cols, table.Float)
	labels := table.MustNew(rows, 1, table.Int)
	for i := range rows {
		k := i % len(centers)
		row := data.RawRow(i)
		for j := range row {
			row[j] = centers[k][j] + r.rand.NormFloat64()*spread
		}
		labels.Put(i, 0, float64(k))
	}
	return data, labels
}

// Linear returns data (rows×len(beta)-1) and responses following
// y = beta[0] + Σ beta[j+1]·x[j] plus Gaussian noise.
func (r *RNG) Linear(rows int, beta []float64, noise float64) (*table.Dense, *table.Dense) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cols := len(beta) - 1
	data := table.MustNew(rows, cols, table.Float)
	y := table.MustNew(rows, 1, table.Float)
	for i := range rows {
		row := data.RawRow(i)
		v := beta[0]
		for j := range row {
			row[j] = r.rand.Float64()*2 - 1
			v += beta[j+1] * row[j]
		}
		y.Put(i, 0, v+r.rand.NormFloat64()*noise)
	}
	return data, y
}

// Counts returns a rows×cols int table of values in [0, max).
func (r *RNG) Counts(rows, cols, max int) *table.Dense {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := table.MustNew(rows, cols, table.Int)
	for i := range t.Data() {
		t.Data()[i] = float64(r.rand.Intn(max))
	}
	return t
}

// Split cuts t into parts partitions of consecutive rows. The last
// partition takes the remainder.
func Split(t *table.Dense, parts int) []table.Table {
	out := make([]table.Table, parts)
	size := t.Rows() / parts
	for p := range parts {
		from, to := p*size, (p+1)*size
		if p == parts-1 {
			to = t.Rows()
		}
		out[p] = t.SliceRows(from, to)
	}
	return out
}

// SplitUneven cuts t at the given row boundaries.
func SplitUneven(t *table.Dense, bounds ...int) []table.Table {
	out := make([]table.Table, 0, len(bounds)+1)
	from := 0
	for _, to := range bounds {
		out = append(out, t.SliceRows(from, to))
		from = to
	}
	return append(out, t.SliceRows(from, t.Rows()))
}
