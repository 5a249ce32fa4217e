package kmeansinit

import (
	"math"

	"github.com/hupe1980/stepwise/status"
)

// Defaults from the k-means|| formulation.
const (
	DefaultOversamplingFactor = 0.5
	DefaultNRounds            = 5
)

// Parameter holds the settings shared by every step. The round state
// (FirstIteration, OutputForStep5Required) is part of the value so the
// driver advances the protocol by passing a new Parameter, not by mutating
// hidden state.
type Parameter struct {
	NClusters  int
	NRowsTotal int
	// Offset is the global index of the first row of the local partition.
	Offset             int
	OversamplingFactor float64
	NRounds            int
	Seed               uint64
	// FirstIteration makes step 2 allocate its local data and step 3 seed
	// its generator.
	FirstIteration bool
	// OutputForStep5Required makes step 2 emit candidate ratings.
	OutputForStep5Required bool
}

// NewParameter returns the defaults for nClusters.
func NewParameter(nClusters int) Parameter {
	return Parameter{
		NClusters:          nClusters,
		OversamplingFactor: DefaultOversamplingFactor,
		NRounds:            DefaultNRounds,
		FirstIteration:     true,
	}
}

// SamplesPerRound is ⌈OversamplingFactor × NClusters⌉, the number of
// candidates k-means|| draws per round.
func (p Parameter) SamplesPerRound() int {
	return int(math.Ceil(p.OversamplingFactor * float64(p.NClusters)))
}

// MaxCandidates is ⌈OversamplingFactor × NClusters⌉ × NRounds + 1, the
// capacity of every candidate-indexed table.
func (p Parameter) MaxCandidates() int {
	return p.SamplesPerRound()*p.NRounds + 1
}

// checkMaxCandidates reports parameters for which MaxCandidates is meaningless.
func (p Parameter) checkMaxCandidates(s *status.Status) bool {
	ok := s.Check(p.NClusters > 0, status.ErrIncorrectParameter, "nClusters")
	ok = s.Check(p.OversamplingFactor > 0 && !math.IsInf(p.OversamplingFactor, 0), status.ErrIncorrectParameter, "oversamplingFactor") && ok
	ok = s.Check(p.NRounds > 0, status.ErrIncorrectParameter, "nRounds") && ok
	return ok
}

// check validates the parameter for method m. Local steps also pass the
// number of rows of their partition (negative when not applicable).
func (p Parameter) check(s *status.Status, m Method, nRows int) {
	if !m.Valid() {
		s.Add(status.ErrIncorrectMethod, "method")
		return
	}
	s.Check(p.NClusters > 0, status.ErrIncorrectParameter, "nClusters")
	if m.IsParallelPlus() {
		p.checkMaxCandidates(s)
	}
	if nRows < 0 {
		return
	}
	nRowsTotal := p.NRowsTotal
	if nRowsTotal == 0 {
		nRowsTotal = nRows
	}
	s.Check(p.Offset >= 0, status.ErrIncorrectParameter, "offset")
	s.Check(p.Offset+nRows <= nRowsTotal, status.ErrIncorrectParameter, "nRowsTotal")
	if !m.IsPlusPlus() {
		s.Check(p.NClusters <= nRowsTotal, status.ErrIncorrectParameter, "nClusters")
	}
}

func (p Parameter) rowsTotal(nRows int) int {
	if p.NRowsTotal == 0 {
		return nRows
	}
	return p.NRowsTotal
}
