package pca

import "github.com/hupe1980/stepwise/status"

// Parameter configures the finalizing step.
type Parameter struct {
	// NComponents is the number of leading components kept; 0 keeps all.
	NComponents int
	// IsDeterministic flips every eigenvector so that its largest-magnitude
	// entry is positive.
	IsDeterministic bool
}

func (p Parameter) check(s *status.Status, m Method, nFeatures int) {
	if !m.Valid() {
		s.Add(status.ErrIncorrectMethod, "method")
	}
	s.Check(p.NComponents >= 0, status.ErrIncorrectParameter, "nComponents")
	if nFeatures > 0 {
		s.Check(p.NComponents <= nFeatures, status.ErrIncorrectParameter, "nComponents")
	}
}

func (p Parameter) components(nFeatures int) int {
	if p.NComponents == 0 {
		return nFeatures
	}
	return p.NComponents
}
