package dtree

import (
	"fmt"
	"strings"

	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
)

// Pruning selects the post-pruning rule.
type Pruning uint8

const (
	// None keeps the fully grown tree.
	None Pruning = iota
	// ReducedErrorPruning collapses subtrees that do not lower the error on
	// a separate pruning set.
	ReducedErrorPruning
)

var pruningNames = [...]string{
	None:                "none",
	ReducedErrorPruning: "reducedErrorPruning",
}

func (p Pruning) String() string {
	if int(p) < len(pruningNames) {
		return pruningNames[p]
	}
	return fmt.Sprintf("pruning(%d)", uint8(p))
}

// ParsePruning parses a pruning name, case-insensitively.
func ParsePruning(s string) (Pruning, error) {
	for i, name := range pruningNames {
		if strings.EqualFold(name, s) {
			return Pruning(i), nil
		}
	}
	return 0, fmt.Errorf("dtree: unknown pruning %q", s)
}

// DefaultMinObservationsInLeaf is the default leaf size bound.
const DefaultMinObservationsInLeaf = 5

// Parameter configures training.
type Parameter struct {
	Pruning Pruning
	// MaxTreeDepth bounds the number of split levels; 0 means unlimited.
	MaxTreeDepth int
	// MinObservationsInLeaf is the smallest number of training rows a leaf
	// may hold.
	MinObservationsInLeaf int
}

// NewParameter returns the defaults: reduced error pruning, unlimited
// depth, leaves of at least five rows.
func NewParameter() Parameter {
	return Parameter{Pruning: ReducedErrorPruning, MinObservationsInLeaf: DefaultMinObservationsInLeaf}
}

// Check validates the parameter.
func (p Parameter) Check() error {
	s := status.New()
	p.check(s)
	return s.Err()
}

func (p Parameter) check(s *status.Status) {
	s.Check(int(p.Pruning) < len(pruningNames), status.ErrIncorrectParameter, "pruning")
	s.Check(p.MaxTreeDepth >= 0, status.ErrIncorrectParameter, "maxTreeDepth")
	s.Check(p.MinObservationsInLeaf > 0, status.ErrIncorrectParameter, "minObservationsInLeaf")
}

// Input holds the training set and, with reduced error pruning, the
// pruning set.
type Input struct {
	Data table.Table
	// DependentVariables is n×1.
	DependentVariables table.Table
	// DataForPruning is required with ReducedErrorPruning and must be nil
	// otherwise.
	DataForPruning table.Table
	// DependentVariablesForPruning pairs with DataForPruning.
	DependentVariablesForPruning table.Table
}

// Check validates the input against par. Pruning inputs are mandatory when
// pruning is enabled and forbidden when it is not.
func (in *Input) Check(par Parameter) error {
	s := status.New()
	par.check(s)

	nFeatures := 0
	if table.CheckInto(s, in.Data, "data", table.Expect{UnexpectedLayouts: table.PackedLayouts}) {
		nFeatures = in.Data.Cols()
		table.CheckInto(s, in.DependentVariables, "dependentVariables", table.Expect{Rows: in.Data.Rows(), Cols: 1})
	} else {
		table.CheckInto(s, in.DependentVariables, "dependentVariables", table.Expect{Cols: 1})
	}

	if par.Pruning != ReducedErrorPruning {
		if !table.IsNil(in.DataForPruning) {
			s.Add(status.ErrIncorrectOptionalInput, "dataForPruning")
		}
		if !table.IsNil(in.DependentVariablesForPruning) {
			s.Add(status.ErrIncorrectOptionalInput, "dependentVariablesForPruning")
		}
		return s.Err()
	}

	if table.IsNil(in.DataForPruning) {
		s.Add(status.ErrMissingOptionalInput, "dataForPruning")
	}
	if table.IsNil(in.DependentVariablesForPruning) {
		s.Add(status.ErrMissingOptionalInput, "dependentVariablesForPruning")
	}
	if !s.OK() {
		return s.Err()
	}
	if table.CheckInto(s, in.DataForPruning, "dataForPruning", table.Expect{Cols: nFeatures}) {
		table.CheckInto(s, in.DependentVariablesForPruning, "dependentVariablesForPruning", table.Expect{
			Rows:              in.DataForPruning.Rows(),
			Cols:              1,
			UnexpectedLayouts: table.PackedLayouts,
		})
	}
	return s.Err()
}
