package naivebayes

import (
	"fmt"
	"math"
	"strings"

	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
)

// Method selects how training reads the data.
type Method uint8

const (
	// DefaultDense trains on dense count tables.
	DefaultDense Method = iota
	// FastCSR trains on CSR count tables.
	FastCSR
)

var methodNames = [...]string{
	DefaultDense: "defaultDense",
	FastCSR:      "fastCSR",
}

func (m Method) String() string {
	if int(m) < len(methodNames) {
		return methodNames[m]
	}
	return fmt.Sprintf("method(%d)", uint8(m))
}

// ParseMethod parses a method name, case-insensitively.
func ParseMethod(s string) (Method, error) {
	for i, name := range methodNames {
		if strings.EqualFold(name, s) {
			return Method(i), nil
		}
	}
	return 0, fmt.Errorf("naivebayes: unknown method %q", s)
}

// Valid reports whether m is a known method.
func (m Method) Valid() bool { return int(m) < len(methodNames) }

func (m Method) unexpectedLayouts() table.LayoutMask {
	if m == FastCSR {
		return ^table.LayoutCSR.Mask()
	}
	return table.LayoutCSR.Mask()
}

// Parameter configures training.
type Parameter struct {
	NClasses int
	// PriorClassEstimates is an optional 1×NClasses table of class
	// priors. Without it the priors are the class frequencies.
	PriorClassEstimates table.Table
	// Alpha is an optional 1×p table of smoothing terms, all ones when nil.
	Alpha table.Table
}

// NewParameter returns the defaults for nClasses.
func NewParameter(nClasses int) Parameter {
	return Parameter{NClasses: nClasses}
}

// check validates the parameter; nFeatures is negative when unknown.
func (p Parameter) check(s *status.Status, m Method, nFeatures int) {
	if !m.Valid() {
		s.Add(status.ErrIncorrectMethod, "method")
	}
	if !s.Check(p.NClasses > 0, status.ErrIncorrectParameter, "nClasses") {
		return
	}
	if p.PriorClassEstimates != nil {
		if table.CheckInto(s, p.PriorClassEstimates, "priorClassEstimates", table.Expect{Rows: 1, Cols: p.NClasses}) {
			for _, v := range p.PriorClassEstimates.Row(0, nil) {
				if v <= 0 || math.IsNaN(v) {
					s.Addf(status.ErrIncorrectParameter, "priorClassEstimates", "non-positive prior %v", v)
					break
				}
			}
		}
	}
	if p.Alpha != nil && nFeatures > 0 {
		if table.CheckInto(s, p.Alpha, "alpha", table.Expect{Rows: 1, Cols: nFeatures}) {
			for _, v := range p.Alpha.Row(0, nil) {
				if v < 0 || math.IsNaN(v) {
					s.Addf(status.ErrIncorrectParameter, "alpha", "negative smoothing %v", v)
					break
				}
			}
		}
	}
}

func (p Parameter) alpha(nFeatures int) []float64 {
	if p.Alpha != nil {
		return p.Alpha.Row(0, nil)
	}
	a := make([]float64, nFeatures)
	for i := range a {
		a[i] = 1
	}
	return a
}
