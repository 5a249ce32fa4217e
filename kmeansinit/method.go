package kmeansinit

import (
	"fmt"
	"strings"

	"github.com/hupe1980/stepwise/table"
)

// Method selects the initialization kernel. It never changes the step order.
type Method uint8

const (
	// DeterministicDense takes the first NClusters rows.
	DeterministicDense Method = iota
	// RandomDense takes NClusters distinct rows chosen uniformly.
	RandomDense
	// PlusPlusDense is k-means++ over dense data.
	PlusPlusDense
	// PlusPlusCSR is k-means++ over CSR data.
	PlusPlusCSR
	// ParallelPlusDense is k-means|| over dense data.
	ParallelPlusDense
	// ParallelPlusCSR is k-means|| over CSR data.
	ParallelPlusCSR
)

var methodNames = [...]string{
	DeterministicDense: "deterministicDense",
	RandomDense:        "randomDense",
	PlusPlusDense:      "plusPlusDense",
	PlusPlusCSR:        "plusPlusCSR",
	ParallelPlusDense:  "parallelPlusDense",
	ParallelPlusCSR:    "parallelPlusCSR",
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
	return 0, fmt.Errorf("kmeansinit: unknown method %q", s)
}

// Valid reports whether m is a known method.
func (m Method) Valid() bool { return int(m) < len(methodNames) }

// IsPlusPlus reports whether m samples with D² weighting (k-means++ or k-means||).
func (m Method) IsPlusPlus() bool { return m >= PlusPlusDense && m <= ParallelPlusCSR }

// IsParallelPlus reports whether m is a k-means|| variant.
func (m Method) IsParallelPlus() bool { return m == ParallelPlusDense || m == ParallelPlusCSR }

// IsSparse reports whether m reads CSR data.
func (m Method) IsSparse() bool { return m == PlusPlusCSR || m == ParallelPlusCSR }

// unexpectedLayouts returns the data layouts m cannot read.
func (m Method) unexpectedLayouts() table.LayoutMask {
	if m.IsSparse() {
		return ^table.LayoutCSR.Mask()
	}
	return table.LayoutCSR.Mask()
}
