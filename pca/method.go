package pca

import (
	"fmt"
	"strings"

	"github.com/hupe1980/stepwise/table"
)

// Method selects how step 1 reads the data.
type Method uint8

const (
	// CorrelationDense accumulates cross products of dense rows.
	CorrelationDense Method = iota
	// CorrelationCSR accumulates cross products of CSR rows.
	CorrelationCSR
)

var methodNames = [...]string{
	CorrelationDense: "correlationDense",
	CorrelationCSR:   "correlationCSR",
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
	return 0, fmt.Errorf("pca: unknown method %q", s)
}

// Valid reports whether m is a known method.
func (m Method) Valid() bool { return int(m) < len(methodNames) }

func (m Method) unexpectedLayouts() table.LayoutMask {
	if m == CorrelationCSR {
		return ^table.LayoutCSR.Mask()
	}
	return table.LayoutCSR.Mask()
}
