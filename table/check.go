package table

import "github.com/hupe1980/stepwise/status"

// Expect describes what Check requires of a table. Zero Rows or Cols mean
// "any count".
type Expect struct {
	Rows              int
	Cols              int
	UnexpectedLayouts LayoutMask
	AllowEmpty        bool
}

// Check validates t against e and returns a *status.Status error listing
// every violation under the given argument name. A nil table is reported
// alone since nothing else can be inspected.
func Check(t Table, name string, e Expect) error {
	s := status.New()
	CheckInto(s, t, name, e)
	return s.Err()
}

// CheckInto is Check that records into an existing status and reports whether
// the table passed.
func CheckInto(s *status.Status, t Table, name string, e Expect) bool {
	if t == nil || isNilTable(t) {
		s.Add(status.ErrNullInputNumericTable, name)
		return false
	}
	before := s.Len()
	if e.UnexpectedLayouts.Has(t.Layout()) {
		s.Addf(status.ErrIncorrectTypeOfInputNumericTable, name, "layout %s", t.Layout())
	}
	if e.Cols > 0 && t.Cols() != e.Cols {
		s.Addf(status.ErrIncorrectNumberOfColumns, name, "expected %d, got %d", e.Cols, t.Cols())
	}
	if !e.AllowEmpty && t.Rows() == 0 {
		s.Add(status.ErrEmptyInputNumericTable, name)
	} else if e.Rows > 0 && t.Rows() != e.Rows {
		s.Addf(status.ErrIncorrectNumberOfRows, name, "expected %d, got %d", e.Rows, t.Rows())
	}
	return s.Len() == before
}

// IsNil reports whether t is nil, including typed nil pointers.
func IsNil(t Table) bool { return t == nil || isNilTable(t) }

func isNilTable(t Table) bool {
	switch v := t.(type) {
	case *Dense:
		return v == nil
	case *Packed:
		return v == nil
	case *CSR:
		return v == nil
	}
	return false
}
