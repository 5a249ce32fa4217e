package status

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_ZeroValueIsOK(t *testing.T) {
	var s Status
	assert.True(t, s.OK())
	assert.NoError(t, s.Err())
	assert.Equal(t, 0, s.Len())
}

func TestStatus_CollectsAllDetails(t *testing.T) {
	s := New().
		Add(ErrIncorrectNumberOfColumns, "dependentVariables").
		Add(ErrIncorrectOptionalInput, "dataForPruning")

	err := s.Err()
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrIncorrectNumberOfColumns)
	assert.ErrorIs(t, err, ErrIncorrectOptionalInput)
	assert.NotErrorIs(t, err, ErrResultNotReady)

	details := From(err).Details()
	require.Len(t, details, 2)
	assert.Equal(t, "dependentVariables", details[0].Argument)
	assert.Equal(t, "dataForPruning", details[1].Argument)
	assert.Contains(t, err.Error(), "2 errors")
}

func TestStatus_MergeFlattens(t *testing.T) {
	inner := New().Add(ErrNullInputNumericTable, "data")
	wrapped := fmt.Errorf("step1: %w", inner.Err())

	s := New().Add(ErrIncorrectParameter, "nClusters").Merge(wrapped)
	require.Equal(t, 2, s.Len())
	assert.True(t, s.Has(ErrNullInputNumericTable))

	s.Merge(errors.New("boom"))
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, "boom", s.Details()[2].Error())
}

func TestStatus_Addf(t *testing.T) {
	s := New().Addf(ErrIncorrectNumberOfRows, "labels", "expected %d, got %d", 3, 4)
	assert.Equal(t, "labels: incorrect number of rows (expected 3, got 4)", s.Error())
}

func TestFrom_ForeignError(t *testing.T) {
	s := From(errors.New("io"))
	require.Equal(t, 1, s.Len())
	assert.True(t, From(nil).OK())
}

func TestStatus_Check(t *testing.T) {
	s := New()
	assert.True(t, s.Check(true, ErrIncorrectParameter, "a"))
	assert.False(t, s.Check(false, ErrIncorrectParameter, "b"))
	require.Equal(t, 1, s.Len())
	assert.Equal(t, "b", s.Details()[0].Argument)
}
