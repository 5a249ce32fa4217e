package kmeansinit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/archive"
	"github.com/hupe1980/stepwise/resource"
	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
	"github.com/hupe1980/stepwise/testutil"
)

func parallelParameter() Parameter {
	par := NewParameter(5)
	par.OversamplingFactor = 2.0
	par.NRounds = 3
	par.OutputForStep5Required = true
	return par
}

func TestParameter_MaxCandidates(t *testing.T) {
	par := parallelParameter()
	assert.Equal(t, 10, par.SamplesPerRound())
	assert.Equal(t, 31, par.MaxCandidates())

	par = NewParameter(3)
	assert.Equal(t, 2, par.SamplesPerRound())
	assert.Equal(t, 11, par.MaxCandidates())
}

func TestMethod_Parse(t *testing.T) {
	m, err := ParseMethod("PARALLELPLUSCSR")
	require.NoError(t, err)
	assert.Equal(t, ParallelPlusCSR, m)
	assert.True(t, m.IsParallelPlus())
	assert.True(t, m.IsSparse())

	_, err = ParseMethod("lloyd")
	assert.Error(t, err)
	assert.Equal(t, "method(42)", Method(42).String())
}

func TestStep1_Deterministic(t *testing.T) {
	data := testutil.NewRNG(1).Uniform(10, 3)
	par := NewParameter(4)
	par.NRowsTotal = 20
	par.Offset = 8

	step := NewStep1Local(DeterministicDense, par, data)
	require.NoError(t, step.Compute(context.Background()))

	// Global rows 0..3 fall before this partition.
	assert.Equal(t, 0, step.PartialResult().Count())
	assert.Equal(t, 0, step.PartialResult().PartialClusters.Rows())

	par.Offset = 2
	step = NewStep1Local(DeterministicDense, par, data)
	require.NoError(t, step.Compute(context.Background()))
	pr := step.PartialResult()
	require.Equal(t, 2, pr.Count())
	assert.Equal(t, data.RawRow(0), pr.PartialClusters.RawRow(0))
	assert.Equal(t, data.RawRow(1), pr.PartialClusters.RawRow(1))
}

func TestStep1_AllocateIsIdempotent(t *testing.T) {
	r := &Step1PartialResult{}
	require.NoError(t, r.Allocate(nil, NewParameter(1), DeterministicDense, nil))
	first := r.PartialClustersNumber
	require.NoError(t, r.Allocate(nil, NewParameter(1), DeterministicDense, nil))
	assert.Same(t, first, r.PartialClustersNumber)
}

func TestStep1_CheckCollectsEveryError(t *testing.T) {
	csr := table.CSRFromDense(testutil.NewRNG(1).Uniform(4, 2))
	par := NewParameter(0)
	par.Offset = -1

	err := NewStep1Local(DeterministicDense, par, csr).Compute(context.Background())
	require.Error(t, err)

	st := status.From(err)
	assert.True(t, st.Has(status.ErrIncorrectTypeOfInputNumericTable))
	assert.True(t, st.Has(status.ErrIncorrectParameter))

	id, phase, ok := algorithm.FailedStep(err)
	require.True(t, ok)
	assert.Equal(t, algorithm.Step1Local, id)
	assert.Equal(t, algorithm.PhaseCheck, phase)
}

func TestStep2_ParallelPlusSlots(t *testing.T) {
	data := testutil.NewRNG(2).Uniform(20, 2)
	par := parallelParameter()

	step := NewStep2Local(ParallelPlusDense, par, data)
	step.Input.InputOfStep2 = data.SliceRows(0, 1)
	require.NoError(t, step.Compute(context.Background()))

	pr := step.PartialResult()
	local := pr.LocalData
	require.Len(t, local.Slots(), 4)
	assert.Equal(t, 20, local.ClosestClusterDistance.Rows())
	assert.Equal(t, 31, local.CandidateRating.Rows())
	assert.Equal(t, 31, pr.OutputOfStep2ForStep5.Rows())
	assert.Equal(t, 20.0, local.CandidateRating.Get(0, 0))
	assert.Equal(t, 1.0, local.NumberOfClusters.Get(0, 0))

	var sum float64
	for _, d := range local.ClosestClusterDistance.Data() {
		sum += d
	}
	assert.InDelta(t, sum, pr.OutputOfStep2ForStep3.Get(0, 0), 1e-12)
	assert.Equal(t, 0.0, local.ClosestClusterDistance.Get(0, 0))
}

func TestStep2_PlusPlusHasThreeSlots(t *testing.T) {
	data := testutil.NewRNG(3).Uniform(8, 2)
	step := NewStep2Local(PlusPlusDense, NewParameter(3), data)
	step.Input.InputOfStep2 = data.SliceRows(0, 1)
	require.NoError(t, step.Compute(context.Background()))

	pr := step.PartialResult()
	assert.Len(t, pr.LocalData.Slots(), 3)
	assert.Nil(t, pr.LocalData.CandidateRating)
	assert.Nil(t, pr.OutputOfStep2ForStep5)
}

func TestStep2_LaterIterationKeepsLocalData(t *testing.T) {
	data := testutil.NewRNG(4).Uniform(12, 2)
	par := parallelParameter()
	par.OutputForStep5Required = false

	step := NewStep2Local(ParallelPlusDense, par, data)
	step.Input.InputOfStep2 = data.SliceRows(0, 1)
	require.NoError(t, step.Compute(context.Background()))
	local := step.PartialResult().LocalData
	slots := local.Slots()
	firstSum := step.PartialResult().OutputOfStep2ForStep3.Get(0, 0)

	par.FirstIteration = false
	step.Parameter = par
	step.Input.InputOfStep2 = data.SliceRows(5, 7)
	require.NoError(t, step.Compute(context.Background()))

	pr := step.PartialResult()
	assert.Same(t, local, pr.LocalData)
	for i, s := range pr.LocalData.Slots() {
		assert.Same(t, slots[i], s)
	}
	assert.Equal(t, 3.0, local.NumberOfClusters.Get(0, 0))
	assert.LessOrEqual(t, pr.OutputOfStep2ForStep3.Get(0, 0), firstSum)
	assert.Equal(t, 0.0, local.ClosestClusterDistance.Get(5, 0))
	assert.Equal(t, 1.0, local.ClosestCluster.Get(5, 0))
	assert.Equal(t, 2.0, local.ClosestCluster.Get(6, 0))

	var rated float64
	for _, v := range local.CandidateRating.Data() {
		rated += v
	}
	assert.Equal(t, 12.0, rated)
}

func TestStep2_LaterIterationNeedsLocalData(t *testing.T) {
	data := testutil.NewRNG(5).Uniform(6, 2)
	par := NewParameter(2)
	par.FirstIteration = false

	step := NewStep2Local(PlusPlusDense, par, data)
	step.Input.InputOfStep2 = data.SliceRows(0, 1)
	err := step.Compute(context.Background())
	assert.ErrorIs(t, err, status.ErrNullInput)
}

func TestStep2_ZeroClustersFailsAllocation(t *testing.T) {
	par := parallelParameter()
	par.NClusters = 0
	r := &Step2PartialResult{}

	err := r.Allocate(&Step2Input{}, par, ParallelPlusDense, nil)
	assert.ErrorIs(t, err, status.ErrIncorrectParameter)
	assert.Nil(t, r.LocalData)
}

func TestStep3_AllocateIsNoop(t *testing.T) {
	rc := resource.NewController(resource.Config{})
	a := algorithm.NewAllocator(rc)
	r := &Step3PartialResult{}

	require.NoError(t, r.Allocate(&Step3Input{}, NewParameter(2), PlusPlusDense, a))
	assert.Zero(t, a.Count())
	assert.Nil(t, r.OutputOfStep3ForStep4)
}

func TestStep3_DrawsPerRound(t *testing.T) {
	sums := map[int]table.Table{
		0: table.Scalar(0, table.Float),
		1: table.Scalar(3, table.Float),
		2: table.Scalar(1, table.Float),
	}
	par := parallelParameter()

	step := NewStep3Master(ParallelPlusDense, par, sums, nil)
	require.NoError(t, step.Compute(context.Background()))
	pr := step.PartialResult()

	_, ok := pr.ForNode(0)
	assert.False(t, ok, "a node without distance is never drawn")

	draws := 0
	for _, node := range pr.Nodes() {
		res, _ := pr.ForNode(node)
		require.Equal(t, 1, res.Rows())
		for _, r := range res.Data() {
			assert.GreaterOrEqual(t, r, 0.0)
			assert.Less(t, r, sums[node].Row(0, nil)[0])
		}
		draws += res.Cols()
	}
	assert.Equal(t, par.SamplesPerRound(), draws)
	assert.NotEmpty(t, pr.RNGState)

	// The next round continues the same sequence.
	par.FirstIteration = false
	next := NewStep3Master(ParallelPlusDense, par, sums, pr.RNGState)
	require.NoError(t, next.Compute(context.Background()))
	assert.NotEqual(t, pr.RNGState, next.PartialResult().RNGState)

	again := NewStep3Master(ParallelPlusDense, par, sums, pr.RNGState)
	require.NoError(t, again.Compute(context.Background()))
	assert.Equal(t, next.PartialResult().OutputOfStep3ForStep4, again.PartialResult().OutputOfStep3ForStep4)
}

func TestStep3_PlusPlusDrawsOnce(t *testing.T) {
	sums := map[int]table.Table{0: table.Scalar(2, table.Float), 1: table.Scalar(2, table.Float)}
	step := NewStep3Master(PlusPlusDense, NewParameter(4), sums, nil)
	require.NoError(t, step.Compute(context.Background()))

	nodes := step.PartialResult().Nodes()
	require.Len(t, nodes, 1)
	res, _ := step.PartialResult().ForNode(nodes[0])
	assert.Equal(t, 1, res.Cols())
}

func TestStep4_OutputShapeFollowsTwoInputs(t *testing.T) {
	data := testutil.NewRNG(6).Uniform(10, 3)
	step2 := NewStep2Local(PlusPlusDense, NewParameter(3), data)
	step2.Input.InputOfStep2 = data.SliceRows(0, 1)
	require.NoError(t, step2.Compute(context.Background()))
	local := step2.PartialResult().LocalData

	residuals, err := table.FromRows([][]float64{{0, 0, 0, 0}})
	require.NoError(t, err)
	step := NewStep4Local(PlusPlusDense, NewParameter(3), data, local, residuals)
	require.NoError(t, step.Compute(context.Background()))

	out := step.PartialResult().OutputOfStep4
	assert.Equal(t, 4, out.Rows())
	assert.Equal(t, 3, out.Cols())
	// Residual 0 resolves to the first row with positive distance.
	for i := range 4 {
		assert.Equal(t, data.RawRow(1), out.RawRow(i))
	}
}

func TestStep4_RejectsWrongResidualShape(t *testing.T) {
	data := testutil.NewRNG(7).Uniform(4, 2)
	residuals := table.MustNew(2, 1, table.Float)
	err := NewStep4Local(PlusPlusDense, NewParameter(2), data, nil, residuals).Compute(context.Background())

	st := status.From(err)
	assert.True(t, st.Has(status.ErrIncorrectNumberOfRows))
	assert.True(t, st.Has(status.ErrNullInput))
}

func TestStep5_FinalizeBeforeCompute(t *testing.T) {
	step := NewStep5Master(ParallelPlusDense, parallelParameter(), nil, nil)
	err := step.Finalize(context.Background())
	assert.ErrorIs(t, err, status.ErrResultNotReady)

	step.SetPartialResult(&Step5PartialResult{Weights: table.MustNew(31, 1, table.Float)})
	err = step.Finalize(context.Background())
	assert.ErrorIs(t, err, status.ErrResultNotReady)
	assert.Nil(t, step.Result())
}

func TestStep5_AllocatesByMaxCandidates(t *testing.T) {
	par := parallelParameter()
	candidates := []table.Table{testutil.NewRNG(8).Uniform(6, 2)}
	ratings := []table.Table{table.MustNew(31, 1, table.Int), table.MustNew(31, 1, table.Int)}
	for _, r := range ratings {
		r.(*table.Dense).Fill(1)
	}

	step := NewStep5Master(ParallelPlusDense, par, candidates, ratings)
	require.NoError(t, step.Compute(context.Background()))
	pr := step.PartialResult()
	assert.Equal(t, 31, pr.Candidates.Rows())
	assert.Equal(t, 31, pr.Weights.Rows())
	assert.Equal(t, 6, pr.NCandidates)
	assert.Equal(t, 2.0, pr.Weights.Get(0, 0))

	require.NoError(t, step.Finalize(context.Background()))
	c := step.Result().Centroids
	assert.Equal(t, 5, c.Rows())
	assert.Equal(t, 2, c.Cols())
}

func TestStep5_TooFewCandidates(t *testing.T) {
	par := parallelParameter()
	candidates := []table.Table{testutil.NewRNG(9).Uniform(3, 2)}
	ratings := []table.Table{table.MustNew(31, 1, table.Int)}

	step := NewStep5Master(ParallelPlusDense, par, candidates, ratings)
	require.NoError(t, step.Compute(context.Background()))
	assert.ErrorIs(t, step.Finalize(context.Background()), status.ErrInconsistentPartialResults)
}

func TestArchive_RoundTrip(t *testing.T) {
	reg := archive.NewRegistry()
	require.NoError(t, Register(reg))
	reg.Seal()

	data := testutil.NewRNG(10).Uniform(9, 2)
	par := parallelParameter()
	step := NewStep2Local(ParallelPlusDense, par, data)
	step.Input.InputOfStep2 = data.SliceRows(0, 2)
	require.NoError(t, step.Compute(context.Background()))

	for _, c := range []archive.Compression{archive.CompressionNone, archive.CompressionZlib, archive.CompressionLZ4, archive.CompressionZstd} {
		raw, err := archive.Encode(step.PartialResult(), archive.WithCompression(c))
		require.NoError(t, err)

		obj, err := reg.Decode(raw)
		require.NoError(t, err)
		got, ok := obj.(*Step2PartialResult)
		require.True(t, ok)
		assert.True(t, table.Equal(step.PartialResult().OutputOfStep2ForStep5, got.OutputOfStep2ForStep5), c.String())
		require.NotNil(t, got.LocalData)
		for i, s := range step.PartialResult().LocalData.Slots() {
			assert.True(t, table.Equal(s, got.LocalData.Slots()[i]))
		}
	}

	draw := &Step3PartialResult{
		OutputOfStep3ForStep4: map[int]*table.Dense{2: table.MustNew(1, 3, table.Float), 5: table.MustNew(1, 1, table.Float)},
		RNGState:              []byte{1, 2, 3},
	}
	raw, err := archive.Encode(draw)
	require.NoError(t, err)
	restored := &Step3PartialResult{}
	require.NoError(t, archive.DecodeInto(raw, restored))
	assert.Equal(t, []int{2, 5}, restored.Nodes())
	assert.Equal(t, draw.RNGState, restored.RNGState)

	_, err = reg.Decode(raw[:len(raw)-1])
	assert.Error(t, err)
}
