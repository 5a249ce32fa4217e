package adaboost

import (
	"context"
	"math"
	"sort"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
)

// Defaults of Parameter.
const (
	DefaultAccuracyThreshold = 0.0
	DefaultMaxIterations     = 100
)

// maxAlpha bounds the weight of a weak learner with zero training error.
var maxAlpha = 0.5 * math.Log((1-1e-10)/1e-10)

// Parameter configures training.
type Parameter struct {
	// AccuracyThreshold stops training once the training error of the
	// ensemble is at or below it.
	AccuracyThreshold float64
	// MaxIterations bounds the number of weak learners.
	MaxIterations int
}

// NewParameter returns the defaults.
func NewParameter() Parameter {
	return Parameter{AccuracyThreshold: DefaultAccuracyThreshold, MaxIterations: DefaultMaxIterations}
}

// Check validates the parameter.
func (p Parameter) Check() error {
	s := status.New()
	p.check(s)
	return s.Err()
}

func (p Parameter) check(s *status.Status) {
	s.Check(p.AccuracyThreshold >= 0 && p.AccuracyThreshold < 1, status.ErrIncorrectParameter, "accuracyThreshold")
	s.Check(p.MaxIterations > 0, status.ErrIncorrectParameter, "maxIterations")
}

// Encoding is the label convention of the training set, reused by Predict.
type Encoding uint8

const (
	// ZeroOne labels are 0 and 1.
	ZeroOne Encoding = iota
	// PlusMinusOne labels are -1 and +1.
	PlusMinusOne
)

// Input holds the training data and binary labels.
type Input struct {
	Data table.Table
	// Labels is n×1 in {0, 1} or in {-1, +1}.
	Labels table.Table
}

// Check validates the input and returns the label encoding.
func (in *Input) Check(par Parameter) (Encoding, error) {
	s := status.New()
	par.check(s)
	nRows := 0
	if table.CheckInto(s, in.Data, "data", table.Expect{UnexpectedLayouts: table.PackedLayouts}) {
		nRows = in.Data.Rows()
	}
	enc := ZeroOne
	if table.CheckInto(s, in.Labels, "labels", table.Expect{Rows: nRows, Cols: 1, UnexpectedLayouts: table.PackedLayouts}) {
		var zero, minus bool
		for _, v := range table.Column(in.Labels, 0) {
			switch v {
			case 0:
				zero = true
			case -1:
				minus = true
			case 1:
			default:
				s.Addf(status.ErrIncorrectParameter, "labels", "label %v is not binary", v)
				return enc, s.Err()
			}
		}
		if zero && minus {
			s.Addf(status.ErrIncorrectParameter, "labels", "labels mix 0 and -1")
		}
		if minus {
			enc = PlusMinusOne
		}
	}
	return enc, s.Err()
}

// Stump is a one-feature threshold classifier: it predicts Polarity when
// x[Feature] >= Threshold and -Polarity otherwise.
type Stump struct {
	Feature   int
	Threshold float64
	Polarity  float64
}

func (st Stump) predict(row []float64) float64 {
	if row[st.Feature] >= st.Threshold {
		return st.Polarity
	}
	return -st.Polarity
}

// Model is a weighted ensemble of stumps.
type Model struct {
	// Alpha is 1×nWeakLearners.
	Alpha    *table.Dense
	Stumps   []Stump
	Encoding Encoding
}

// Trainer is the batch training stage.
type Trainer struct {
	Parameter Parameter
	Input     Input
	Allocator *algorithm.Allocator

	enc   Encoding
	model *Model
}

// NewTrainer creates a trainer over data and labels.
func NewTrainer(par Parameter, data, labels table.Table) *Trainer {
	return &Trainer{Parameter: par, Input: Input{Data: data, Labels: labels}}
}

func (t *Trainer) ID() algorithm.StepID { return algorithm.BatchID }

// Model returns the trained model, nil before a successful Compute.
func (t *Trainer) Model() *Model { return t.model }

func (t *Trainer) Compute(ctx context.Context) error {
	return algorithm.Procedure{
		Check: func() error {
			var err error
			t.enc, err = t.Input.Check(t.Parameter)
			return err
		},
		Kernel: t.train,
	}.Run(ctx, t.ID())
}

// Train fits a model on data and labels.
func Train(ctx context.Context, par Parameter, data, labels table.Table) (*Model, error) {
	t := NewTrainer(par, data, labels)
	if err := t.Compute(ctx); err != nil {
		return nil, err
	}
	return t.Model(), nil
}

func (t *Trainer) train(ctx context.Context) error {
	data := table.ToDense(t.Input.Data)
	n := data.Rows()
	y := table.Column(t.Input.Labels, 0)
	for i, v := range y {
		if v == 0 {
			y[i] = -1
		}
	}

	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	orders := sortedByFeature(data)
	score := make([]float64, n)
	wrong := bitset.New(uint(n))

	var (
		alphas []float64
		stumps []Stump
	)
	for range t.Parameter.MaxIterations {
		if err := ctx.Err(); err != nil {
			return err
		}
		stump, err := bestStump(data, orders, y, w)
		if err >= 0.5 {
			break
		}
		alpha := maxAlpha
		if err > 0 {
			alpha = min(0.5*math.Log((1-err)/err), maxAlpha)
		}

		wrong.ClearAll()
		for i := range n {
			h := stump.predict(data.RawRow(i))
			if h != y[i] {
				wrong.Set(uint(i))
			}
			score[i] += alpha * h
		}
		var total float64
		for i := range w {
			if wrong.Test(uint(i)) {
				w[i] *= math.Exp(alpha)
			} else {
				w[i] *= math.Exp(-alpha)
			}
			total += w[i]
		}
		for i := range w {
			w[i] /= total
		}
		alphas = append(alphas, alpha)
		stumps = append(stumps, stump)

		if ensembleError(score, y) <= t.Parameter.AccuracyThreshold {
			break
		}
	}
	if len(stumps) == 0 {
		return status.New().Addf(status.ErrStepFailed, "data", "no stump beats chance").Err()
	}

	a, err := t.Allocator.Dense("alpha", 1, len(alphas), table.Float)
	if err != nil {
		return err
	}
	copy(a.Data(), alphas)
	t.model = &Model{Alpha: a, Stumps: stumps, Encoding: t.enc}
	return nil
}

func ensembleError(score, y []float64) float64 {
	miss := bitset.New(uint(len(y)))
	for i, s := range score {
		if sign(s) != y[i] {
			miss.Set(uint(i))
		}
	}
	return float64(miss.Count()) / float64(len(y))
}

func sign(v float64) float64 {
	if v >= 0 {
		return 1
	}
	return -1
}

// sortedByFeature returns, per feature, the row indices in ascending order
// of that feature.
func sortedByFeature(d *table.Dense) [][]int {
	orders := make([][]int, d.Cols())
	for j := range orders {
		idx := make([]int, d.Rows())
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return d.Get(idx[a], j) < d.Get(idx[b], j) })
		orders[j] = idx
	}
	return orders
}

// bestStump returns the stump with the lowest weighted error.
func bestStump(d *table.Dense, orders [][]int, y, w []float64) (Stump, float64) {
	var positive float64
	for i, v := range y {
		if v > 0 {
			positive += w[i]
		}
	}
	best := Stump{Feature: 0, Threshold: math.Inf(-1), Polarity: 1}
	bestErr := 1 - positive // predict +1 everywhere
	if positive < bestErr {
		best.Polarity, bestErr = -1, positive
	}

	for j, idx := range orders {
		// below: weight of positives and negatives strictly below the threshold.
		var posBelow, negBelow float64
		for k := 0; k < len(idx); k++ {
			i := idx[k]
			if y[i] > 0 {
				posBelow += w[i]
			} else {
				negBelow += w[i]
			}
			if k+1 < len(idx) && d.Get(idx[k+1], j) == d.Get(i, j) {
				continue
			}
			var threshold float64
			if k+1 < len(idx) {
				threshold = (d.Get(i, j) + d.Get(idx[k+1], j)) / 2
			} else {
				threshold = math.Inf(1)
			}
			negAbove := (1 - positive) - negBelow
			// Polarity +1 errs on positives below and negatives above.
			if e := posBelow + negAbove; e < bestErr {
				best, bestErr = Stump{Feature: j, Threshold: threshold, Polarity: 1}, e
			}
			if e := 1 - (posBelow + negAbove); e < bestErr {
				best, bestErr = Stump{Feature: j, Threshold: threshold, Polarity: -1}, e
			}
		}
	}
	return best, math.Max(bestErr, 0)
}

// Predict returns the ensemble labels of the rows of data as an n×1 table,
// in the encoding of the training labels.
func Predict(m *Model, data table.Table) (*table.Dense, error) {
	s := status.New()
	if m == nil || m.Alpha == nil || len(m.Stumps) != m.Alpha.Cols() {
		return nil, s.Add(status.ErrNullInput, "model").Err()
	}
	nFeatures := 0
	for _, st := range m.Stumps {
		nFeatures = max(nFeatures, st.Feature+1)
	}
	if !table.CheckInto(s, data, "data", table.Expect{UnexpectedLayouts: table.PackedLayouts}) {
		return nil, s.Err()
	}
	if data.Cols() < nFeatures {
		return nil, s.Addf(status.ErrIncorrectNumberOfColumns, "data", "model uses %d features, got %d", nFeatures, data.Cols()).Err()
	}
	out := table.MustNew(data.Rows(), 1, table.Int)
	alpha := m.Alpha.Data()
	var row []float64
	for i := range data.Rows() {
		row = data.Row(i, row)
		var score float64
		for k, st := range m.Stumps {
			score += alpha[k] * st.predict(row)
		}
		label := sign(score)
		if label < 0 && m.Encoding == ZeroOne {
			label = 0
		}
		out.Put(i, 0, label)
	}
	return out, nil
}
