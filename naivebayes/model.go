package naivebayes

import (
	"context"
	"math"

	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/archive"
	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
)

// Archive tags of the naive Bayes types.
const (
	TagPartialModel archive.Tag = 0x4e420011
	TagModel        archive.Tag = 0x4e420001
)

// Register adds every naive Bayes type to reg.
func Register(reg *archive.Registry) error {
	return reg.RegisterAll(map[archive.Tag]archive.Factory{
		TagPartialModel: func() archive.Serializable { return &PartialModel{} },
		TagModel:        func() archive.Serializable { return &Model{} },
	})
}

func (r *PartialModel) ArchiveTag() archive.Tag { return TagPartialModel }

func (r *PartialModel) MarshalArchive(w *archive.Writer) {
	w.Table(r.ClassSize)
	w.Table(r.ClassGroupSum)
}

func (r *PartialModel) UnmarshalArchive(rd *archive.Reader) {
	r.ClassSize = rd.Dense()
	r.ClassGroupSum = rd.Dense()
}

// Model is a trained multinomial naive Bayes model.
type Model struct {
	// LogP is NClasses×1: log class priors.
	LogP *table.Dense
	// LogTheta is NClasses×p: log feature probabilities per class.
	LogTheta *table.Dense
}

func (m *Model) ArchiveTag() archive.Tag { return TagModel }

func (m *Model) MarshalArchive(w *archive.Writer) {
	w.Table(m.LogP)
	w.Table(m.LogTheta)
}

func (m *Model) UnmarshalArchive(rd *archive.Reader) {
	m.LogP = rd.Dense()
	m.LogTheta = rd.Dense()
}

// Step2Master merges the partial models and finalizes the model.
type Step2Master struct {
	Method    Method
	Parameter Parameter
	Input     Step2MasterInput
	Allocator *algorithm.Allocator

	merged *PartialModel
	model  *Model
}

// NewStep2Master creates the merging master step.
func NewStep2Master(m Method, par Parameter, partials []*PartialModel) *Step2Master {
	return &Step2Master{Method: m, Parameter: par, Input: Step2MasterInput{PartialModels: partials}}
}

func (s *Step2Master) ID() algorithm.StepID { return algorithm.Step2Master }

// PartialResult returns the merged partial model, nil before the first Compute.
func (s *Step2Master) PartialResult() *PartialModel { return s.merged }

// SetPartialResult makes Compute and Finalize use r as merged partial model.
func (s *Step2Master) SetPartialResult(r *PartialModel) { s.merged = r }

// Model returns the trained model, nil until Finalize succeeded.
func (s *Step2Master) Model() *Model { return s.model }

func (s *Step2Master) Compute(ctx context.Context) error {
	if s.merged == nil {
		s.merged = &PartialModel{}
	}
	p := -1
	return algorithm.Procedure{
		Check: func() error {
			var err error
			p, err = s.Input.Check(s.Parameter, s.Method)
			return err
		},
		Allocate: func() error { return s.merged.Allocate(s.Parameter.NClasses, p, s.Allocator) },
		Kernel: func(context.Context) error {
			for _, pm := range s.Input.PartialModels {
				s.merged.add(pm)
			}
			return nil
		},
	}.Run(ctx, s.ID())
}

// Finalize turns the merged counts into log probabilities.
func (s *Step2Master) Finalize(ctx context.Context) error {
	return algorithm.RunFinalize(ctx, s.ID(), func(context.Context) error {
		st := status.New()
		pm := s.merged
		if pm == nil {
			return st.Add(status.ErrResultNotReady, "partialModel").Err()
		}
		st.Check(pm.ClassSize != nil, status.ErrResultNotReady, "classSize")
		st.Check(pm.ClassGroupSum != nil, status.ErrResultNotReady, "classGroupSum")
		if !st.OK() {
			return st.Err()
		}
		nClasses, p := pm.ClassGroupSum.Rows(), pm.ClassGroupSum.Cols()
		s.Parameter.check(st, s.Method, p)
		if !st.OK() {
			return st.Err()
		}

		logP, err := s.Allocator.Dense("logP", nClasses, 1, table.Float)
		if err != nil {
			return err
		}
		logTheta, err := s.Allocator.Dense("logTheta", nClasses, p, table.Float)
		if err != nil {
			return err
		}

		sizes := pm.ClassSize.Data()
		var n float64
		for _, c := range sizes {
			n += c
		}
		if prior := s.Parameter.PriorClassEstimates; prior != nil {
			for c, v := range prior.Row(0, nil) {
				logP.Put(c, 0, math.Log(v))
			}
		} else {
			if n == 0 {
				return st.Add(status.ErrInconsistentPartialResults, "classSize").Err()
			}
			for c, v := range sizes {
				logP.Put(c, 0, math.Log(v/n))
			}
		}

		alpha := s.Parameter.alpha(p)
		var alphaSum float64
		for _, a := range alpha {
			alphaSum += a
		}
		for c := range nClasses {
			sums := pm.ClassGroupSum.RawRow(c)
			var total float64
			for _, v := range sums {
				total += v
			}
			dst := logTheta.RawRow(c)
			for j, v := range sums {
				dst[j] = math.Log((v + alpha[j]) / (total + alphaSum))
			}
		}
		s.model = &Model{LogP: logP, LogTheta: logTheta}
		return nil
	})
}

// Predict returns the most likely class of every row of data as an n×1
// int table.
func Predict(m *Model, data table.Table) (*table.Dense, error) {
	s := status.New()
	if m == nil || m.LogP == nil || m.LogTheta == nil {
		return nil, s.Add(status.ErrNullInput, "model").Err()
	}
	if !table.CheckInto(s, data, "data", table.Expect{Cols: m.LogTheta.Cols()}) {
		return nil, s.Err()
	}
	out := table.MustNew(data.Rows(), 1, table.Int)
	var row []float64
	for i := range data.Rows() {
		row = data.Row(i, row)
		best, bestScore := 0, math.Inf(-1)
		for c := range m.LogP.Rows() {
			score := m.LogP.Get(c, 0)
			for j, x := range row {
				if x != 0 {
					score += x * m.LogTheta.Get(c, j)
				}
			}
			if score > bestScore {
				best, bestScore = c, score
			}
		}
		out.Put(i, 0, float64(best))
	}
	return out, nil
}
