package kmeansinit

import (
	"context"
	"fmt"

	"github.com/hupe1980/stepwise/algorithm"
	"github.com/hupe1980/stepwise/status"
	"github.com/hupe1980/stepwise/table"
)

// Step2MasterInput collects the step 1 partial results of every node, in
// ascending order of partition offset.
type Step2MasterInput struct {
	PartialResults []*Step1PartialResult
}

// Check validates the collection.
func (in *Step2MasterInput) Check(par Parameter, m Method) error {
	s := status.New()
	par.check(s, m, -1)
	if m.IsPlusPlus() {
		s.Addf(status.ErrIncorrectMethod, "method", "%s has no step2 master", m)
	}
	if len(in.PartialResults) == 0 {
		s.Add(status.ErrNullInput, "partialResults")
		return s.Err()
	}
	nFeatures, total := -1, 0
	for i, pr := range in.PartialResults {
		name := fmt.Sprintf("partialResults[%d]", i)
		if pr == nil || pr.PartialClustersNumber == nil || pr.PartialClusters == nil {
			s.Add(status.ErrNullPartialResult, name)
			continue
		}
		if pr.PartialClusters.Rows() != pr.Count() {
			s.Addf(status.ErrInconsistentPartialResults, name, "%d rows, count %d", pr.PartialClusters.Rows(), pr.Count())
		}
		if nFeatures < 0 {
			nFeatures = pr.PartialClusters.Cols()
		} else if pr.PartialClusters.Cols() != nFeatures {
			s.Addf(status.ErrIncorrectNumberOfColumns, name, "expected %d, got %d", nFeatures, pr.PartialClusters.Cols())
		}
		total += pr.Count()
	}
	if s.OK() && total < par.NClusters {
		s.Addf(status.ErrInconsistentPartialResults, "partialResults", "%d clusters collected, %d requested", total, par.NClusters)
	}
	return s.Err()
}

// Step2Master merges the rows selected by the deterministic and random
// methods into the final centroids.
type Step2Master struct {
	Method    Method
	Parameter Parameter
	Input     Step2MasterInput
	Allocator *algorithm.Allocator

	merged *table.Dense
	result *Result
}

// NewStep2Master creates the merging master step.
func NewStep2Master(m Method, par Parameter, partials []*Step1PartialResult) *Step2Master {
	return &Step2Master{Method: m, Parameter: par, Input: Step2MasterInput{PartialResults: partials}}
}

func (s *Step2Master) ID() algorithm.StepID { return algorithm.Step2Master }

func (s *Step2Master) Compute(ctx context.Context) error {
	return algorithm.Procedure{
		Check: func() error { return s.Input.Check(s.Parameter, s.Method) },
		Kernel: func(context.Context) error {
			parts := make([]table.Table, len(s.Input.PartialResults))
			for i, pr := range s.Input.PartialResults {
				parts[i] = pr.PartialClusters
			}
			merged, err := table.VStack(table.Float, parts...)
			if err != nil {
				return status.New().Addf(status.ErrInconsistentPartialResults, "partialResults", "%v", err)
			}
			s.merged = merged
			return nil
		},
	}.Run(ctx, s.ID())
}

// Finalize produces the result from the merged rows.
func (s *Step2Master) Finalize(ctx context.Context) error {
	return algorithm.RunFinalize(ctx, s.ID(), func(context.Context) error {
		if s.merged == nil {
			return status.New().Add(status.ErrResultNotReady, "partialClusters").Err()
		}
		centroids, err := s.Allocator.Dense("centroids", s.Parameter.NClusters, s.merged.Cols(), table.Float)
		if err != nil {
			return err
		}
		copy(centroids.Data(), s.merged.Data())
		s.result = &Result{Centroids: centroids}
		return nil
	})
}

// Result returns the finalized result, nil until Finalize succeeded.
func (s *Step2Master) Result() *Result { return s.result }
