package main

import (
	"context"
	"fmt"
	"math"

	"github.com/hupe1980/stepwise"
	"github.com/hupe1980/stepwise/adaboost"
	"github.com/hupe1980/stepwise/archive"
	"github.com/hupe1980/stepwise/config"
	"github.com/hupe1980/stepwise/dtree"
	"github.com/hupe1980/stepwise/kmeansinit"
	"github.com/hupe1980/stepwise/naivebayes"
	"github.com/hupe1980/stepwise/pca"
	"github.com/hupe1980/stepwise/quantiles"
	"github.com/hupe1980/stepwise/resource"
	"github.com/hupe1980/stepwise/ridge"
	"github.com/hupe1980/stepwise/table"
)

// output is the JSON document a run writes.
type output struct {
	Job        string                     `json:"job"`
	Algorithm  string                     `json:"algorithm"`
	Method     string                     `json:"method,omitempty"`
	Nodes      int                        `json:"nodes"`
	Tables     map[string][][]float64     `json:"tables"`
	Stats      stepwise.BasicMetricsStats `json:"stats"`
	PeakMemory int64                      `json:"peak_memory_bytes"`
}

func rowsOf(t table.Table) [][]float64 {
	if table.IsNil(t) {
		return nil
	}
	out := make([][]float64, t.Rows())
	for i := range out {
		out[i] = t.Row(i, nil)
		for j, v := range out[i] {
			out[i][j] = finite(v)
		}
	}
	return out
}

// finite clamps infinities to the largest float, which JSON can encode.
func finite(v float64) float64 {
	switch {
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	}
	return v
}

func targetKind(algorithm string) table.Kind {
	switch algorithm {
	case "naivebayes", "adaboost":
		return table.Int
	}
	return table.Float
}

func loadPartitions(ctx context.Context, rc *resource.Controller, job *config.Job) ([]partition, error) {
	parts := make([]partition, len(job.Partitions))
	for i, path := range job.Partitions {
		p, err := readPartition(ctx, rc, path, job.Header, job.TargetColumns, targetKind(job.Algorithm))
		if err != nil {
			return nil, err
		}
		parts[i] = p
	}
	return parts, nil
}

func dataOf(parts []partition) []table.Table {
	out := make([]table.Table, len(parts))
	for i, p := range parts {
		out[i] = p.Data
	}
	return out
}

func targetsOf(parts []partition) []table.Table {
	out := make([]table.Table, len(parts))
	for i, p := range parts {
		out[i] = p.Targets
	}
	return out
}

// stacked merges the partitions for the batch algorithms.
func stacked(parts []partition, algorithm string) (partition, error) {
	if len(parts) == 1 {
		return parts[0], nil
	}
	data, err := table.VStack(table.Float, dataOf(parts)...)
	if err != nil {
		return partition{}, err
	}
	p := partition{Data: data}
	if parts[0].Targets != nil {
		if p.Targets, err = table.VStack(targetKind(algorithm), targetsOf(parts)...); err != nil {
			return partition{}, err
		}
	}
	return p, nil
}

// execute runs the job and returns the named result tables and the
// archivable result.
func execute(ctx context.Context, r *stepwise.Runner, job *config.Job, parts []partition) (map[string][][]float64, archive.Serializable, error) {
	par := job.Parameters
	switch job.Algorithm {
	case "kmeansinit":
		m, err := kmeansinit.ParseMethod(methodOr(job.Method, kmeansinit.ParallelPlusDense.String()))
		if err != nil {
			return nil, nil, err
		}
		p := kmeansinit.NewParameter(par.NClusters)
		if par.OversamplingFactor > 0 {
			p.OversamplingFactor = par.OversamplingFactor
		}
		if par.NRounds > 0 {
			p.NRounds = par.NRounds
		}
		p.Seed = par.Seed
		res, err := r.KMeansInit(ctx, job.Name, m, p, dataOf(parts))
		if err != nil {
			return nil, nil, err
		}
		return map[string][][]float64{"centroids": rowsOf(res.Centroids)}, res, nil

	case "pca":
		m, err := pca.ParseMethod(methodOr(job.Method, pca.CorrelationDense.String()))
		if err != nil {
			return nil, nil, err
		}
		res, err := r.PCA(ctx, job.Name, m, pca.Parameter{NComponents: par.NComponents, IsDeterministic: par.Deterministic}, dataOf(parts))
		if err != nil {
			return nil, nil, err
		}
		return map[string][][]float64{
			"eigenvalues":  rowsOf(res.Eigenvalues),
			"eigenvectors": rowsOf(res.Eigenvectors),
			"means":        rowsOf(res.Means),
			"variances":    rowsOf(res.Variances),
		}, res, nil

	case "naivebayes":
		m, err := naivebayes.ParseMethod(methodOr(job.Method, naivebayes.DefaultDense.String()))
		if err != nil {
			return nil, nil, err
		}
		nbParts := make([]naivebayes.Partition, len(parts))
		for i, p := range parts {
			nbParts[i] = naivebayes.Partition{Data: p.Data, Labels: p.Targets}
		}
		model, err := r.NaiveBayes(ctx, job.Name, m, naivebayes.NewParameter(par.NClasses), nbParts)
		if err != nil {
			return nil, nil, err
		}
		return map[string][][]float64{
			"log_p":     rowsOf(model.LogP),
			"log_theta": rowsOf(model.LogTheta),
		}, model, nil

	case "ridge":
		m, err := ridge.ParseMethod(methodOr(job.Method, ridge.NormEqDense.String()))
		if err != nil {
			return nil, nil, err
		}
		p := ridge.NewParameter()
		if len(par.RidgePenalty) > 0 {
			penalty, err := table.FromRows([][]float64{par.RidgePenalty})
			if err != nil {
				return nil, nil, err
			}
			p.RidgeParameters = penalty
		}
		if par.Intercept != nil {
			p.InterceptFlag = *par.Intercept
		}
		rParts := make([]ridge.Partition, len(parts))
		for i, pt := range parts {
			rParts[i] = ridge.Partition{Data: pt.Data, DependentVariables: pt.Targets}
		}
		model, err := r.Ridge(ctx, job.Name, m, p, rParts)
		if err != nil {
			return nil, nil, err
		}
		return map[string][][]float64{"beta": rowsOf(model.Beta)}, model, nil

	case "adaboost":
		in, err := stacked(parts, job.Algorithm)
		if err != nil {
			return nil, nil, err
		}
		p := adaboost.NewParameter()
		if par.MaxIterations > 0 {
			p.MaxIterations = par.MaxIterations
		}
		p.AccuracyThreshold = par.AccuracyThreshold
		model, err := r.AdaBoost(ctx, p, in.Data, in.Targets)
		if err != nil {
			return nil, nil, err
		}
		stumps := make([][]float64, len(model.Stumps))
		for i, s := range model.Stumps {
			stumps[i] = []float64{float64(s.Feature), finite(s.Threshold), s.Polarity}
		}
		return map[string][][]float64{"alpha": rowsOf(model.Alpha), "stumps": stumps}, model, nil

	case "dtree":
		in, err := stacked(parts, job.Algorithm)
		if err != nil {
			return nil, nil, err
		}
		p, input, err := treeInput(ctx, r.Controller(), job, in)
		if err != nil {
			return nil, nil, err
		}
		model, err := r.DecisionTree(ctx, p, input)
		if err != nil {
			return nil, nil, err
		}
		nodes := make([][]float64, len(model.Nodes))
		for i, n := range model.Nodes {
			nodes[i] = []float64{float64(n.Feature), n.Threshold, float64(n.Left), float64(n.Right), n.Value, float64(n.Count)}
		}
		return map[string][][]float64{"nodes": nodes}, model, nil

	case "quantiles":
		in, err := stacked(parts, job.Algorithm)
		if err != nil {
			return nil, nil, err
		}
		var p quantiles.Parameter
		if len(par.QuantileOrders) > 0 {
			orders, err := table.FromRows([][]float64{par.QuantileOrders})
			if err != nil {
				return nil, nil, err
			}
			p.QuantileOrders = orders
		}
		res, err := r.Quantiles(ctx, p, in.Data)
		if err != nil {
			return nil, nil, err
		}
		return map[string][][]float64{"quantiles": rowsOf(res.Quantiles)}, res, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown algorithm %q", config.ErrJobInvalid, job.Algorithm)
}

func treeInput(ctx context.Context, rc *resource.Controller, job *config.Job, in partition) (dtree.Parameter, dtree.Input, error) {
	par := job.Parameters
	p := dtree.Parameter{
		Pruning:               dtree.None,
		MaxTreeDepth:          par.MaxTreeDepth,
		MinObservationsInLeaf: dtree.NewParameter().MinObservationsInLeaf,
	}
	if par.MinObservationsInLeaf > 0 {
		p.MinObservationsInLeaf = par.MinObservationsInLeaf
	}
	input := dtree.Input{Data: in.Data, DependentVariables: in.Targets}
	if par.Pruning == "" {
		return p, input, nil
	}
	pruning, err := dtree.ParsePruning(par.Pruning)
	if err != nil {
		return p, input, err
	}
	p.Pruning = pruning
	if par.PruningPartition != "" {
		pp, err := readPartition(ctx, rc, par.PruningPartition, job.Header, job.TargetColumns, table.Float)
		if err != nil {
			return p, input, err
		}
		input.DataForPruning, input.DependentVariablesForPruning = pp.Data, pp.Targets
	}
	return p, input, nil
}

func methodOr(name, def string) string {
	if name == "" {
		return def
	}
	return name
}
