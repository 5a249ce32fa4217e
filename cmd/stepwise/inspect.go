package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"github.com/hupe1980/stepwise"
	"github.com/hupe1980/stepwise/archive"
	"github.com/hupe1980/stepwise/codec"
	"github.com/hupe1980/stepwise/adaboost"
	"github.com/hupe1980/stepwise/kmeansinit"
	"github.com/hupe1980/stepwise/naivebayes"
	"github.com/hupe1980/stepwise/pca"
	"github.com/hupe1980/stepwise/quantiles"
	"github.com/hupe1980/stepwise/ridge"
	"github.com/hupe1980/stepwise/table"
)

type inspectCmd struct{}

func (*inspectCmd) Name() string     { return "inspect" }
func (*inspectCmd) Synopsis() string { return "describe an archive file" }
func (*inspectCmd) Usage() string {
	return `inspect <archive>:
  Print the envelope of an archive and the shapes of the tables it holds.

`
}

func (*inspectCmd) SetFlags(*flag.FlagSet) {}

func (c *inspectCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	data, err := os.ReadFile(f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if err := inspect(os.Stdout, data); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// summary describes one archive.
type summary struct {
	Tag         string   `json:"tag"`
	Type        string   `json:"type"`
	Compression string   `json:"compression"`
	Bytes       uint64   `json:"bytes"`
	RawBytes    uint64   `json:"raw_bytes"`
	Tables      []string `json:"tables"`
}

func summarize(data []byte) (summary, error) {
	h, err := archive.Peek(data)
	if err != nil {
		return summary{}, err
	}
	obj, err := stepwise.DefaultRegistry().Decode(data)
	if err != nil {
		return summary{}, err
	}
	s := summary{
		Tag:         h.Tag.String(),
		Type:        fmt.Sprintf("%T", obj),
		Compression: h.Compression.String(),
		Bytes:       h.Length,
		RawBytes:    h.RawLength,
	}
	for _, t := range tablesOf(obj) {
		s.Tables = append(s.Tables, shape(t))
	}
	return s, nil
}

// tablesOf returns the tables of the types that carry them in fixed slots.
func tablesOf(obj archive.Serializable) []table.Table {
	switch v := obj.(type) {
	case *kmeansinit.Result:
		return []table.Table{v.Centroids}
	case *kmeansinit.Step1PartialResult:
		return []table.Table{v.PartialClusters, v.PartialClustersNumber}
	case *kmeansinit.Step2PartialResult:
		return []table.Table{v.OutputOfStep2ForStep3, v.OutputOfStep2ForStep5}
	case *kmeansinit.Step4PartialResult:
		return []table.Table{v.OutputOfStep4}
	case *kmeansinit.Step5PartialResult:
		return []table.Table{v.Candidates, v.Weights}
	case *pca.PartialResult:
		return []table.Table{v.NObservations, v.SumData, v.CrossProduct}
	case *pca.Result:
		return []table.Table{v.Eigenvalues, v.Eigenvectors, v.Means, v.Variances}
	case *naivebayes.Model:
		return []table.Table{v.LogP, v.LogTheta}
	case *ridge.PartialResult:
		return []table.Table{v.XTX, v.XTY, v.NObservations}
	case *ridge.Model:
		return []table.Table{v.Beta}
	case *adaboost.Model:
		return []table.Table{v.Alpha}
	case *quantiles.Result:
		return []table.Table{v.Quantiles}
	}
	return nil
}

func shape(t table.Table) string {
	if table.IsNil(t) {
		return "nil"
	}
	return fmt.Sprintf("%dx%d %s %s", t.Rows(), t.Cols(), t.Kind(), t.Layout())
}

func inspect(w io.Writer, data []byte) error {
	s, err := summarize(data)
	if err != nil {
		return err
	}
	out, err := codec.GoJSON{}.MarshalIndent(s)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", out)
	return err
}
