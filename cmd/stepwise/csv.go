package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hupe1980/stepwise/resource"
	"github.com/hupe1980/stepwise/table"
)

// partition is one CSV file split into features and targets.
type partition struct {
	Data    *table.Dense
	Targets *table.Dense
}

// readPartition reads a CSV file, charging the bytes read against the IO
// limit of rc.
func readPartition(ctx context.Context, rc *resource.Controller, path string, header bool, targets int, targetKind table.Kind) (partition, error) {
	f, err := os.Open(path)
	if err != nil {
		return partition{}, err
	}
	defer f.Close()

	p, err := parseCSV(resource.NewRateLimitedReader(ctx, f, rc), header, targets, targetKind)
	if err != nil {
		return partition{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// parseCSV reads numeric records. The last targets columns of every record
// go into Targets, the rest into Data.
func parseCSV(r io.Reader, header bool, targets int, targetKind table.Kind) (partition, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	cr.Comment = '#'

	var (
		values [][]float64
		width  = -1
	)
	for n := 1; ; n++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return partition{}, err
		}
		if header && n == 1 {
			continue
		}
		if width < 0 {
			width = len(rec)
			if width <= targets {
				return partition{}, fmt.Errorf("record has %d columns, need more than %d target columns", width, targets)
			}
		}
		row := make([]float64, len(rec))
		for j, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return partition{}, fmt.Errorf("record %d column %d: %w", n, j+1, err)
			}
			row[j] = v
		}
		values = append(values, row)
	}
	if len(values) == 0 {
		return partition{}, errors.New("no records")
	}

	nFeatures := width - targets
	data := table.MustNew(len(values), nFeatures, table.Float)
	var y *table.Dense
	if targets > 0 {
		y = table.MustNew(len(values), targets, targetKind)
	}
	for i, row := range values {
		copy(data.RawRow(i), row[:nFeatures])
		if y != nil {
			copy(y.RawRow(i), row[nFeatures:])
		}
	}
	return partition{Data: data, Targets: y}, nil
}
