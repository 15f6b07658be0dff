// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package stats computes summaries of query results.
package stats

import (
	"context"
	"encoding/json"
	"runtime"

	"github.com/stockparfait/chainquery/table"
	"github.com/stockparfait/iterator"

	"golang.org/x/exp/slices"
)

// Summary of a single table column. Numeric statistics are computed over the
// numeric cells only, and are meaningful only when Numeric > 0.
type Summary struct {
	Index   int // column index in the table
	Column  string
	Count   int // non-null cells
	Numeric int // numeric cells
	Mean    float64
	Sigma   float64
	Min     float64
	Median  float64
	Max     float64
}

// Number extracts a numeric value from a cell. Numeric strings are not
// converted.
func Number(v table.Value) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

// Summarize the column of the table with the given index.
func Summarize(tbl *table.Table, col int) Summary {
	s := Summary{Index: col, Column: tbl.Header[col]}
	sample := NewSample()
	for i := range tbl.Rows {
		v := tbl.Cell(i, col)
		if v == nil {
			continue
		}
		s.Count++
		if x, ok := Number(v); ok {
			sample.Add(x)
		}
	}
	s.Numeric = sample.Len()
	s.Mean = sample.Mean()
	s.Sigma = sample.Sigma()
	s.Min = sample.Min()
	s.Median = sample.Median()
	s.Max = sample.Max()
	return s
}

// SummarizeAll computes the summaries of all the columns in parallel, in the
// order of the table header.
func SummarizeAll(ctx context.Context, tbl *table.Table) []Summary {
	cols := make([]int, len(tbl.Header))
	for i := range cols {
		cols[i] = i
	}
	f := func(col int) Summary { return Summarize(tbl, col) }
	pm := iterator.ParallelMap(ctx, 2*runtime.NumCPU(), iterator.FromSlice(cols), f)
	defer pm.Close()

	res := iterator.Reduce[Summary, []Summary](pm, []Summary{}, func(s Summary, acc []Summary) []Summary {
		return append(acc, s)
	})
	slices.SortFunc(res, func(a, b Summary) bool { return a.Index < b.Index })
	return res
}

// SummaryTable renders the summaries as a table. Statistics of columns without
// numeric cells are null.
func SummaryTable(summaries []Summary) *table.Table {
	t := table.NewTable("Column", "Count", "Numeric", "Mean", "StdDev",
		"Min", "Median", "Max")
	for _, s := range summaries {
		row := table.Row{s.Column, s.Count, s.Numeric}
		if s.Numeric > 0 {
			row = append(row, s.Mean, s.Sigma, s.Min, s.Median, s.Max)
		}
		t.AddRow(row)
	}
	return t
}
