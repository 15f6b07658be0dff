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

package query

import (
	"github.com/stockparfait/chainquery/table"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// PathSeparator joins the keys of nested objects into a column name.
const PathSeparator = "."

// field is a single flattened leaf value of a record.
type field struct {
	path    string
	value   any
	parents []string // paths of the enclosing objects, outermost first
}

// flattenValue appends the leaves of v under the given path. Only JSON objects
// are expanded; arrays and scalars are leaves. Nested keys are visited in
// lexicographic order, and an empty object yields no leaves.
func flattenValue(path string, v any, parents []string, fields []field) []field {
	m, ok := v.(map[string]any)
	if !ok {
		return append(fields, field{path: path, value: v, parents: parents})
	}
	keys := maps.Keys(m)
	slices.Sort(keys)
	inner := make([]string, len(parents)+1)
	copy(inner, parents)
	inner[len(parents)] = path
	for _, k := range keys {
		fields = flattenValue(path+PathSeparator+k, m[k], inner, fields)
	}
	return fields
}

// flattenRecord converts a record into its leaf fields. Top-level keys follow
// the provider's column order; keys missing from it follow in lexicographic
// order.
func flattenRecord(rec Record, columns []string) []field {
	fields := make([]field, 0, len(rec))
	known := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, ok := known[c]; ok {
			continue
		}
		known[c] = struct{}{}
		if v, ok := rec[c]; ok {
			fields = flattenValue(c, v, nil, fields)
		}
	}
	var extra []string
	for k := range rec {
		if _, ok := known[k]; !ok {
			extra = append(extra, k)
		}
	}
	slices.Sort(extra)
	for _, k := range extra {
		fields = flattenValue(k, rec[k], nil, fields)
	}
	return fields
}

// assembler accumulates flattened pages into a single table.
type assembler struct {
	tbl      *table.Table
	interior map[string]struct{} // enclosing objects of all the table columns
	valued   map[string]struct{} // columns with at least one non-null value
}

func newAssembler() *assembler {
	return &assembler{
		tbl:      table.NewTable(),
		interior: make(map[string]struct{}),
		valued:   make(map[string]struct{}),
	}
}

// add flattens the page and appends its rows to the table, adding any new
// columns. A path which holds a non-null value in one place and a nested
// object in another is a conflict. Null values never conflict: a null object
// sits in its own column next to the columns of its nested values. On conflict
// the table is left unchanged and *AssemblyError is returned.
func (a *assembler) add(page int, res *PageResult) error {
	rows := make([][]field, len(res.Records))
	leaves := make(map[string]struct{})
	var leafOrder []string
	valued := make(map[string]struct{})
	var valuedOrder []string
	interior := make(map[string]struct{})
	var interiorOrder []string
	for i, rec := range res.Records {
		rows[i] = flattenRecord(rec, res.Columns)
		for _, f := range rows[i] {
			if _, ok := leaves[f.path]; !ok {
				leaves[f.path] = struct{}{}
				leafOrder = append(leafOrder, f.path)
			}
			if _, ok := valued[f.path]; !ok && f.value != nil {
				valued[f.path] = struct{}{}
				valuedOrder = append(valuedOrder, f.path)
			}
			for _, p := range f.parents {
				if _, ok := interior[p]; !ok {
					interior[p] = struct{}{}
					interiorOrder = append(interiorOrder, p)
				}
			}
		}
	}

	for _, c := range valuedOrder {
		if _, ok := interior[c]; ok {
			return &AssemblyError{Page: page, Column: c,
				Reason: "both a value and a nested object within the page"}
		}
		if _, ok := a.interior[c]; ok {
			return &AssemblyError{Page: page, Column: c,
				Reason: "a value here but a nested object in earlier pages"}
		}
	}
	for _, p := range interiorOrder {
		if _, ok := a.valued[p]; ok {
			return &AssemblyError{Page: page, Column: p,
				Reason: "a nested object here but a value in earlier pages"}
		}
	}

	for _, c := range leafOrder {
		a.tbl.AddColumn(c)
	}
	for _, c := range valuedOrder {
		a.valued[c] = struct{}{}
	}
	for _, p := range interiorOrder {
		a.interior[p] = struct{}{}
	}
	for _, fields := range rows {
		row := make(table.Row, a.tbl.NumColumns())
		for _, f := range fields {
			j, _ := a.tbl.ColumnIndex(f.path)
			row[j] = f.value
		}
		a.tbl.AddRow(row)
	}
	return nil
}
