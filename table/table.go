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

package table

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
)

// Value is an arbitrary value of a table cell: nil (null), string, float64,
// bool, or a nested JSON value such as []any.
type Value = any

// Row is a sequence of cells aligned with the table header. A row may be
// shorter than the header, in which case the missing trailing cells are null.
type Row []Value

// MissingColumnError is returned when an operation refers to a column that the
// table does not have.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("column '%s' not found", e.Column)
}

// Table container with named columns.
//
// Columns can be added after rows, e.g. when assembling data with varying
// schemas:
//
//	t := NewTable("a")
//	t.AddRow(Row{1.0})
//	b := t.AddColumn("b")
//	r := make(Row, t.NumColumns())
//	r[b] = "x"
//	t.AddRow(r)
//
// The first row now reads as {1, null}.
type Table struct {
	Header []string
	Rows   []Row
	index  map[string]int // column name -> position in Header
}

// NewTable creates a new Table instance with optional column headers. Column
// names must be unique.
func NewTable(header ...string) *Table {
	t := &Table{}
	for _, h := range header {
		t.AddColumn(h)
	}
	return t
}

func (t *Table) columns() map[string]int {
	if t.index == nil || len(t.index) != len(t.Header) {
		t.index = make(map[string]int, len(t.Header))
		for i, h := range t.Header {
			t.index[h] = i
		}
	}
	return t.index
}

// NumColumns in the table.
func (t *Table) NumColumns() int { return len(t.Header) }

// NumRows in the table.
func (t *Table) NumRows() int { return len(t.Rows) }

// ColumnIndex returns the position of the named column, if present.
func (t *Table) ColumnIndex(name string) (int, bool) {
	i, ok := t.columns()[name]
	return i, ok
}

// AddColumn appends a new column to the header and returns its index. If the
// column already exists, its current index is returned. Existing rows read the
// new column as null.
func (t *Table) AddColumn(name string) int {
	if i, ok := t.ColumnIndex(name); ok {
		return i
	}
	t.Header = append(t.Header, name)
	t.index[name] = len(t.Header) - 1
	return len(t.Header) - 1
}

// AddRow adds one or more rows to the table.
func (t *Table) AddRow(rows ...Row) {
	t.Rows = append(t.Rows, rows...)
}

// Cell returns the value at the given row and column index, or nil when the
// row does not extend to that column.
func (t *Table) Cell(row, col int) Value {
	r := t.Rows[row]
	if col >= len(r) {
		return nil
	}
	return r[col]
}

// Column returns all the values of the named column in row order.
func (t *Table) Column(name string) ([]Value, error) {
	j, ok := t.ColumnIndex(name)
	if !ok {
		return nil, &MissingColumnError{Column: name}
	}
	res := make([]Value, len(t.Rows))
	for i := range t.Rows {
		res[i] = t.Cell(i, j)
	}
	return res, nil
}

// DropColumn removes the named column from the header and from every row.
func (t *Table) DropColumn(name string) error {
	j, ok := t.ColumnIndex(name)
	if !ok {
		return &MissingColumnError{Column: name}
	}
	t.Header = append(t.Header[:j:j], t.Header[j+1:]...)
	for i, r := range t.Rows {
		if j < len(r) {
			t.Rows[i] = append(r[:j:j], r[j+1:]...)
		}
	}
	t.index = nil
	return nil
}

// String formats a single cell value for printing. Null is an empty string,
// and nested values are printed as compact JSON.
func String(v Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	case fmt.Stringer:
		return x.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// CSV returns an encoding/csv compatible representation of the i'th row padded
// to the width of the header.
func (t *Table) CSV(i int) []string {
	res := make([]string, len(t.Header))
	for j := range res {
		res[j] = String(t.Cell(i, j))
	}
	return res
}

// Params are parameters for pretty-printing or CSV export of Table data.
type Params struct {
	Rows        int  // max. number of rows to write; 0 = unlimited (default)
	NoHeader    bool // whether to print the header, default - yes
	MaxColWidth int  // for WriteText only; 0 = unlimited, otherwise must be >= 4
}

// WriteCSV writes the entire table to w in CSV format.
func (t *Table) WriteCSV(w io.Writer, p Params) error {
	cw := csv.NewWriter(w)
	if !p.NoHeader && len(t.Header) > 0 {
		if err := cw.Write(t.Header); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
	}
	for i := range t.Rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		if err := cw.Write(t.CSV(i)); err != nil {
			return errors.Annotate(err, "failed to write row %d", i)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Annotate(err, "failed to flush written rows")
	}
	return nil
}

// WriteText writes the table as a text formatted for ease of reading. A table
// without columns prints nothing.
func (t *Table) WriteText(w io.Writer, p Params) error {
	if p.MaxColWidth != 0 && p.MaxColWidth < 4 {
		return errors.Reason("MaxColWidth [%d] must be 0 or >= 4", p.MaxColWidth)
	}
	if len(t.Header) == 0 {
		return nil
	}
	widths := make([]int, len(t.Header))
	update := func(row []string) {
		for i := range widths {
			if n := len([]rune(row[i])); widths[i] < n {
				widths[i] = n
				if p.MaxColWidth > 0 && widths[i] > p.MaxColWidth {
					widths[i] = p.MaxColWidth
				}
			}
		}
	}

	write := func(row []string) error {
		trimmed := make([]string, len(row))
		for i, s := range row {
			trimmed[i] = s
			if len([]rune(s)) > widths[i] {
				r := []rune(s)[:widths[i]-2]
				trimmed[i] = string(r) + ".."
			}
			trimmed[i] = fmt.Sprintf("%[2]*[1]s", trimmed[i], widths[i])
		}
		_, err := fmt.Fprintf(w, "%s\n", strings.Join(trimmed, " | "))
		return err
	}

	dashedRow := func() []string {
		row := make([]string, len(widths))
		for i, w := range widths {
			row[i] = strings.Repeat("-", w)
		}
		return row
	}

	numRows := len(t.Rows)
	if p.Rows > 0 && p.Rows < numRows {
		numRows = p.Rows
	}
	if !p.NoHeader {
		update(t.Header)
	}
	for i := 0; i < numRows; i++ {
		update(t.CSV(i))
	}

	if !p.NoHeader {
		if err := write(t.Header); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
		if err := write(dashedRow()); err != nil {
			return errors.Annotate(err, "failed to write header separator")
		}
	}
	for i := 0; i < numRows; i++ {
		if err := write(t.CSV(i)); err != nil {
			return errors.Annotate(err, "failed to write row %d", i)
		}
	}
	return nil
}
