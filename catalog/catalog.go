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

// Package catalog reads the static schema metadata of query providers: which
// tables each provider exposes and their columns.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/stockparfait/chainquery/message"
	"github.com/stockparfait/chainquery/table"
	"github.com/stockparfait/errors"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// SchemaConfig sets the custom headers of the schema CSV file.
type SchemaConfig struct {
	Provider string   `json:"datawarehouse" default:"datawarehouse"`
	Catalog  string   `json:"table_catalog" default:"table_catalog"`
	Schema   string   `json:"table_schema" default:"table_schema"`
	Table    string   `json:"table_name" default:"table_name"`
	Column   string   `json:"column_name" default:"column_name"`
	Header   []string `json:"header"` // for headless CSV
}

var _ message.Message = &SchemaConfig{}

// InitMessage implements message.Message.
func (c *SchemaConfig) InitMessage(js any) error {
	return errors.Annotate(message.Init(c, js), "failed to init from JSON")
}

func NewSchemaConfig() *SchemaConfig {
	var c SchemaConfig
	if err := c.InitMessage(map[string]any{}); err != nil {
		panic(errors.Annotate(err, "failed to init default SchemaConfig"))
	}
	return &c
}

// mapColumns returns the header indices of provider, catalog, schema, table
// and column names, in this order. A missing catalog column is -1; other
// missing columns are an error.
func (c *SchemaConfig) mapColumns(header []string) ([]int, error) {
	names := []string{c.Provider, c.Catalog, c.Schema, c.Table, c.Column}
	m := make([]int, len(names))
	for j, n := range names {
		m[j] = slices.Index(header, n)
		if m[j] < 0 && j != 1 {
			return nil, errors.Reason("schema CSV requires a '%s' column", n)
		}
	}
	return m, nil
}

// TableRef identifies a table in a provider's warehouse.
type TableRef struct {
	Catalog string
	Schema  string
	Name    string
}

// QualifiedName is the name to use in SQL: "catalog.schema.table", or
// "schema.table" when the catalog is not set.
func (r TableRef) QualifiedName() string {
	if r.Catalog == "" || r.Catalog == "nan" {
		return fmt.Sprintf("%s.%s", r.Schema, r.Name)
	}
	return fmt.Sprintf("%s.%s.%s", r.Catalog, r.Schema, r.Name)
}

// Catalog is the in-memory schema metadata of all providers.
type Catalog struct {
	// provider -> table -> columns in the order of the CSV file.
	columns map[string]map[TableRef][]string
}

// Read the schema CSV. When config defines a header, CSV is assumed to be
// headless; otherwise the CSV file must have a header.
func Read(r io.Reader, c *SchemaConfig) (*Catalog, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, errors.Annotate(err, "failed to read schema CSV")
	}
	cat := &Catalog{columns: make(map[string]map[TableRef][]string)}
	header := c.Header
	if len(header) == 0 {
		if len(rows) == 0 {
			return cat, nil
		}
		header = rows[0]
		rows = rows[1:]
	}
	colMap, err := c.mapColumns(header)
	if err != nil {
		return nil, errors.Annotate(err, "invalid schema CSV header")
	}
	get := func(row []string, i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	for _, row := range rows {
		provider := get(row, colMap[0])
		ref := TableRef{
			Catalog: get(row, colMap[1]),
			Schema:  get(row, colMap[2]),
			Name:    get(row, colMap[3]),
		}
		tables, ok := cat.columns[provider]
		if !ok {
			tables = make(map[TableRef][]string)
			cat.columns[provider] = tables
		}
		cols := tables[ref]
		if col := get(row, colMap[4]); col != "" && !slices.Contains(cols, col) {
			cols = append(cols, col)
		}
		tables[ref] = cols
	}
	return cat, nil
}

// Load the schema CSV from a file.
func Load(path string, c *SchemaConfig) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Annotate(err, "failed to open schema file '%s'", path)
	}
	defer f.Close()
	cat, err := Read(f, c)
	if err != nil {
		return nil, errors.Annotate(err, "failed to load '%s'", path)
	}
	return cat, nil
}

// Providers in the catalog, sorted.
func (c *Catalog) Providers() []string {
	ps := maps.Keys(c.columns)
	slices.Sort(ps)
	return ps
}

// Tables of the provider sorted by table name, then schema and catalog. An
// unknown provider has no tables.
func (c *Catalog) Tables(provider string) []TableRef {
	refs := maps.Keys(c.columns[provider])
	slices.SortFunc(refs, func(a, b TableRef) bool {
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Schema != b.Schema {
			return a.Schema < b.Schema
		}
		return a.Catalog < b.Catalog
	})
	return refs
}

// Columns of the provider's table, in the order of the schema file.
func (c *Catalog) Columns(provider string, ref TableRef) ([]string, error) {
	tables, ok := c.columns[provider]
	if !ok {
		return nil, errors.Reason("unknown provider '%s'", provider)
	}
	cols, ok := tables[ref]
	if !ok {
		return nil, errors.Reason("provider '%s' has no table '%s'",
			provider, ref.QualifiedName())
	}
	return cols, nil
}

// Find the table by its qualified name or, when unambiguous, by its bare name.
func (c *Catalog) Find(provider, name string) (TableRef, error) {
	var found []TableRef
	for _, ref := range c.Tables(provider) {
		if ref.QualifiedName() == name {
			return ref, nil
		}
		if ref.Name == name {
			found = append(found, ref)
		}
	}
	switch len(found) {
	case 0:
		return TableRef{}, errors.Reason("table '%s' not found for '%s'", name, provider)
	case 1:
		return found[0], nil
	}
	return TableRef{}, errors.Reason("table name '%s' is ambiguous for '%s'", name, provider)
}

// TablesTable lists the provider's tables for printing.
func (c *Catalog) TablesTable(provider string) *table.Table {
	t := table.NewTable("Table", "Qualified Name", "Columns")
	for _, ref := range c.Tables(provider) {
		t.AddRow(table.Row{ref.Name, ref.QualifiedName(),
			len(c.columns[provider][ref])})
	}
	return t
}

// ColumnsTable lists the table's columns for printing.
func (c *Catalog) ColumnsTable(provider string, ref TableRef) (*table.Table, error) {
	cols, err := c.Columns(provider, ref)
	if err != nil {
		return nil, errors.Annotate(err, "failed to list columns")
	}
	t := table.NewTable("Column")
	for _, col := range cols {
		t.AddRow(table.Row{col})
	}
	return t, nil
}
