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
	"context"

	"github.com/stockparfait/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Record is a single result row: column name -> JSON value.
type Record = map[string]any

// PageResult is one page of query results as returned by a Provider.
type PageResult struct {
	Columns     []string // column order as reported by the provider, may be nil
	Records     []Record
	RecordCount int // len(Records); 0 means there is no more data
}

// NewPageResult creates a PageResult with a consistent RecordCount.
func NewPageResult(columns []string, records []Record) *PageResult {
	return &PageResult{
		Columns:     columns,
		Records:     records,
		RecordCount: len(records),
	}
}

// Provider fetches a single page of results of a SQL query. Page numbers start
// at 1, and pageSize is in (0, PageSize].
//
// A Provider instance is not required to be safe for concurrent use;
// concurrent runs should use separate instances.
type Provider interface {
	FetchPage(ctx context.Context, sql string, pageSize, pageNumber int) (*PageResult, error)
}

// ProviderName identifies a warehouse provider.
type ProviderName string

// Known provider names.
const (
	Flipside ProviderName = "Flipside"
)

// Factory creates a new Provider instance.
type Factory func(ctx context.Context) (Provider, error)

// Registry maps provider names to their factories.
type Registry map[ProviderName]Factory

// Names of the registered providers in alphabetical order.
func (r Registry) Names() []ProviderName {
	names := maps.Keys(r)
	slices.Sort(names)
	return names
}

// Provider creates a new instance of the named provider.
func (r Registry) Provider(ctx context.Context, name ProviderName) (Provider, error) {
	f, ok := r[name]
	if !ok {
		return nil, errors.Reason("unknown provider: '%s'", name)
	}
	p, err := f(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "failed to create provider %s", name)
	}
	return p, nil
}
