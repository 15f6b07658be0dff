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

	"github.com/google/uuid"
	"github.com/stockparfait/logging"

	"github.com/stockparfait/chainquery/table"
)

const (
	// PageSize is the number of rows requested in each page.
	PageSize = 100000
	// MaxPages caps the number of pages fetched in a single run.
	MaxPages = 10
	// RowIndexColumn is the provider's bookkeeping column removed from results.
	RowIndexColumn = "__row_index"
)

// Stats are the diagnostics of a single run.
type Stats struct {
	RunID          string // short random ID used in the logs
	PagesFetched   int    // including the final empty page
	PagesAssembled int
	PagesDropped   int // pages that failed to merge into the table
	Rows           int
	// Truncated is set when the run stopped at MaxPages rather than at an empty
	// page. The data may or may not have had more rows.
	Truncated bool
}

// Result of a query run.
type Result struct {
	Table  *table.Table
	Stats  Stats
	Cached bool // the table came from a cache rather than a run
}

// Paginator runs queries page by page against a single Provider. Runs are
// sequential; a Paginator must not be used by concurrent goroutines.
type Paginator struct {
	provider Provider
	pageSize int
	maxPages int
}

// NewPaginator creates a Paginator with the standard PageSize and MaxPages.
func NewPaginator(p Provider) *Paginator {
	return &Paginator{
		provider: p,
		pageSize: PageSize,
		maxPages: MaxPages,
	}
}

// Run executes the query and assembles all of its pages into a table with the
// RowIndexColumn removed. A query without any rows results in an empty table
// with no columns.
//
// Any Provider failure aborts the run and is returned as *ProviderError, with
// no partial result. Pages which cannot be merged are dropped and counted in
// Stats.PagesDropped. If no page could be assembled, the table is empty. When
// at least one page was assembled but the table lacks RowIndexColumn,
// *table.MissingColumnError is returned.
func (p *Paginator) Run(ctx context.Context, sql string) (*Result, error) {
	stats := Stats{RunID: uuid.New().String()[:8]}
	asm := newAssembler()
	logging.Debugf(ctx, "run %s: %s", stats.RunID, sql)
	for page := 1; page <= p.maxPages; page++ {
		res, err := p.provider.FetchPage(ctx, sql, p.pageSize, page)
		if err != nil {
			return nil, &ProviderError{Page: page, Err: err}
		}
		stats.PagesFetched++
		if res.RecordCount == 0 {
			logging.Debugf(ctx, "run %s: page %d is empty", stats.RunID, page)
			break
		}
		logging.Infof(ctx, "run %s: fetched page %d with %d rows",
			stats.RunID, page, res.RecordCount)
		if page == p.maxPages {
			stats.Truncated = true
			logging.Warningf(ctx, "run %s: stopped at the limit of %d pages",
				stats.RunID, p.maxPages)
		}
		if err := asm.add(page, res); err != nil {
			stats.PagesDropped++
			logging.Warningf(ctx, "run %s: dropping page %d: %s",
				stats.RunID, page, err.Error())
			continue
		}
		stats.PagesAssembled++
	}
	if stats.PagesAssembled > 0 {
		if err := asm.tbl.DropColumn(RowIndexColumn); err != nil {
			return nil, err
		}
	}
	stats.Rows = asm.tbl.NumRows()
	return &Result{Table: asm.tbl, Stats: stats}, nil
}

// Run is a shortcut for running a query with a new Paginator and returning
// only the resulting table.
func Run(ctx context.Context, p Provider, sql string) (*table.Table, error) {
	res, err := NewPaginator(p).Run(ctx, sql)
	if err != nil {
		return nil, err
	}
	return res.Table, nil
}
