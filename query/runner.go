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

	"github.com/stockparfait/logging"

	"github.com/stockparfait/chainquery/cache"
)

// CachedRunner consults the cache before running a query, and stores the
// result of every successful run.
type CachedRunner struct {
	Paginator *Paginator
	Cache     *cache.Cache // may be nil, which disables caching
}

// NewCachedRunner for the provider and the cache.
func NewCachedRunner(p Provider, c *cache.Cache) *CachedRunner {
	return &CachedRunner{Paginator: NewPaginator(p), Cache: c}
}

// Run the query or return its cached result. Failed runs are not cached, and
// a failure to store the result is only logged.
func (r *CachedRunner) Run(ctx context.Context, sql string) (*Result, error) {
	if r.Cache != nil {
		if tbl, ok := r.Cache.Get(ctx, sql); ok {
			logging.Infof(ctx, "using cached result with %d rows", tbl.NumRows())
			return &Result{Table: tbl, Stats: Stats{Rows: tbl.NumRows()}, Cached: true}, nil
		}
	}
	res, err := r.Paginator.Run(ctx, sql)
	if err != nil {
		return nil, err
	}
	if r.Cache != nil {
		if err := r.Cache.Put(ctx, sql, res.Table); err != nil {
			logging.Warningf(ctx, "failed to cache the result: %s", err.Error())
		}
	}
	return res, nil
}
