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

// Package query runs SQL against a remote data warehouse and assembles the
// paged results into a single table.
//
// The warehouse is reached through a Provider, which returns one page of
// records per call. A Paginator requests pages 1, 2, ... of PageSize rows
// until a page comes back empty or MaxPages pages have been fetched, whichever
// happens first. Each page is flattened (nested JSON objects become dot-joined
// column paths) and appended to the result table, which takes the union of all
// the columns seen so far. A page whose shape cannot be reconciled with the
// table is dropped, and the run continues.
//
// Note, that reaching MaxPages is not an error: the result is silently capped
// at MaxPages*PageSize rows. Stats.Truncated reports when this may have
// happened.
package query
