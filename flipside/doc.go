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

// Package flipside implements a client for the Flipside ShroomDK query API.
//
// A query is executed in two steps. First, the SQL text is submitted, and the
// server responds with a token identifying the query run. Then the results are
// requested page by page using the token. Until the run finishes, the server
// reports a non-final status, and the client polls the same page again after a
// short interval.
//
// The server caches query runs, so resubmitting the same SQL is cheap. Within
// a single Client, tokens are also memoized by SQL text, and later pages of the
// same query reuse the token of the first one.
//
// Provider adapts the Client to query.Provider, so that the results can be
// assembled by query.Paginator.
package flipside
