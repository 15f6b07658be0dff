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
	"fmt"
)

// ProviderError is any failure returned by a Provider. It aborts the run.
type ProviderError struct {
	Page int // the page being fetched
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("failed to fetch page %d: %s", e.Page, e.Err.Error())
}

func (e *ProviderError) Unwrap() error { return e.Err }

// AssemblyError reports a page whose flattened columns conflict with the
// shape of the already assembled table: the same path is both a value and a
// nested object.
type AssemblyError struct {
	Page   int
	Column string
	Reason string
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("page %d: column '%s': %s", e.Page, e.Column, e.Reason)
}
