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

package stats

import (
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Sample stores an unordered set of numerical data and computes various
// statistics over it.
type Sample struct {
	data   []float64 // keep it private, so we correctly update caches.
	sorted []float64 // cached sorted copy of data for quantiles
}

// NewSample creates a new empty sample.
func NewSample() *Sample {
	return &Sample{}
}

// Data returns the sample data.
func (s *Sample) Data() []float64 { return s.data }

// Len is the number of data points in the sample.
func (s *Sample) Len() int { return len(s.data) }

// Init sets the data in the sample to the provided slice without copying. It
// returns self for inlined declarations.
func (s *Sample) Init(data []float64) *Sample {
	s.data = data
	s.sorted = nil
	return s
}

// Add data points to the sample.
func (s *Sample) Add(xs ...float64) {
	s.data = append(s.data, xs...)
	s.sorted = nil
}

// Mean of the sample; 0 when empty.
func (s *Sample) Mean() float64 {
	if len(s.data) == 0 {
		return 0
	}
	return stat.Mean(s.data, nil)
}

// Sigma is the unbiased standard deviation of the sample; 0 for fewer than two
// points.
func (s *Sample) Sigma() float64 {
	if len(s.data) < 2 {
		return 0
	}
	_, std := stat.MeanStdDev(s.data, nil)
	return std
}

// Min of the sample; 0 when empty.
func (s *Sample) Min() float64 {
	if len(s.data) == 0 {
		return 0
	}
	return floats.Min(s.data)
}

// Max of the sample; 0 when empty.
func (s *Sample) Max() float64 {
	if len(s.data) == 0 {
		return 0
	}
	return floats.Max(s.data)
}

// Quantile q in [0..1] of the sample as its empirical inverse CDF; 0 when
// empty.
func (s *Sample) Quantile(q float64) float64 {
	if len(s.data) == 0 {
		return 0
	}
	if s.sorted == nil {
		s.sorted = slices.Clone(s.data)
		slices.Sort(s.sorted)
	}
	return stat.Quantile(q, stat.Empirical, s.sorted, nil)
}

// Median of the sample.
func (s *Sample) Median() float64 { return s.Quantile(0.5) }
