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
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stockparfait/chainquery/table"
	"github.com/stockparfait/testutil"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSample(t *testing.T) {
	t.Parallel()

	Convey("Sample works", t, func() {
		s := NewSample().Init([]float64{4, 1, 3, 2, 5})
		So(s.Len(), ShouldEqual, 5)
		So(s.Mean(), ShouldEqual, 3.0)
		So(testutil.Round(s.Sigma(), 4), ShouldEqual, 1.581)
		So(s.Min(), ShouldEqual, 1.0)
		So(s.Max(), ShouldEqual, 5.0)
		So(s.Median(), ShouldEqual, 3.0)
		So(s.Quantile(0), ShouldEqual, 1.0)
		So(s.Quantile(1), ShouldEqual, 5.0)
		So(s.Data(), ShouldResemble, []float64{4, 1, 3, 2, 5})

		Convey("quantile cache is reset on Add", func() {
			s.Add(6, 7)
			So(s.Median(), ShouldEqual, 4.0)
		})
	})

	Convey("Empty sample is all zeros", t, func() {
		s := NewSample()
		So(s.Mean(), ShouldEqual, 0.0)
		So(s.Sigma(), ShouldEqual, 0.0)
		So(s.Min(), ShouldEqual, 0.0)
		So(s.Median(), ShouldEqual, 0.0)
		So(s.Max(), ShouldEqual, 0.0)
	})
}

func TestSummary(t *testing.T) {
	t.Parallel()

	tbl := table.NewTable("block", "fee", "label", "empty")
	tbl.AddRow(
		table.Row{1.0, 0.5, "swap"},
		table.Row{2.0, json.Number("1.5"), "transfer"},
		table.Row{3.0, nil, "swap"},
		table.Row{4.0, 2.5},
	)

	Convey("Number works", t, func() {
		x, ok := Number(2)
		So(ok, ShouldBeTrue)
		So(x, ShouldEqual, 2.0)
		_, ok = Number("2")
		So(ok, ShouldBeFalse)
		_, ok = Number(json.Number("abc"))
		So(ok, ShouldBeFalse)
	})

	Convey("SummarizeAll works", t, func() {
		ctx := context.Background()
		sums := SummarizeAll(ctx, tbl)
		So(len(sums), ShouldEqual, 4)
		So(sums[0], ShouldResemble, Summary{
			Index: 0, Column: "block", Count: 4, Numeric: 4,
			Mean: 2.5, Sigma: sums[0].Sigma, Min: 1, Median: 2, Max: 4,
		})
		So(testutil.Round(sums[0].Sigma, 4), ShouldEqual, 1.291)
		So(sums[1].Column, ShouldEqual, "fee")
		So(sums[1].Count, ShouldEqual, 3)
		So(sums[1].Numeric, ShouldEqual, 3)
		So(sums[1].Mean, ShouldEqual, 1.5)
		So(sums[1].Median, ShouldEqual, 1.5)
		So(sums[2], ShouldResemble, Summary{
			Index: 2, Column: "label", Count: 3})
		So(sums[3], ShouldResemble, Summary{Index: 3, Column: "empty"})

		Convey("and renders as a table", func() {
			var buf bytes.Buffer
			So(SummaryTable(sums).WriteCSV(&buf, table.Params{}), ShouldBeNil)
			So(buf.String(), ShouldEqual, `Column,Count,Numeric,Mean,StdDev,Min,Median,Max
block,4,4,2.5,`+table.String(sums[0].Sigma)+`,1,2,4
fee,3,3,1.5,1,0.5,1.5,2.5
label,3,0,,,,,
empty,0,0,,,,,
`)
		})
	})
}
