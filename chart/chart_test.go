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

package chart

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stockparfait/chainquery/table"
	"github.com/stockparfait/testutil"

	. "github.com/smartystreets/goconvey/convey"
)

func TestChart(t *testing.T) {
	t.Parallel()

	tbl := table.NewTable("day", "block", "fee", "volume")
	tbl.AddRow(
		table.Row{"2022-06-01", 100.0, 0.5, 10.0},
		table.Row{"2022-06-02", 101.0, "n/a", 30.0},
		table.Row{"2022-06-03", 102.0, 1.5},
	)
	f := func(x float64) *float64 { return &x }

	Convey("Config works", t, func() {
		var c Config
		So(c.InitMessage(testutil.JSON(`{"x": "day", "y": ["fee"]}`)), ShouldBeNil)
		So(c, ShouldResemble, Config{X: "day", Y: []string{"fee"}, Type: "line"})

		So(c.InitMessage(testutil.JSON(`{"x": "day"}`)), ShouldNotBeNil)
		So(c.InitMessage(testutil.JSON(`{"x": "day", "y": []}`)), ShouldNotBeNil)
		So(c.InitMessage(testutil.JSON(`{"x": "day", "y": ["fee"], "type": "pie"}`)),
			ShouldNotBeNil)
	})

	Convey("ParseChartType works", t, func() {
		for s, ct := range map[string]ChartType{
			"line": ChartLine, "dashed": ChartDashed, "scatter": ChartScatter,
			"bars": ChartBars,
		} {
			res, err := ParseChartType(s)
			So(err, ShouldBeNil)
			So(res, ShouldEqual, ct)
		}
		_, err := ParseChartType("pie")
		So(err, ShouldNotBeNil)
	})

	Convey("NewGraph works", t, func() {
		Convey("for category X", func() {
			g, err := NewGraph(tbl, &Config{
				X: "day", Y: []string{"fee", "volume"}, Type: "bars", Title: "Fees"})
			So(err, ShouldBeNil)
			So(g, ShouldResemble, &Graph{
				Kind:   KindCategory,
				Title:  "Fees",
				XLabel: "day",
				X:      []string{"2022-06-01", "2022-06-02", "2022-06-03"},
				Plots: []*Plot{
					{Legend: "fee", Y: []*float64{f(0.5), nil, f(1.5)}, ChartType: ChartBars},
					{Legend: "volume", Y: []*float64{f(10), f(30), nil}, ChartType: ChartBars},
				},
				MinY: 0.5,
				MaxY: 30,
			})
		})

		Convey("for numeric X", func() {
			g, err := NewGraph(tbl, &Config{X: "block", Y: []string{"fee"}, Type: "line"})
			So(err, ShouldBeNil)
			So(g.Kind, ShouldEqual, KindXY)
			So(g.X, ShouldResemble, []string{"100", "101", "102"})
		})

		Convey("for missing columns", func() {
			_, err := NewGraph(tbl, &Config{X: "date", Y: []string{"fee"}, Type: "line"})
			So(err, ShouldNotBeNil)
			_, err = NewGraph(tbl, &Config{X: "day", Y: []string{"gas"}, Type: "line"})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "column 'gas' not found")
		})

		Convey("without numeric values", func() {
			g, err := NewGraph(tbl, &Config{X: "block", Y: []string{"day"}, Type: "line"})
			So(err, ShouldBeNil)
			So(g.MinY, ShouldEqual, 0.0)
			So(g.MaxY, ShouldEqual, 0.0)
		})
	})

	Convey("Graph exports to JSON and JS", t, func() {
		g, err := NewGraph(tbl, &Config{X: "block", Y: []string{"fee"}, Type: "scatter"})
		So(err, ShouldBeNil)

		var buf bytes.Buffer
		So(g.WriteJSON(&buf), ShouldBeNil)
		var js any
		So(json.Unmarshal(buf.Bytes(), &js), ShouldBeNil)
		So(js, ShouldResemble, testutil.JSON(`{
  "Kind": "KindXY",
  "XLabel": "block",
  "X": ["100", "101", "102"],
  "Plots": [{"Legend": "fee", "Y": [0.5, null, 1.5], "ChartType": "ChartScatter"}],
  "MinY": 0.5,
  "MaxY": 1.5
}`))

		buf.Reset()
		So(g.WriteJS(&buf), ShouldBeNil)
		So(buf.String(), ShouldStartWith, "var DATA = {")
		So(buf.String(), ShouldEndWith, "}\n;")
	})

	Convey("Invalid enums fail to marshal", t, func() {
		_, err := json.Marshal(KindLast)
		So(err, ShouldNotBeNil)
		_, err = json.Marshal(ChartLast)
		So(err, ShouldNotBeNil)
	})
}
