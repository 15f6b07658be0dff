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
	"testing"

	"github.com/stockparfait/chainquery/table"

	. "github.com/smartystreets/goconvey/convey"
)

func TestAssemble(t *testing.T) {
	t.Parallel()

	Convey("flattenRecord", t, func() {
		Convey("follows the provider's column order", func() {
			rec := Record{"b": 1.0, "a": "x", "c": nil}
			fields := flattenRecord(rec, []string{"c", "b", "a"})
			So(fields, ShouldResemble, []field{
				{path: "c"},
				{path: "b", value: 1.0},
				{path: "a", value: "x"},
			})
		})

		Convey("expands nested objects only", func() {
			rec := Record{
				"tx": map[string]any{
					"to":   "0x2",
					"from": "0x1",
					"logs": []any{map[string]any{"topic": "t"}},
					"meta": map[string]any{},
					"gas":  map[string]any{"used": 21000.0},
				},
			}
			fields := flattenRecord(rec, []string{"tx"})
			So(fields, ShouldResemble, []field{
				{path: "tx.from", value: "0x1", parents: []string{"tx"}},
				{path: "tx.gas.used", value: 21000.0, parents: []string{"tx", "tx.gas"}},
				{path: "tx.logs", value: []any{map[string]any{"topic": "t"}}, parents: []string{"tx"}},
				{path: "tx.to", value: "0x2", parents: []string{"tx"}},
			})
		})

		Convey("keeps dotted top-level keys as plain columns", func() {
			fields := flattenRecord(Record{"a": 1.0, "a.b": 2.0}, nil)
			So(fields, ShouldResemble, []field{
				{path: "a", value: 1.0},
				{path: "a.b", value: 2.0},
			})
		})

		Convey("appends unknown keys sorted", func() {
			rec := Record{"z": 1.0, "a": 2.0, "m": 3.0}
			fields := flattenRecord(rec, []string{"m"})
			So(fields, ShouldResemble, []field{
				{path: "m", value: 3.0},
				{path: "a", value: 2.0},
				{path: "z", value: 1.0},
			})
		})

		Convey("ignores duplicate provider columns", func() {
			fields := flattenRecord(Record{"a": 1.0, "b": 2.0}, []string{"a", "a"})
			So(fields, ShouldResemble, []field{
				{path: "a", value: 1.0},
				{path: "b", value: 2.0},
			})
		})
	})

	Convey("assembler", t, func() {
		a := newAssembler()
		So(a.add(1, NewPageResult([]string{"x", "y"}, []Record{
			{"x": 1.0, "y": map[string]any{"z": "a"}},
		})), ShouldBeNil)
		So(a.tbl.Header, ShouldResemble, []string{"x", "y.z"})

		Convey("adds new columns", func() {
			So(a.add(2, NewPageResult(nil, []Record{{"w": true}})), ShouldBeNil)
			So(a.tbl.Header, ShouldResemble, []string{"x", "y.z", "w"})
			So(a.tbl.Rows, ShouldResemble, []table.Row{{1.0, "a"}, {nil, nil, true}})
		})

		Convey("rejects a value where an object was", func() {
			err := a.add(2, NewPageResult(nil, []Record{{"y": 1.0}}))
			So(err, ShouldResemble, &AssemblyError{Page: 2, Column: "y",
				Reason: "a value here but a nested object in earlier pages"})
			So(a.tbl.NumRows(), ShouldEqual, 1)
		})

		Convey("rejects an object where a value was", func() {
			err := a.add(3, NewPageResult(nil, []Record{{"w": 0.0, "x": map[string]any{"q": 1.0}}}))
			So(err, ShouldResemble, &AssemblyError{Page: 3, Column: "x",
				Reason: "a nested object here but a value in earlier pages"})
			So(a.tbl.Header, ShouldResemble, []string{"x", "y.z"})
		})

		Convey("accepts a null where an object was", func() {
			So(a.add(2, NewPageResult(nil, []Record{{"y": nil}})), ShouldBeNil)
			So(a.tbl.Header, ShouldResemble, []string{"x", "y.z", "y"})
		})

		Convey("accepts an object where only nulls were", func() {
			So(a.add(2, NewPageResult(nil, []Record{{"v": nil}})), ShouldBeNil)
			So(a.add(3, NewPageResult(nil, []Record{{"v": map[string]any{"q": 1.0}}})),
				ShouldBeNil)
			So(a.tbl.Header, ShouldResemble, []string{"x", "y.z", "v", "v.q"})
			So(a.tbl.Rows[2], ShouldResemble, table.Row{nil, nil, nil, 1.0})
		})
	})
}
