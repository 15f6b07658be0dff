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

// Package chart converts query results into chart data for a front end.
package chart

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/stockparfait/chainquery/message"
	"github.com/stockparfait/chainquery/stats"
	"github.com/stockparfait/chainquery/table"
	"github.com/stockparfait/errors"
)

// Kind is an enum for the kinds of X axis: numeric values, or arbitrary
// labels such as dates or addresses.
type Kind int

// Values of Kind.
const (
	KindCategory Kind = iota
	KindXY
	KindLast // to check for invalid kinds
)

var _ json.Marshaler = KindXY

func (k Kind) String() string {
	switch k {
	case KindCategory:
		return "KindCategory"
	case KindXY:
		return "KindXY"
	default:
		return fmt.Sprintf("<Undefined Kind: %d>", k)
	}
}

// MarshalJSON implements json.Marshaler.
func (k Kind) MarshalJSON() ([]byte, error) {
	if k >= KindLast {
		return nil, errors.Reason("invalid kind: %s", k)
	}
	return []byte(`"` + k.String() + `"`), nil
}

// ChartType is an enum of different ways to plot data: as a connected solid or
// dashed line, individual dots, or bars.
type ChartType int

// Values of ChartType.
const (
	ChartLine ChartType = iota
	ChartDashed
	ChartScatter
	ChartBars
	ChartLast // to check for invalid chart types
)

var _ json.Marshaler = ChartLine

func (c ChartType) String() string {
	switch c {
	case ChartLine:
		return "ChartLine"
	case ChartDashed:
		return "ChartDashed"
	case ChartScatter:
		return "ChartScatter"
	case ChartBars:
		return "ChartBars"
	default:
		return fmt.Sprintf("<Undefined ChartType: %d>", c)
	}
}

// MarshalJSON implements json.Marshaler.
func (c ChartType) MarshalJSON() ([]byte, error) {
	if c >= ChartLast {
		return nil, errors.Reason("invalid chart type: %s", c)
	}
	return []byte(`"` + c.String() + `"`), nil
}

// ParseChartType converts a config value into ChartType.
func ParseChartType(s string) (ChartType, error) {
	switch s {
	case "line":
		return ChartLine, nil
	case "dashed":
		return ChartDashed, nil
	case "scatter":
		return ChartScatter, nil
	case "bars":
		return ChartBars, nil
	}
	return ChartLast, errors.Reason("unknown chart type: '%s'", s)
}

// Config of a chart over a query result.
type Config struct {
	X         string   `json:"x" required:"true"`
	Y         []string `json:"y" required:"true"`
	Type      string   `json:"type" default:"line" choices:"line,dashed,scatter,bars"`
	Title     string   `json:"title"`
	YLogScale bool     `json:"log scale"`
}

var _ message.Message = &Config{}

// InitMessage implements message.Message.
func (c *Config) InitMessage(js any) error {
	if err := message.Init(c, js); err != nil {
		return errors.Annotate(err, "failed to init from JSON")
	}
	if len(c.Y) == 0 {
		return errors.Reason("at least one y column is required")
	}
	return nil
}

// Plot is a single Y column of the chart. Y values which are null or not
// numeric are nil.
type Plot struct {
	Legend    string
	Y         []*float64
	ChartType ChartType
}

// Graph is a single chart of one or more plots sharing the same X axis.
type Graph struct {
	Kind      Kind
	Title     string `json:"Title,omitempty"`
	XLabel    string
	X         []string
	Plots     []*Plot
	MinY      float64 `json:"MinY,omitempty"`
	MaxY      float64 `json:"MaxY,omitempty"`
	YLogScale bool    `json:"YLogScale,omitempty"`
}

// NewGraph extracts the configured columns from the table. The graph is of
// KindXY when every X value is numeric.
func NewGraph(tbl *table.Table, c *Config) (*Graph, error) {
	chartType, err := ParseChartType(c.Type)
	if err != nil {
		return nil, errors.Annotate(err, "invalid config")
	}
	xs, err := tbl.Column(c.X)
	if err != nil {
		return nil, errors.Annotate(err, "failed to read X")
	}
	g := &Graph{
		Kind:      KindXY,
		Title:     c.Title,
		XLabel:    c.X,
		X:         make([]string, len(xs)),
		MinY:      math.Inf(1),
		MaxY:      math.Inf(-1),
		YLogScale: c.YLogScale,
	}
	for i, x := range xs {
		if _, ok := stats.Number(x); !ok {
			g.Kind = KindCategory
		}
		g.X[i] = table.String(x)
	}
	for _, name := range c.Y {
		ys, err := tbl.Column(name)
		if err != nil {
			return nil, errors.Annotate(err, "failed to read Y")
		}
		p := &Plot{Legend: name, Y: make([]*float64, len(ys)), ChartType: chartType}
		for i, y := range ys {
			v, ok := stats.Number(y)
			if !ok {
				continue
			}
			p.Y[i] = &v
			g.MinY = math.Min(g.MinY, v)
			g.MaxY = math.Max(g.MaxY, v)
		}
		g.Plots = append(g.Plots, p)
	}
	if g.MinY > g.MaxY { // no numeric values
		g.MinY, g.MaxY = 0, 0
	}
	return g, nil
}

func (g *Graph) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(g); err != nil {
		return errors.Annotate(err, "failed to encode JSON")
	}
	return nil
}

// WriteJS writes "var DATA = <JSON>;" string to w, suitable for importing as a
// javascript module.
func (g *Graph) WriteJS(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "var DATA = "); err != nil {
		return errors.Annotate(err, "failed to write JS prefix")
	}
	if err := g.WriteJSON(w); err != nil {
		return errors.Annotate(err, "failed to write JSON part of JS")
	}
	if _, err := fmt.Fprintf(w, ";"); err != nil {
		return errors.Annotate(err, "failed to write JS suffix")
	}
	return nil
}
