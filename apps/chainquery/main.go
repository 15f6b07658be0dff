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

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"

	"github.com/stockparfait/chainquery/cache"
	"github.com/stockparfait/chainquery/catalog"
	"github.com/stockparfait/chainquery/chart"
	"github.com/stockparfait/chainquery/flipside"
	"github.com/stockparfait/chainquery/message"
	"github.com/stockparfait/chainquery/metrics"
	"github.com/stockparfait/chainquery/query"
	"github.com/stockparfait/chainquery/stats"
	"github.com/stockparfait/chainquery/table"

	toml "github.com/pelletier/go-toml/v2"
)

// FallbackMessage is printed instead of the results of a failed query.
const FallbackMessage = "Write a new query."

// KeyEnv is the environment variable with the Flipside API key. It takes
// precedence over the key in the config file.
const KeyEnv = "FLIPSIDE_KEY"

var (
	providers = query.Registry{query.Flipside: flipside.Factory}
	// httpClient for all the requests to the providers, which add their own
	// authentication.
	httpClient = http.DefaultClient
)

type Flags struct {
	Cache    string // default: ~/.chainquery
	LogLevel logging.Level
	Provider string // overrides the config
	SQL      string
	File     string // file with the SQL query; "-" for stdin
	CSV      bool   // print CSV; default: text
	Rows     int    // max. rows to print; 0 = all
	Width    int    // max. column width for text output; 0 = unlimited
	Tables   bool   // list the provider's tables
	Columns  string // list the columns of this table
	Describe bool   // print column summaries instead of the rows
	Chart    string // chart config file; print chart JSON instead of the rows
	Metrics  string // write metrics to this file
	NoCache  bool
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("chainquery", flag.ExitOnError)
	fs.StringVar(&flags.Cache, "cache",
		filepath.Join(os.Getenv("HOME"), ".chainquery"),
		"configuration and cache path")
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")
	fs.StringVar(&flags.Provider, "provider", "", "query provider; default: from config")
	fs.StringVar(&flags.SQL, "sql", "", "SQL query to run")
	fs.StringVar(&flags.File, "file", "", "file with the SQL query, '-' for stdin")
	fs.BoolVar(&flags.CSV, "csv", false, "print table in CSV format; default: text")
	fs.IntVar(&flags.Rows, "rows", 0, "max. number of rows to print; 0 = all")
	fs.IntVar(&flags.Width, "width", 0, "max. column width in text output, 0 or >= 4")
	fs.BoolVar(&flags.Tables, "tables", false, "list the tables of the provider")
	fs.StringVar(&flags.Columns, "columns", "", "list the columns of the table")
	fs.BoolVar(&flags.Describe, "describe", false, "print summaries of the result columns")
	fs.StringVar(&flags.Chart, "chart", "", "chart config file; print chart JSON")
	fs.StringVar(&flags.Metrics, "metrics", "", "write Prometheus metrics to this file")
	fs.BoolVar(&flags.NoCache, "no-cache", false, "do not use cached results")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	browsing := flags.Tables || flags.Columns != ""
	switch {
	case flags.SQL != "" && flags.File != "":
		return nil, errors.Reason("-sql and -file are mutually exclusive")
	case !browsing && flags.SQL == "" && flags.File == "":
		return nil, errors.Reason("one of -sql, -file, -tables or -columns is required")
	case flags.Describe && flags.Chart != "":
		return nil, errors.Reason("-describe and -chart are mutually exclusive")
	}
	return &flags, nil
}

type Config struct {
	Key      string `toml:"key"`       // Flipside API key
	Provider string `toml:"provider"`  // default: Flipside
	BaseURL  string `toml:"base_url"`  // default: the public Flipside API
	Schema   string `toml:"schema"`    // default: <cache>/provider_schema_data.csv
	CacheTTL string `toml:"cache_ttl"` // default: 1h
}

const sampleConfig = `key = "YourSecretFlipsideKey"
provider = "Flipside"
cache_ttl = "1h"
`

// parseConfig reads config.toml from the directory, if present, and fills in
// the defaults.
func parseConfig(dir string) (*Config, error) {
	c := Config{
		Provider: string(query.Flipside),
		Schema:   "provider_schema_data.csv",
		CacheTTL: cache.DefaultTTL.String(),
	}
	filePath := filepath.Join(dir, "config.toml")
	f, err := os.Open(filePath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, errors.Annotate(err, "failed to open config file %s", filePath)
	default:
		defer f.Close()
		if err := toml.NewDecoder(f).Decode(&c); err != nil {
			return nil, errors.Annotate(err, "failed to read config file %s", filePath)
		}
	}
	if !filepath.IsAbs(c.Schema) {
		c.Schema = filepath.Join(dir, c.Schema)
	}
	return &c, nil
}

// apiKey from the environment or the config.
func (c *Config) apiKey(dir string) (string, error) {
	if key := os.Getenv(KeyEnv); key != "" {
		return key, nil
	}
	if c.Key != "" {
		return c.Key, nil
	}
	return "", errors.Reason(
		"no API key: set %s or create %s containing:\n%s",
		KeyEnv, filepath.Join(dir, "config.toml"), sampleConfig)
}

func (c *Config) cacheTTL() (time.Duration, error) {
	ttl, err := time.ParseDuration(c.CacheTTL)
	if err != nil {
		return 0, errors.Annotate(err, "invalid cache_ttl")
	}
	return ttl, nil
}

func readQuery(flags *Flags, in io.Reader) (string, error) {
	if flags.SQL != "" {
		return flags.SQL, nil
	}
	var b []byte
	var err error
	if flags.File == "-" {
		b, err = io.ReadAll(in)
	} else {
		b, err = os.ReadFile(flags.File)
	}
	if err != nil {
		return "", errors.Annotate(err, "failed to read the query from '%s'", flags.File)
	}
	sql := strings.TrimSpace(string(b))
	if sql == "" {
		return "", errors.Reason("the query is empty")
	}
	return sql, nil
}

func printTable(tbl *table.Table, flags *Flags, w io.Writer) error {
	if flags.CSV {
		if err := tbl.WriteCSV(w, table.Params{Rows: flags.Rows}); err != nil {
			return errors.Annotate(err, "failed to print CSV")
		}
		return nil
	}
	p := table.Params{Rows: flags.Rows, MaxColWidth: flags.Width}
	if err := tbl.WriteText(w, p); err != nil {
		return errors.Annotate(err, "failed to print text")
	}
	return nil
}

func browseSchema(flags *Flags, config *Config, provider string, w io.Writer) error {
	cat, err := catalog.Load(config.Schema, catalog.NewSchemaConfig())
	if err != nil {
		return errors.Annotate(err, "failed to load schema")
	}
	if flags.Tables {
		return printTable(cat.TablesTable(provider), flags, w)
	}
	ref, err := cat.Find(provider, flags.Columns)
	if err != nil {
		return errors.Annotate(err, "failed to find table")
	}
	tbl, err := cat.ColumnsTable(provider, ref)
	if err != nil {
		return errors.Annotate(err, "failed to list columns")
	}
	return printTable(tbl, flags, w)
}

func newRunner(ctx context.Context, flags *Flags, config *Config, provider string) (context.Context, *query.CachedRunner, error) {
	key, err := config.apiKey(flags.Cache)
	if err != nil {
		return nil, nil, err
	}
	if config.BaseURL != "" {
		flipside.URL = config.BaseURL
	}
	ctx = flipside.UseClient(ctx, key)
	flipside.GetClient(ctx).SetHTTPClient(httpClient)

	p, err := providers.Provider(ctx, query.ProviderName(provider))
	if err != nil {
		return nil, nil, errors.Annotate(err, "failed to create provider")
	}
	var c *cache.Cache
	if !flags.NoCache {
		ttl, err := config.cacheTTL()
		if err != nil {
			return nil, nil, err
		}
		c, err = cache.NewPersistent(ttl, filepath.Join(flags.Cache, "results"))
		if err != nil {
			return nil, nil, errors.Annotate(err, "failed to create cache")
		}
	}
	return ctx, query.NewCachedRunner(p, c), nil
}

func printResult(ctx context.Context, flags *Flags, res *query.Result, w io.Writer) error {
	switch {
	case flags.Describe:
		return printTable(stats.SummaryTable(stats.SummarizeAll(ctx, res.Table)), flags, w)
	case flags.Chart != "":
		var config chart.Config
		if err := message.FromFile(&config, flags.Chart); err != nil {
			return errors.Annotate(err, "failed to read chart config")
		}
		g, err := chart.NewGraph(res.Table, &config)
		if err != nil {
			return errors.Annotate(err, "failed to create chart")
		}
		return g.WriteJSON(w)
	}
	return printTable(res.Table, flags, w)
}

func printData(ctx context.Context, flags *Flags, in io.Reader, w io.Writer) error {
	config, err := parseConfig(flags.Cache)
	if err != nil {
		return errors.Annotate(err, "failed to parse config")
	}
	provider := config.Provider
	if flags.Provider != "" {
		provider = flags.Provider
	}
	if flags.Tables || flags.Columns != "" {
		return browseSchema(flags, config, provider, w)
	}
	sql, err := readQuery(flags, in)
	if err != nil {
		return err
	}
	ctx, runner, err := newRunner(ctx, flags, config, provider)
	if err != nil {
		return err
	}
	m := metrics.New()
	start := time.Now()
	res, err := runner.Run(ctx, sql)
	if err != nil {
		m.ObserveFailure(time.Since(start))
		if _, ok := err.(*query.ProviderError); ok {
			logging.Debugf(ctx, "query failed: %s", err.Error())
			_, err = fmt.Fprintln(w, FallbackMessage)
		} else {
			err = errors.Annotate(err, "failed to assemble query results")
		}
	} else {
		m.ObserveRun(res, time.Since(start))
		logging.Infof(ctx, "%d rows, %d pages fetched, %d dropped, truncated: %v, cached: %v",
			res.Stats.Rows, res.Stats.PagesFetched, res.Stats.PagesDropped,
			res.Stats.Truncated, res.Cached)
		err = printResult(ctx, flags, res, w)
	}
	if flags.Metrics != "" {
		if mErr := m.WriteFile(flags.Metrics); mErr != nil {
			logging.Warningf(ctx, "%s", mErr.Error())
		}
	}
	return err
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags: %s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))

	if err := printData(ctx, flags, os.Stdin, os.Stdout); err != nil {
		logging.Errorf(ctx, "%s", err.Error())
		os.Exit(1)
	}
}
