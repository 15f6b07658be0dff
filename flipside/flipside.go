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

package flipside

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"

	"github.com/stockparfait/chainquery/query"
)

type contextKey int

const (
	clientContextKey contextKey = iota
)

// URL is the default base URL of the server. It may be overwritten in tests
// before creating a new client.
var URL = "https://node-api.flipsidecrypto.com"

// Defaults for the client settings.
const (
	MaxPageSize         = 100000
	DefaultTTLMinutes   = 60
	DefaultPollInterval = time.Second
	DefaultTimeout      = 20 * time.Minute
)

// Values of the query run status.
const (
	StatusFinished  = "finished"
	StatusRunning   = "running"
	StatusError     = "error"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Client for running SQL queries on Flipside.
type Client struct {
	baseURL    string // the base URL of the server
	apiKey     string // your very own secret key
	httpClient *http.Client
	tokens     map[string]runToken // SQL -> query run
	now        func() time.Time

	TTLMinutes   int           // how long the server keeps the results
	Cached       bool          // allow the server to reuse an earlier run
	PollInterval time.Duration // between result requests of an unfinished run
	Timeout      time.Duration // max. time to wait for a run to finish
}

// runToken identifies a submitted query run.
type runToken struct {
	token   string
	created time.Time
}

// keyTransport adds the API key to every request.
type keyTransport struct {
	apiKey string
	base   http.RoundTripper
}

func (t *keyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("x-api-key", t.apiKey)
	return t.base.RoundTrip(r)
}

// AuthClient returns a copy of h which sends the API key with every request.
func AuthClient(h *http.Client, apiKey string) *http.Client {
	base := h.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	hc := *h
	hc.Transport = &keyTransport{apiKey: apiKey, base: base}
	return &hc
}

// NewClient creates a new client with default settings.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		httpClient:   AuthClient(http.DefaultClient, apiKey),
		tokens:       make(map[string]runToken),
		now:          time.Now,
		TTLMinutes:   DefaultTTLMinutes,
		Cached:       true,
		PollInterval: DefaultPollInterval,
		Timeout:      DefaultTimeout,
	}
}

// SetHTTPClient for all the requests of this client. The API key is added to
// every request.
func (c *Client) SetHTTPClient(h *http.Client) *Client {
	c.httpClient = AuthClient(h, c.apiKey)
	return c
}

// GetClient extracts the Client from the context, if any.
func GetClient(ctx context.Context) *Client {
	c, ok := ctx.Value(clientContextKey).(*Client)
	if !ok {
		return nil
	}
	return c
}

// UseClient creates a new client based on the API key and injects it into the
// context.
func UseClient(ctx context.Context, apiKey string) context.Context {
	return context.WithValue(ctx, clientContextKey, NewClient(URL, apiKey))
}

func (c *Client) header() http.Header {
	h := make(http.Header)
	h.Set("Accept", "application/json")
	h.Set("x-api-key", c.apiKey)
	return h
}

// createRequest is the JSON body submitting a query.
type createRequest struct {
	SQL        string `json:"sql"`
	TTLMinutes int    `json:"ttlMinutes"`
	Cached     bool   `json:"cached"`
}

// createResponse is the server's response to a submitted query.
type createResponse struct {
	Token  string `json:"token"`
	Errors any    `json:"errors,omitempty"`
}

// resultsPage is the format of a single page of query results.
type resultsPage struct {
	Results      [][]any  `json:"results"`
	ColumnLabels []string `json:"columnLabels"`
	ColumnTypes  []string `json:"columnTypes,omitempty"`
	Status       string   `json:"status"`
	Message      string   `json:"message,omitempty"`
	Errors       any      `json:"errors,omitempty"`
	PageNumber   int      `json:"pageNumber,omitempty"`
	PageSize     int      `json:"pageSize,omitempty"`
	RecordCount  int      `json:"recordCount"`
	StartedAt    string   `json:"startedAt,omitempty"`
	EndedAt      string   `json:"endedAt,omitempty"`
}

// TestCreateResponse generates the JSON string returned by the API for a
// submitted query. For use in tests.
func TestCreateResponse(token string) string {
	b, err := json.Marshal(&createResponse{Token: token})
	if err != nil {
		panic(errors.Annotate(err, "failed to marshal create response"))
	}
	return string(b)
}

// TestResultsPage generates the JSON string in a format as returned by the
// results API. For use in tests.
func TestResultsPage(labels []string, results [][]any, status string) (string, error) {
	b, err := json.Marshal(&resultsPage{
		Results:      results,
		ColumnLabels: labels,
		Status:       status,
		RecordCount:  len(results),
	})
	return string(b), err
}

// CreateQuery submits the SQL text and returns the token of its run.
func (c *Client) CreateQuery(ctx context.Context, sql string) (string, error) {
	body, err := json.Marshal(&createRequest{
		SQL:        sql,
		TTLMinutes: c.TTLMinutes,
		Cached:     c.Cached,
	})
	if err != nil {
		return "", errors.Annotate(err, "failed to marshal query request")
	}
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/queries", bytes.NewReader(body))
	if err != nil {
		return "", errors.Annotate(err, "failed to create request")
	}
	req.Header = c.header()
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Annotate(err, "failed to submit query")
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Annotate(err, "failed to read response body")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", errors.Reason("query submission failed with HTTP %d: %s",
			resp.StatusCode, string(data))
	}
	var cr createResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return "", errors.Annotate(err, "failed to parse response: %s", string(data))
	}
	if cr.Errors != nil {
		return "", errors.Reason("query submission failed: %v", cr.Errors)
	}
	if cr.Token == "" {
		return "", errors.Reason("no query token in response: %s", string(data))
	}
	return cr.Token, nil
}

// token returns the memoized run token for the SQL text, submitting the query
// if there is none or the server no longer keeps its results.
func (c *Client) token(ctx context.Context, sql string) (string, error) {
	ttl := time.Duration(c.TTLMinutes) * time.Minute
	if t, ok := c.tokens[sql]; ok {
		if c.now().Sub(t.created) < ttl {
			return t.token, nil
		}
		logging.Debugf(ctx, "Flipside: token %s expired, resubmitting", t.token)
		delete(c.tokens, sql)
	}
	created := c.now()
	t, err := c.CreateQuery(ctx, sql)
	if err != nil {
		return "", err
	}
	logging.Debugf(ctx, "Flipside: submitted query, token %s", t)
	c.tokens[sql] = runToken{token: t, created: created}
	return t, nil
}

// readPage downloads one page of results of the query run, finished or not.
func (c *Client) readPage(ctx context.Context, token string, pageSize, pageNumber int, page *resultsPage) error {
	uri := c.baseURL + "/queries/" + url.PathEscape(token)
	q := url.Values{
		"pageNumber": []string{strconv.Itoa(pageNumber)},
		"pageSize":   []string{strconv.Itoa(pageSize)},
	}
	ctx = fetch.UseClient(ctx, c.httpClient)
	if err := fetch.FetchJSON(ctx, uri, page, q, nil); err != nil {
		return errors.Annotate(err, "failed to fetch URL")
	}
	return nil
}

func describeFailure(p *resultsPage) string {
	switch {
	case p.Message != "":
		return p.Message
	case p.Errors != nil:
		return fmt.Sprintf("%v", p.Errors)
	}
	return "no details"
}

// QueryPage runs the query, if necessary, and returns the requested page of
// results, waiting for the run to finish.
func (c *Client) QueryPage(ctx context.Context, sql string, pageSize, pageNumber int) (*query.PageResult, error) {
	if pageSize <= 0 || pageSize > MaxPageSize {
		return nil, errors.Reason("page size %d must be in (0, %d]", pageSize, MaxPageSize)
	}
	if pageNumber < 1 {
		return nil, errors.Reason("page number %d must be >= 1", pageNumber)
	}
	token, err := c.token(ctx, sql)
	if err != nil {
		return nil, errors.Annotate(err, "failed to create query")
	}
	deadline := time.Now().Add(c.Timeout)
	var page resultsPage
	for {
		// Clear the page, in case read doesn't overwrite some parts.
		page = resultsPage{}
		if err := c.readPage(ctx, token, pageSize, pageNumber, &page); err != nil {
			return nil, errors.Annotate(err, "failed to read page %d", pageNumber)
		}
		if page.Status == StatusFinished {
			break
		}
		switch page.Status {
		case StatusError, StatusFailed, StatusCancelled:
			delete(c.tokens, sql)
			return nil, errors.Reason("query %s: %s", page.Status, describeFailure(&page))
		}
		if time.Now().After(deadline) {
			return nil, errors.Reason("timed out after %s waiting for query results", c.Timeout)
		}
		logging.Debugf(ctx, "Flipside: query status '%s', waiting", page.Status)
		select {
		case <-ctx.Done():
			return nil, errors.Annotate(ctx.Err(), "interrupted waiting for query results")
		case <-time.After(c.PollInterval):
		}
	}
	records := make([]query.Record, len(page.Results))
	for i, r := range page.Results {
		if len(r) != len(page.ColumnLabels) {
			return nil, errors.Reason("row %d has %d values, expected %d",
				i, len(r), len(page.ColumnLabels))
		}
		rec := make(query.Record, len(r))
		for j, v := range r {
			rec[page.ColumnLabels[j]] = v
		}
		records[i] = rec
	}
	logging.Debugf(ctx, "Flipside: page %d has %d rows", pageNumber, len(records))
	return query.NewPageResult(page.ColumnLabels, records), nil
}

// Provider runs queries using a Client.
type Provider struct {
	Client *Client
}

var _ query.Provider = &Provider{}

// NewProvider for the given client.
func NewProvider(c *Client) *Provider {
	return &Provider{Client: c}
}

// FetchPage implements query.Provider.
func (p *Provider) FetchPage(ctx context.Context, sql string, pageSize, pageNumber int) (*query.PageResult, error) {
	return p.Client.QueryPage(ctx, sql, pageSize, pageNumber)
}

// Factory creates a Provider with the Client from the context. It is intended
// for query.Registry.
func Factory(ctx context.Context) (query.Provider, error) {
	c := GetClient(ctx)
	if c == nil {
		return nil, errors.Reason("no Flipside client in context")
	}
	return NewProvider(c), nil
}
