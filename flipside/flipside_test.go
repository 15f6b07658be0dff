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
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stockparfait/fetch"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/testutil"

	"github.com/stockparfait/chainquery/query"
	"github.com/stockparfait/chainquery/table"

	. "github.com/smartystreets/goconvey/convey"
)

var testLabels = []string{"block_number", "tx", "__row_index"}

func TestFlipside(t *testing.T) {
	t.Parallel()

	Convey("API calls work correctly", t, func() {
		server := testutil.NewTestServer()
		defer server.Close()
		server.ResponseBody = []string{"{}"}

		ctx := logging.Use(context.Background(), logging.DefaultGoLogger(logging.Error))
		ctx = fetch.UseClient(ctx, server.Client())
		URL = server.URL() + "/api/v1"
		ctx = UseClient(ctx, "testkey")
		client := GetClient(ctx)
		client.SetHTTPClient(server.Client())
		client.PollInterval = time.Millisecond

		page1, err := TestResultsPage(testLabels, [][]any{
			{15000000.0, map[string]any{"hash": "0xa", "fee": 0.1}, 0.0},
			{15000001.0, map[string]any{"hash": "0xb", "fee": 0.2}, 1.0},
		}, StatusFinished)
		So(err, ShouldBeNil)
		empty, err := TestResultsPage(testLabels, nil, StatusFinished)
		So(err, ShouldBeNil)

		Convey("GetClient", func() {
			So(client, ShouldNotBeNil)
			So(client.baseURL, ShouldEqual, server.URL()+"/api/v1")
			So(client.apiKey, ShouldEqual, "testkey")
			So(GetClient(context.Background()), ShouldBeNil)
		})

		Convey("fetches one finished page", func() {
			server.ResponseBody = []string{TestCreateResponse("tok1"), page1}
			res, err := client.QueryPage(ctx, "SELECT 1", 100, 1)
			So(err, ShouldBeNil)
			So(res.Columns, ShouldResemble, testLabels)
			So(res.RecordCount, ShouldEqual, 2)
			So(res.Records[1], ShouldResemble, query.Record{
				"block_number": 15000001.0,
				"tx":           map[string]any{"hash": "0xb", "fee": 0.2},
				"__row_index":  1.0,
			})
			So(server.RequestPath, ShouldEqual, "/api/v1/queries/tok1")
			So(server.RequestQuery, ShouldResemble, url.Values{
				"pageNumber": []string{"1"},
				"pageSize":   []string{"100"},
			})
			So(len(client.tokens), ShouldEqual, 1)
			So(client.tokens["SELECT 1"].token, ShouldEqual, "tok1")
		})

		Convey("polls until the run finishes", func() {
			running, err := TestResultsPage(nil, nil, StatusRunning)
			So(err, ShouldBeNil)
			server.ResponseBody = []string{TestCreateResponse("tok2"), running, running, page1}
			res, err := client.QueryPage(ctx, "SELECT 2", 100, 1)
			So(err, ShouldBeNil)
			So(res.RecordCount, ShouldEqual, 2)
		})

		Convey("reuses the token for later pages", func() {
			server.ResponseBody = []string{TestCreateResponse("tok3"), page1, empty}
			_, err := client.QueryPage(ctx, "SELECT 3", 100, 1)
			So(err, ShouldBeNil)
			res, err := client.QueryPage(ctx, "SELECT 3", 100, 2)
			So(err, ShouldBeNil)
			So(res.RecordCount, ShouldEqual, 0)
			So(server.RequestPath, ShouldEqual, "/api/v1/queries/tok3")
			So(server.RequestQuery.Get("pageNumber"), ShouldEqual, "2")
		})

		Convey("resubmits the query after the results expire", func() {
			now := time.Date(2022, 6, 1, 12, 0, 0, 0, time.UTC)
			client.now = func() time.Time { return now }
			server.ResponseBody = []string{
				TestCreateResponse("tok8"), page1,
				TestCreateResponse("tok9"), page1,
			}
			_, err := client.QueryPage(ctx, "SELECT 8", 100, 1)
			So(err, ShouldBeNil)
			So(server.RequestPath, ShouldEqual, "/api/v1/queries/tok8")

			now = now.Add(time.Duration(client.TTLMinutes+1) * time.Minute)
			_, err = client.QueryPage(ctx, "SELECT 8", 100, 2)
			So(err, ShouldBeNil)
			So(server.RequestPath, ShouldEqual, "/api/v1/queries/tok9")
			So(client.tokens["SELECT 8"], ShouldResemble, runToken{token: "tok9", created: now})
		})

		Convey("reports a failed run", func() {
			failed := `{"status": "error", "message": "SQL compilation error", "results": null}`
			server.ResponseBody = []string{TestCreateResponse("tok4"), failed}
			_, err := client.QueryPage(ctx, "SELEC 4", 100, 1)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "SQL compilation error")
			So(len(client.tokens), ShouldEqual, 0)
		})

		Convey("rejects a submission error", func() {
			server.ResponseBody = []string{`{"token": "", "errors": "invalid API key"}`}
			_, err := client.QueryPage(ctx, "SELECT 5", 100, 1)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "invalid API key")
		})

		Convey("rejects malformed rows", func() {
			bad, err := TestResultsPage(testLabels, [][]any{{1.0}}, StatusFinished)
			So(err, ShouldBeNil)
			server.ResponseBody = []string{TestCreateResponse("tok6"), bad}
			_, err = client.QueryPage(ctx, "SELECT 6", 100, 1)
			So(err, ShouldNotBeNil)
		})

		Convey("validates page arguments", func() {
			_, err := client.QueryPage(ctx, "SELECT 1", 0, 1)
			So(err, ShouldNotBeNil)
			_, err = client.QueryPage(ctx, "SELECT 1", MaxPageSize+1, 1)
			So(err, ShouldNotBeNil)
			_, err = client.QueryPage(ctx, "SELECT 1", 100, 0)
			So(err, ShouldNotBeNil)
			So(len(client.tokens), ShouldEqual, 0)
		})

		Convey("assembles results via Paginator", func() {
			server.ResponseBody = []string{TestCreateResponse("tok7"), page1, empty}
			p, err := query.Registry{query.Flipside: Factory}.Provider(ctx, query.Flipside)
			So(err, ShouldBeNil)
			tbl, err := query.Run(ctx, p, "SELECT 7")
			So(err, ShouldBeNil)
			So(tbl.Header, ShouldResemble, []string{"block_number", "tx.fee", "tx.hash"})
			So(tbl.Rows, ShouldResemble, []table.Row{
				{15000000.0, 0.1, "0xa"},
				{15000001.0, 0.2, "0xb"},
			})
			So(server.RequestQuery.Get("pageSize"), ShouldEqual, "100000")
		})

		Convey("Factory requires a client", func() {
			_, err := Factory(context.Background())
			So(err, ShouldNotBeNil)
		})
	})
}

func TestFlipsideAuth(t *testing.T) {
	t.Parallel()

	Convey("Every request carries the API key", t, func() {
		page, err := TestResultsPage(testLabels, [][]any{{1.0, "x", 0.0}}, StatusFinished)
		So(err, ShouldBeNil)
		var mu sync.Mutex
		var requests []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			requests = append(requests, r.Method+" "+r.Header.Get("x-api-key"))
			mu.Unlock()
			if r.Method == http.MethodPost {
				fmt.Fprint(w, TestCreateResponse("tok"))
				return
			}
			fmt.Fprint(w, page)
		}))
		defer server.Close()

		ctx := logging.Use(context.Background(), logging.DefaultGoLogger(logging.Error))
		client := NewClient(server.URL, "secret").SetHTTPClient(server.Client())
		_, err = client.QueryPage(ctx, "SELECT 1", 100, 1)
		So(err, ShouldBeNil)
		_, err = client.QueryPage(ctx, "SELECT 1", 100, 2)
		So(err, ShouldBeNil)
		mu.Lock()
		defer mu.Unlock()
		So(requests, ShouldResemble, []string{"POST secret", "GET secret", "GET secret"})
	})

	Convey("AuthClient keeps the original client intact", t, func() {
		h := &http.Client{Timeout: time.Second}
		a := AuthClient(h, "secret")
		So(h.Transport, ShouldBeNil)
		So(a.Timeout, ShouldEqual, time.Second)
		So(a.Transport, ShouldNotBeNil)
	})
}
