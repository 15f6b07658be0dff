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

// Package cache memoizes query results by their SQL text for a fixed time to
// live. Entries live in memory and, optionally, in a directory where they
// survive across processes.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"

	"github.com/stockparfait/chainquery/table"
)

// DefaultTTL is the time to live of cached results.
const DefaultTTL = time.Hour

// fileExt of the persisted entries.
const fileExt = ".gob.sz"

func init() {
	// Nested JSON values may appear inside table cells.
	gob.Register([]any{})
	gob.Register(map[string]any{})
}

// Entry is a single cached result.
type Entry struct {
	Query   string
	Table   *table.Table
	Created time.Time
}

// Stats counts cache lookups.
type Stats struct {
	Hits      int
	Misses    int
	Evictions int // expired entries removed on lookup
}

// Cache of query results keyed by the exact SQL text. It is not safe for
// concurrent use.
type Cache struct {
	ttl     time.Duration
	dir     string // persist entries here, when not empty
	now     func() time.Time
	entries map[string]*Entry
	stats   Stats
}

// New creates an in-memory cache with the given time to live.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*Entry),
	}
}

// NewPersistent creates a cache which also stores its entries in dir. The
// directory is created if necessary.
func NewPersistent(ttl time.Duration, dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Annotate(err, "failed to create cache directory '%s'", dir)
	}
	c := New(ttl)
	c.dir = dir
	return c, nil
}

// TTL of the cache entries.
func (c *Cache) TTL() time.Duration { return c.ttl }

func (c *Cache) expired(e *Entry) bool {
	return c.now().Sub(e.Created) >= c.ttl
}

func (c *Cache) fileName(sql string) string {
	h := sha256.Sum256([]byte(sql))
	return filepath.Join(c.dir, hex.EncodeToString(h[:])+fileExt)
}

// Get returns the cached table for the query, if present and not expired.
// Expired entries are evicted. Failures to read a persisted entry are logged
// and treated as a miss.
func (c *Cache) Get(ctx context.Context, sql string) (*table.Table, bool) {
	e, ok := c.entries[sql]
	if !ok && c.dir != "" {
		var err error
		e, err = readEntry(c.fileName(sql))
		switch {
		case err == nil && e.Query == sql:
			c.entries[sql] = e
			ok = true
		case err != nil && !os.IsNotExist(err):
			logging.Warningf(ctx, "failed to read cached entry: %s", err.Error())
		}
	}
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if c.expired(e) {
		c.evict(ctx, sql)
		c.stats.Evictions++
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return e.Table, true
}

// Put stores the table for the query, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, sql string, tbl *table.Table) error {
	e := &Entry{Query: sql, Table: tbl, Created: c.now()}
	c.entries[sql] = e
	if c.dir == "" {
		return nil
	}
	if err := writeEntry(c.fileName(sql), e); err != nil {
		return errors.Annotate(err, "failed to persist cache entry")
	}
	logging.Debugf(ctx, "cached %d rows in %s", tbl.NumRows(), c.fileName(sql))
	return nil
}

func (c *Cache) evict(ctx context.Context, sql string) {
	delete(c.entries, sql)
	if c.dir == "" {
		return
	}
	if err := os.Remove(c.fileName(sql)); err != nil && !os.IsNotExist(err) {
		logging.Warningf(ctx, "failed to remove expired entry: %s", err.Error())
	}
}

// Len is the number of entries in memory, including the expired ones which
// have not been looked up yet.
func (c *Cache) Len() int { return len(c.entries) }

// Entries in memory, oldest first.
func (c *Cache) Entries() []Entry {
	res := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		res = append(res, *e)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Created.Equal(res[j].Created) {
			return res[i].Query < res[j].Query
		}
		return res[i].Created.Before(res[j].Created)
	})
	return res
}

// Stats of the lookups so far.
func (c *Cache) Stats() Stats { return c.stats }

// Purge removes all the entries, including the persisted ones.
func (c *Cache) Purge() error {
	c.entries = make(map[string]*Entry)
	if c.dir == "" {
		return nil
	}
	files, err := os.ReadDir(c.dir)
	if err != nil {
		return errors.Annotate(err, "failed to list cache directory '%s'", c.dir)
	}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), fileExt) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, f.Name())); err != nil {
			return errors.Annotate(err, "failed to remove '%s'", f.Name())
		}
	}
	return nil
}
