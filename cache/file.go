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

package cache

import (
	"encoding/gob"
	"os"
	"time"

	"github.com/golang/snappy"
	"github.com/stockparfait/errors"

	"github.com/stockparfait/chainquery/table"
)

// diskEntry is the persisted form of an Entry.
type diskEntry struct {
	Query   string
	Created time.Time
	Header  []string
	Rows    []table.Row
}

func writeEntry(fileName string, e *Entry) error {
	f, err := os.OpenFile(fileName, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Annotate(err, "failed to open file for writing: '%s'", fileName)
	}
	defer f.Close()
	w := snappy.NewBufferedWriter(f)
	de := diskEntry{
		Query:   e.Query,
		Created: e.Created,
		Header:  e.Table.Header,
		Rows:    e.Table.Rows,
	}
	if err = gob.NewEncoder(w).Encode(&de); err != nil {
		return errors.Annotate(err, "failed to write to '%s'", fileName)
	}
	if err = w.Close(); err != nil {
		return errors.Annotate(err, "failed to flush '%s'", fileName)
	}
	return nil
}

func readEntry(fileName string) (*Entry, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err // callers check os.IsNotExist
	}
	defer f.Close()
	var de diskEntry
	if err = gob.NewDecoder(snappy.NewReader(f)).Decode(&de); err != nil {
		return nil, errors.Annotate(err, "failed to read from '%s'", fileName)
	}
	tbl := table.NewTable(de.Header...)
	tbl.AddRow(de.Rows...)
	return &Entry{Query: de.Query, Table: tbl, Created: de.Created}, nil
}
