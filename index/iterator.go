// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package index

import (
	"fmt"

	"github.com/flowtable/incidx/factmap"
)

// PostAggregator computes a derived value from a materialized row's
// already-computed aggregator results. It is the only exercise of
// post-aggregation this module performs; full query execution, including
// expression evaluation over post-aggregator outputs, is out of scope.
type PostAggregator interface {
	Name() string
	Compute(materialized map[string]any) (any, error)
}

// MaterializedRow is one row produced by a RowIterator: the bucket
// timestamp and a mapping from dimension/metric/post-aggregator name to
// its materialized value.
type MaterializedRow struct {
	Timestamp int64
	Values    map[string]any
}

// RowIterator streams an Index's facts in key order, materializing each
// entry into dimension values, aggregator results, and post-aggregator
// results, without mutating any aggregator state.
type RowIterator struct {
	idx     *Index
	entries []factmap.Entry
	post    []PostAggregator
	pos     int
	lastErr error
}

// Iterator returns a RowIterator with no post-aggregators configured.
func (idx *Index) Iterator() *RowIterator {
	return idx.IteratorWithPostAggs(nil)
}

// IteratorWithPostAggs returns a RowIterator that additionally computes
// each post in declared order during materialization.
func (idx *Index) IteratorWithPostAggs(post []PostAggregator) *RowIterator {
	return &RowIterator{idx: idx, entries: idx.facts.Entries(), post: post}
}

// Next materializes the next row in key order, or reports ok=false once
// exhausted.
func (it *RowIterator) Next() (MaterializedRow, bool) {
	if it.pos >= len(it.entries) {
		return MaterializedRow{}, false
	}
	e := it.entries[it.pos]
	it.pos++

	values := make(map[string]any)

	names := it.idx.registry.Names()
	for i, name := range names {
		if i >= len(e.Key.Dims) {
			continue
		}
		tuple := e.Key.Dims[i]
		if len(tuple) == 0 {
			continue
		}
		if len(tuple) == 1 {
			values[name] = tuple[0]
		} else {
			values[name] = []string(tuple)
		}
	}

	buf := it.idx.holder.Arena().SliceAt(0, it.idx.holder.Arena().Capacity())
	for i, name := range it.idx.aggNames {
		abs := e.Offset + it.idx.aggOffsets[i]
		values[name] = it.idx.buffers[i].Get(buf, abs)
	}

	for _, p := range it.post {
		v, err := p.Compute(values)
		if err != nil {
			it.lastErr = fmt.Errorf("post-aggregator %q: %w", p.Name(), err)
			continue
		}
		values[p.Name()] = v
	}

	return MaterializedRow{Timestamp: e.Key.Time, Values: values}, true
}

// Err returns the most recent error raised by a post-aggregator's Compute
// during this iterator's traversal, or nil if none has failed so far. A
// failing post-aggregator's name is simply omitted from the materialized
// row it was computing for; Err lets a caller distinguish "no such
// post-agg value" from "it errored" without Next itself returning error.
func (it *RowIterator) Err() error {
	return it.lastErr
}
