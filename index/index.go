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

// Package index implements the incremental fact index: the public entry
// point that wires together arena, dict, rowkey, factmap, and agg into
// the ingestion path, row iteration, and lifecycle described by the
// surrounding packages.
package index

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/flowtable/incidx/agg"
	"github.com/flowtable/incidx/arena"
	"github.com/flowtable/incidx/dict"
	"github.com/flowtable/incidx/factmap"
	"github.com/flowtable/incidx/rowkey"
)

// Capabilities describes what has been observed about one column over
// the life of an index. MultiValued is monotonic: once set, it is never
// cleared. SpatiallyIndexed is carried for interface completeness with
// the source system's column capability model; this module does not
// perform spatial indexing and never sets it.
type Capabilities struct {
	Kind             string
	MultiValued      bool
	SpatiallyIndexed bool
}

// RowTransformer maps one input row to another before ingestion. A
// transformer that cannot produce an output row must report ok=false;
// Add treats that as a fatal invariant violation and panics, matching the
// source system's treatment of a transformer yielding no row.
type RowTransformer interface {
	Transform(row agg.Row) (out agg.Row, ok bool)
}

// Index is the incremental, in-memory, column-oriented fact index.
type Index struct {
	id uuid.UUID

	minTimestamp int64
	granularity  interface {
		Truncate(int64) int64
		Next(int64) int64
	}
	stride int

	holder *arena.Holder

	registry *rowkey.Registry
	facts    *factmap.Map

	aggNames   []string
	aggTypes   []string
	aggOffsets []int
	buffers    []agg.Buffer
	aggMus     []sync.Mutex

	capsMu sync.Mutex
	caps   map[string]*Capabilities

	transformersMu sync.Mutex
	transformers   []RowTransformer

	insertMu   sync.Mutex
	numEntries int

	closeOnce sync.Once
	closeErr  error
}

// New constructs an Index from schema, using holder as its backing arena.
// The arena's capacity determines how many row slots the index can ever
// hold; New does not itself impose a row count limit.
func New(schema Schema, holder *arena.Holder) (*Index, error) {
	sum := 0
	for _, a := range schema.Aggs {
		sum += a.Size
	}
	if sum != schema.Stride {
		return nil, fmt.Errorf("%w: sum=%d stride=%d", ErrStrideMismatch, sum, schema.Stride)
	}

	idx := &Index{
		id:           uuid.New(),
		minTimestamp: schema.MinTimestamp,
		granularity:  schema.Granularity,
		stride:       schema.Stride,
		holder:       holder,
		registry:     rowkey.NewRegistryOffheap(schema.Offheap),
		facts:        factmap.NewMap(),
		caps:         make(map[string]*Capabilities),
	}

	idx.aggNames = make([]string, len(schema.Aggs))
	idx.aggTypes = make([]string, len(schema.Aggs))
	idx.aggOffsets = make([]int, len(schema.Aggs))
	idx.buffers = make([]agg.Buffer, len(schema.Aggs))
	idx.aggMus = make([]sync.Mutex, len(schema.Aggs))

	offset := 0
	for i, a := range schema.Aggs {
		sel := idx.selectorsFor(a.Factory.Name())
		buf, err := a.Factory.Factorize(sel)
		if err != nil {
			return nil, fmt.Errorf("factorizing aggregator %q: %w", a.Factory.Name(), err)
		}
		idx.aggNames[i] = a.Factory.Name()
		idx.aggTypes[i] = a.Factory.TypeName()
		idx.aggOffsets[i] = offset
		idx.buffers[i] = buf
		offset += a.Size
	}

	return idx, nil
}

// ID returns the UUID assigned to this Index at construction, used to
// correlate a single index instance across a caller's own logs.
func (idx *Index) ID() uuid.UUID { return idx.id }

// selectorsFor builds the ColumnSelectors an aggregator factory uses to
// read a row at Aggregate time. Every selector here is a pure function of
// the row passed to Aggregate; none of them depend on ambient state.
func (idx *Index) selectorsFor(metricName string) agg.ColumnSelectors {
	return agg.ColumnSelectors{
		Timestamp: func(r agg.Row) int64 { return r.Timestamp() },
		Float: func(name string) func(agg.Row) (float64, bool) {
			return func(r agg.Row) (float64, bool) { return r.Float(name) }
		},
		Object: func(name string) func(agg.Row) (any, bool) {
			return func(r agg.Row) (any, bool) { return r.Raw(name) }
		},
		Dimension: func(name string) func(agg.Row) agg.DimSeq {
			return func(r agg.Row) agg.DimSeq { return rowDimSeq(r.DimValues(name)) }
		},
	}
}

type rowDimSeq []string

func (s rowDimSeq) Len() int { return len(s) }
func (s rowDimSeq) At(i int) string { return s[i] }
func (s rowDimSeq) LookupName(name string) (int, bool) {
	for i, v := range s {
		if v == name {
			return i, true
		}
	}
	return 0, false
}
func (s rowDimSeq) LookupID(id int) (string, bool) {
	if id < 0 || id >= len(s) {
		return "", false
	}
	return s[id], true
}

// Transformers installs the row transformer chain. It is construction-time
// configuration: callers must not call it concurrently with Add.
func (idx *Index) Transformers(ts []RowTransformer) {
	idx.transformersMu.Lock()
	defer idx.transformersMu.Unlock()
	idx.transformers = ts
}

// Add ingests row, returning the post-insert row count. It implements the
// transform / dimension-resolution / key-build / slot-reservation /
// per-aggregator-update pipeline.
func (idx *Index) Add(row agg.Row) (int, error) {
	row = idx.runTransformers(row)

	if row.Timestamp() < idx.minTimestamp {
		return idx.Size(), ErrBelowMinTimestamp
	}

	dims, err := idx.resolveDimensions(row)
	if err != nil {
		return idx.Size(), err
	}

	truncated := idx.granularity.Truncate(row.Timestamp())
	if truncated < idx.minTimestamp {
		truncated = idx.minTimestamp
	}

	key, err := rowkey.BuildKey(idx.registry, truncated, dims.values, dims.dictFor)
	if err != nil {
		return idx.Size(), err
	}

	offset, err := idx.reserveSlot(key)
	if err != nil {
		return idx.Size(), err
	}

	buf := idx.holder.Arena().SliceAt(0, idx.holder.Arena().Capacity())
	for i, b := range idx.buffers {
		abs := offset + idx.aggOffsets[i]
		idx.aggMus[i].Lock()
		b.Aggregate(buf, abs, row)
		idx.aggMus[i].Unlock()
	}

	return idx.Size(), nil
}

func (idx *Index) runTransformers(row agg.Row) agg.Row {
	idx.transformersMu.Lock()
	chain := idx.transformers
	idx.transformersMu.Unlock()

	for _, t := range chain {
		next, ok := t.Transform(row)
		if !ok {
			panic(errTransformerYieldedNull)
		}
		row = next
	}
	return row
}

// resolvedDims carries per-row dimension values keyed by down-cased name,
// plus the dictionary lookup BuildKey needs to intern them. It does not
// record which dimensions this call newly discovered; capability
// bookkeeping happens inline in resolveDimensions instead.
type resolvedDims struct {
	values  map[string][]string
	dictFor func(name string) *dict.Dict
}

// resolveDimensions implements dimension resolution: every dimension
// named on the row is lowercased, assigned a registry position (creating
// it and its dictionary on first sighting), and has its column
// capabilities updated (string kind on first sighting, multi-valued once
// a row contributes more than one value).
func (idx *Index) resolveDimensions(row agg.Row) (resolvedDims, error) {
	values := make(map[string][]string)
	dicts := make(map[string]*dict.Dict)

	for _, rawName := range row.DimNames() {
		name := strings.ToLower(rawName)
		vs := row.DimValues(rawName)

		_, d, _ := idx.registry.EnsureDim(name)
		dicts[name] = d
		values[name] = vs

		idx.updateCapabilities(name, len(vs) > 1)
	}

	return resolvedDims{
		values: values,
		dictFor: func(name string) *dict.Dict {
			return dicts[name]
		},
	}, nil
}

func (idx *Index) updateCapabilities(name string, multiValued bool) {
	idx.capsMu.Lock()
	defer idx.capsMu.Unlock()
	c, ok := idx.caps[name]
	if !ok {
		c = &Capabilities{Kind: "string"}
		idx.caps[name] = c
	}
	if multiValued {
		c.MultiValued = true
	}
}

// reserveSlot performs slot reservation under the insertion mutex: a
// first-writer-wins PutIfAbsent, an arena bounds check with rollback on
// overflow, and per-aggregator Init on success. It returns the absolute
// byte offset of the reserved (or reused) slot.
func (idx *Index) reserveSlot(key rowkey.Key) (int, error) {
	idx.insertMu.Lock()
	defer idx.insertMu.Unlock()

	tentative := idx.stride * idx.numEntries
	prior, existed := idx.facts.PutIfAbsent(key, tentative)
	if existed {
		return prior, nil
	}

	capacity := idx.holder.Arena().Capacity()
	if tentative+idx.stride > capacity {
		idx.facts.Remove(key)
		return 0, ErrArenaFull
	}

	idx.numEntries++

	buf := idx.holder.Arena().SliceAt(0, capacity)
	for i, b := range idx.buffers {
		b.Init(buf, tentative+idx.aggOffsets[i])
	}

	return tentative, nil
}

// Size returns the number of distinct keys ingested so far.
func (idx *Index) Size() int {
	return idx.facts.Len()
}

// IsEmpty reports whether Size() == 0.
func (idx *Index) IsEmpty() bool {
	return idx.Size() == 0
}

// MinTime returns the smallest truncated timestamp ingested, if any.
func (idx *Index) MinTime() (int64, bool) {
	k, _, ok := idx.facts.First()
	if !ok {
		return 0, false
	}
	return k.Time, true
}

// MaxTime returns the largest truncated timestamp ingested, if any.
func (idx *Index) MaxTime() (int64, bool) {
	k, _, ok := idx.facts.Last()
	if !ok {
		return 0, false
	}
	return k.Time, true
}

// Interval returns the half-open [min, granularity.Next(max)) timestamp
// range covered by the index, degenerating to [MinTimestamp,
// MinTimestamp) when empty.
func (idx *Index) Interval() (lo, hi int64) {
	min, ok := idx.MinTime()
	if !ok {
		return idx.minTimestamp, idx.minTimestamp
	}
	max, _ := idx.MaxTime()
	return min, idx.granularity.Next(max)
}

// Dimensions returns the discovered dimension names in registry order.
func (idx *Index) Dimensions() []string {
	return idx.registry.Names()
}

// MetricType returns the declared aggregator TypeName for a metric name.
func (idx *Index) MetricType(name string) (string, bool) {
	for i, n := range idx.aggNames {
		if n == name {
			return idx.aggTypes[i], true
		}
	}
	return "", false
}

// MetricNames returns the configured aggregator names in schema order.
func (idx *Index) MetricNames() []string {
	out := make([]string, len(idx.aggNames))
	copy(out, idx.aggNames)
	return out
}

// MetricIndex returns the schema-order position of a metric name.
func (idx *Index) MetricIndex(name string) (int, bool) {
	for i, n := range idx.aggNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// Capabilities returns what has been observed so far about column.
func (idx *Index) Capabilities(column string) (Capabilities, bool) {
	idx.capsMu.Lock()
	defer idx.capsMu.Unlock()
	c, ok := idx.caps[strings.ToLower(column)]
	if !ok {
		return Capabilities{}, false
	}
	return *c, true
}

// Facts returns a snapshot of every (key, offset) pair in key order.
func (idx *Index) Facts() []factmap.Entry {
	return idx.facts.Entries()
}

// SubMap returns a snapshot of entries with key in [lo, hi).
func (idx *Index) SubMap(lo, hi rowkey.Key) []factmap.Entry {
	return idx.facts.SubMap(lo, hi)
}

// Stats returns a point-in-time snapshot of index identity and size.
func (idx *Index) Stats() Stats {
	min, _ := idx.MinTime()
	max, _ := idx.MaxTime()
	return Stats{
		ID:         idx.id,
		Size:       idx.Size(),
		Dimensions: idx.Dimensions(),
		Metrics:    idx.MetricNames(),
		MinTime:    min,
		MaxTime:    max,
	}
}

// Close releases the arena holder. It is idempotent and safe to call on
// an empty index.
func (idx *Index) Close() error {
	idx.closeOnce.Do(func() {
		idx.closeErr = idx.holder.Close()
	})
	return idx.closeErr
}
