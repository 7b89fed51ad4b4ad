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
	"errors"
	"sync"
	"testing"

	"github.com/flowtable/incidx/agg"
	"github.com/flowtable/incidx/arena"
	"github.com/flowtable/incidx/granularity"
)

func newTestIndex(t *testing.T, minTimestamp int64, gran granularity.Granularity, capacitySlots int) *Index {
	t.Helper()
	factory := agg.Count("count")
	schema := Schema{
		MinTimestamp: minTimestamp,
		Granularity:  gran,
		Stride:       factory.Size(),
		Aggs:         []AggDesc{{Factory: factory, Size: factory.Size()}},
	}
	pool := arena.NewPool()
	holder, err := pool.Take(capacitySlots * factory.Size())
	if err != nil {
		t.Fatal(err)
	}
	idx, err := New(schema, holder)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestTruncationAndMerge(t *testing.T) {
	idx := newTestIndex(t, 0, granularity.Minute, 8)

	if _, err := idx.Add(row(61000, map[string][]string{"host": {"A"}}, nil)); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.Add(row(119000, map[string][]string{"host": {"A"}}, nil)); err != nil {
		t.Fatal(err)
	}

	if idx.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", idx.Size())
	}

	it := idx.Iterator()
	mr, ok := it.Next()
	if !ok {
		t.Fatal("expected one materialized row")
	}
	if mr.Timestamp != 60000 {
		t.Fatalf("Timestamp = %d, want 60000", mr.Timestamp)
	}
	if mr.Values["host"] != "A" {
		t.Fatalf("host = %v, want A", mr.Values["host"])
	}
	if got := mr.Values["count"].(float64); got != 2 {
		t.Fatalf("count = %v, want 2", got)
	}
	if _, ok := it.Next(); ok {
		t.Fatal("expected exactly one row")
	}
}

func TestMultiValueSort(t *testing.T) {
	idx := newTestIndex(t, 0, granularity.None, 4)

	if _, err := idx.Add(row(0, map[string][]string{"tag": {"b", "a", "a"}}, nil)); err != nil {
		t.Fatal(err)
	}

	it := idx.Iterator()
	mr, ok := it.Next()
	if !ok {
		t.Fatal("expected one row")
	}
	tags, ok := mr.Values["tag"].([]string)
	if !ok {
		t.Fatalf("tag = %v (%T), want []string", mr.Values["tag"], mr.Values["tag"])
	}
	want := []string{"a", "a", "b"}
	if len(tags) != len(want) {
		t.Fatalf("tag = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Fatalf("tag = %v, want %v", tags, want)
		}
	}
}

func TestBelowMinTimestamp(t *testing.T) {
	idx := newTestIndex(t, 1000, granularity.None, 4)

	_, err := idx.Add(row(500, nil, nil))
	if !errors.Is(err, ErrBelowMinTimestamp) {
		t.Fatalf("err = %v, want ErrBelowMinTimestamp", err)
	}
	if idx.Size() != 0 {
		t.Fatalf("Size() = %d, want 0", idx.Size())
	}
}

func TestDynamicDimensionDiscovery(t *testing.T) {
	idx := newTestIndex(t, 0, granularity.None, 4)

	if _, err := idx.Add(row(0, map[string][]string{"a": {"1"}}, nil)); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.Add(row(0, map[string][]string{"a": {"1"}, "b": {"2"}}, nil)); err != nil {
		t.Fatal(err)
	}

	dims := idx.Dimensions()
	if len(dims) != 2 || dims[0] != "a" || dims[1] != "b" {
		t.Fatalf("Dimensions() = %v, want [a b]", dims)
	}
	if idx.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", idx.Size())
	}

	it := idx.Iterator()
	seenB := 0
	for {
		mr, ok := it.Next()
		if !ok {
			break
		}
		if mr.Values["a"] != "1" {
			t.Fatalf("a = %v, want 1", mr.Values["a"])
		}
		if v, ok := mr.Values["b"]; ok {
			seenB++
			if v != "2" {
				t.Fatalf("b = %v, want 2", v)
			}
		}
	}
	if seenB != 1 {
		t.Fatalf("exactly one row should carry b, got %d", seenB)
	}
}

func TestArenaFull(t *testing.T) {
	idx := newTestIndex(t, 0, granularity.None, 2)

	for i, key := range []string{"x", "y"} {
		if _, err := idx.Add(row(int64(i), map[string][]string{"k": {key}}, nil)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	_, err := idx.Add(row(2, map[string][]string{"k": {"z"}}, nil))
	if !errors.Is(err, ErrArenaFull) {
		t.Fatalf("err = %v, want ErrArenaFull", err)
	}
	if idx.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", idx.Size())
	}

	// the rejected key must not be retained
	for _, f := range idx.Facts() {
		if len(f.Key.Dims) > 0 && len(f.Key.Dims[0]) > 0 && f.Key.Dims[0][0] == "z" {
			t.Fatal("ArenaFull should not retain the offending key")
		}
	}
}

func TestConcurrentSameKey(t *testing.T) {
	idx := newTestIndex(t, 0, granularity.None, 4)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := idx.Add(row(0, map[string][]string{"k": {"same"}}, nil)); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if idx.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", idx.Size())
	}
	it := idx.Iterator()
	mr, ok := it.Next()
	if !ok {
		t.Fatal("expected one row")
	}
	if got := mr.Values["count"].(float64); got != n {
		t.Fatalf("count = %v, want %d", got, n)
	}
}

func TestIdempotentInsertOfSameRow(t *testing.T) {
	idx := newTestIndex(t, 0, granularity.None, 4)
	r := row(0, map[string][]string{"k": {"same"}}, nil)

	idx.Add(r)
	sizeAfterFirst := idx.Size()
	idx.Add(r)
	if idx.Size() != sizeAfterFirst {
		t.Fatalf("Size() changed after re-adding the same row: %d -> %d", sizeAfterFirst, idx.Size())
	}
}

func TestCapabilityMonotonicity(t *testing.T) {
	idx := newTestIndex(t, 0, granularity.None, 4)

	idx.Add(row(0, map[string][]string{"tag": {"a"}}, nil))
	caps, ok := idx.Capabilities("tag")
	if !ok || caps.MultiValued {
		t.Fatalf("Capabilities before multi-value row = %+v, %v", caps, ok)
	}

	idx.Add(row(1, map[string][]string{"tag": {"a", "b"}}, nil))
	caps, ok = idx.Capabilities("tag")
	if !ok || !caps.MultiValued {
		t.Fatalf("Capabilities after multi-value row = %+v, %v, want MultiValued=true", caps, ok)
	}

	idx.Add(row(2, map[string][]string{"tag": {"c"}}, nil))
	caps, _ = idx.Capabilities("tag")
	if !caps.MultiValued {
		t.Fatal("MultiValued must stay set once observed")
	}
}

func TestIterationIsRepeatable(t *testing.T) {
	idx := newTestIndex(t, 0, granularity.None, 4)
	idx.Add(row(0, map[string][]string{"k": {"a"}}, nil))
	idx.Add(row(1, map[string][]string{"k": {"b"}}, nil))

	first := collect(idx.Iterator())
	second := collect(idx.Iterator())

	if len(first) != len(second) {
		t.Fatalf("iteration lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Timestamp != second[i].Timestamp || first[i].Values["k"] != second[i].Values["k"] {
			t.Fatalf("iteration %d differs between passes: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func collect(it *RowIterator) []MaterializedRow {
	var out []MaterializedRow
	for {
		mr, ok := it.Next()
		if !ok {
			break
		}
		out = append(out, mr)
	}
	return out
}

func TestStrideMismatchRejectedAtConstruction(t *testing.T) {
	factory := agg.Count("count")
	schema := Schema{
		Stride: factory.Size() + 1,
		Aggs:   []AggDesc{{Factory: factory, Size: factory.Size()}},
	}
	pool := arena.NewPool()
	holder, err := pool.Take(64)
	if err != nil {
		t.Fatal(err)
	}
	defer holder.Close()

	_, err = New(schema, holder)
	if !errors.Is(err, ErrStrideMismatch) {
		t.Fatalf("err = %v, want ErrStrideMismatch", err)
	}
}

func TestTransformerYieldedNullPanics(t *testing.T) {
	idx := newTestIndex(t, 0, granularity.None, 4)
	idx.Transformers([]RowTransformer{nullTransformer{}})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for a transformer yielding no row")
		}
	}()
	idx.Add(row(0, nil, nil))
}

type nullTransformer struct{}

func (nullTransformer) Transform(r agg.Row) (agg.Row, bool) { return nil, false }
