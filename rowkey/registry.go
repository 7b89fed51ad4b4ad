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

// Package rowkey implements dimension discovery (Registry) and the
// composite TimeAndDims ordering (Key, Compare, BuildKey) that the fact
// map is sorted by.
//
// The registry's append-only, mutex-ordered shape is modeled on
// ion.Symtab's symbol discovery in the teacher repo: new names are
// assigned the next positional index under a single mutex, and readers
// that only need a stable point-in-time view take an atomic snapshot of
// the slice rather than the write lock.
package rowkey

import (
	"sync"
	"sync/atomic"

	"github.com/flowtable/incidx/dict"
)

// Registry assigns stable, dense, append-only positional indices to
// dimension names as they are first seen, and owns the per-dimension
// dict.Dict instances.
type Registry struct {
	mu    sync.Mutex
	names atomic.Pointer[[]string]
	dicts []*dict.Dict
	index map[string]int

	offheap bool
}

// NewRegistry returns an empty Registry whose per-dimension dictionaries
// use the on-heap (strong) canonicalization strategy.
func NewRegistry() *Registry {
	return NewRegistryOffheap(false)
}

// NewRegistryOffheap returns an empty Registry whose per-dimension
// dictionaries use the weak (bounded) canonicalization strategy when
// offheap is true.
func NewRegistryOffheap(offheap bool) *Registry {
	r := &Registry{index: make(map[string]int), offheap: offheap}
	empty := []string{}
	r.names.Store(&empty)
	return r
}

// IndexOf returns the positional index assigned to name, if any. It takes
// an atomic snapshot of the name list and does not block on EnsureDim.
func (r *Registry) IndexOf(name string) (int, bool) {
	names := *r.names.Load()
	for i, n := range names {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// EnsureDim returns the index and dictionary for name, creating both if
// this is the first time name has been seen. created is true only for the
// call that actually performs the creation; a racing call for the same
// brand-new name blocks on the registry mutex and observes created=false
// once it proceeds.
func (r *Registry) EnsureDim(name string) (idx int, d *dict.Dict, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.index[name]; ok {
		return i, r.dicts[i], false
	}

	idx = len(r.dicts)
	d = dict.New(r.offheap)
	r.dicts = append(r.dicts, d)
	r.index[name] = idx

	old := *r.names.Load()
	updated := make([]string, len(old)+1)
	copy(updated, old)
	updated[len(old)] = name
	r.names.Store(&updated)

	return idx, d, true
}

// Names returns a stable snapshot of dimension names in registry order.
func (r *Registry) Names() []string {
	names := *r.names.Load()
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Len returns the number of dimensions discovered so far.
func (r *Registry) Len() int {
	return len(*r.names.Load())
}

// DictAt returns the dictionary for the dimension at positional index idx,
// or nil if idx is out of range. It takes the registry mutex, so it may be
// called concurrently with EnsureDim. index.Index does not use it: the
// ingestion path resolves dictionaries via EnsureDim.
func (r *Registry) DictAt(idx int) *dict.Dict {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx < 0 || idx >= len(r.dicts) {
		return nil
	}
	return r.dicts[idx]
}
