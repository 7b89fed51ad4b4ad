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

// Package dict implements the per-dimension string dictionary: a
// bidirectional string<->id table with an optional sorted view for rank
// lookup, plus a swappable canonicalization (interning) strategy.
//
// The id table is modeled on ion.Symtab's toindex/interned pair in the
// teacher repo (golang.org/x/exp/slices for clone-on-alias bookkeeping),
// generalized away from Symtab's ion-specific system-symbol numbering: a
// Dict's ids start at 0 and are otherwise dense and stable for the life of
// the index, whereas Symtab reserves low ids for ion's predefined symbols.
package dict

import (
	"errors"
	"sort"
	"sync"

	"golang.org/x/exp/slices"
)

// ErrNotSorted is returned by SortedRank when Sort has not been called
// since the last Add.
var ErrNotSorted = errors.New("dict: SortedRank called before Sort")

// Canonicalizer decides whether two equal strings share a single string
// header. It is the only policy axis between the two interning strategies
// described in the spec; the id table itself never varies.
type Canonicalizer interface {
	// Intern returns a canonical identity for v, logically equal to v.
	Intern(v string) string
}

// Dict is a per-dimension string dictionary: value -> id (dense, 0-based,
// insertion order) and id -> value, with interning delegated to a
// Canonicalizer. Unlike ion.Symtab, which assumes a single writer per
// decode stream, a Dict is shared across every concurrent row that
// discovers a value for the same dimension, so every exported method
// serializes on mu internally.
type Dict struct {
	mu sync.Mutex

	canon Canonicalizer

	toindex  map[string]int
	interned []string
	aliased  int // len(interned) at the last Sort; set clones interned before overwriting below it

	sorted      []string
	sortedValid bool
}

// New returns a Dict using the weak (bounded, memory-reclaimable)
// canonicalization cache when offheap is true, or the strong
// (retain-forever) table otherwise. Per the spec's resolution of the
// "useOffheap forced true" open question, this argument is always honored.
func New(offheap bool) *Dict {
	var c Canonicalizer
	if offheap {
		c = newWeakCanon()
	} else {
		c = newStrongCanon()
	}
	return &Dict{
		canon:   c,
		toindex: make(map[string]int),
	}
}

// Len returns the number of distinct values interned so far.
func (d *Dict) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.interned)
}

// Contains reports whether v has already been assigned an id.
func (d *Dict) Contains(v string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.toindex[v]
	return ok
}

// IDOf returns the id assigned to v, or (0, false) if v has never been
// added. Per the spec's resolution of the "getId has no null guard" open
// question, callers must check the boolean; there is no sentinel id.
func (d *Dict) IDOf(v string) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.toindex[v]
	return id, ok
}

// ValueOf returns the value assigned to id, or ("", false) if id is out of
// range.
func (d *Dict) ValueOf(id int) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id < 0 || id >= len(d.interned) {
		return "", false
	}
	return d.interned[id], true
}

// Add assigns the next id to v and returns it. Add serializes on the
// Dict's own mutex: concurrent callers introducing new values for the
// same dimension (the common case on the ingestion path, where many rows
// race to discover the same brand-new dimension value) never observe a
// torn toindex/interned pair and never trigger Go's fatal concurrent
// map-write detector.
//
// Add must be called at most once per distinct v. The id is recorded
// before v is run through the Canonicalizer (see FLAG-CANON-ORDER), so the
// id table and the canonicalization cache never disagree about which
// string header backs a given id.
func (d *Dict) Add(v string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addLocked(v)
}

func (d *Dict) addLocked(v string) int {
	id := len(d.interned)
	d.append(v)
	d.toindex[v] = id
	d.canon.Intern(d.interned[id])
	d.sortedValid = false
	return id
}

// Intern returns the canonical identity for v, adding it to the dictionary
// first if it is not already present. Intern is idempotent: interning the
// same content twice returns the same string content (and, for the strong
// canonicalizer, the same string header).
func (d *Dict) Intern(v string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if id, ok := d.toindex[v]; ok {
		return d.canon.Intern(d.interned[id])
	}
	d.addLocked(v)
	return d.canon.Intern(v)
}

func (d *Dict) append(v string) {
	if i := len(d.interned); i < cap(d.interned) {
		d.interned = d.interned[:i+1]
		d.set(i, v)
		return
	}
	d.interned = append(d.interned, v)
}

func (d *Dict) set(i int, v string) {
	if d.interned[i] != v {
		if i < d.aliased {
			d.interned = slices.Clone(d.interned)
			d.aliased = 0
		}
		d.interned[i] = v
	}
}

// Sort materializes a sorted (by content) snapshot of the interned values
// for SortedRank/SortedValue. The next Add invalidates it.
func (d *Dict) Sort() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sorted = append(d.sorted[:0], d.interned...)
	sort.Strings(d.sorted)
	d.aliased = len(d.interned)
	d.sortedValid = true
}

// SortedRank returns the rank (index into the sorted view) of v, or
// ErrNotSorted if Sort has not been called since the last Add.
func (d *Dict) SortedRank(v string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.sortedValid {
		return 0, ErrNotSorted
	}
	i := sort.SearchStrings(d.sorted, v)
	if i >= len(d.sorted) || d.sorted[i] != v {
		return 0, errNotFound
	}
	return i, nil
}

// SortedValue returns the value at the given rank in the sorted view, or
// ("", false) if rank is out of range or Sort has not been called.
func (d *Dict) SortedValue(rank int) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.sortedValid || rank < 0 || rank >= len(d.sorted) {
		return "", false
	}
	return d.sorted[rank], true
}

var errNotFound = errors.New("dict: value not present in sorted view")
