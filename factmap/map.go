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

// Package factmap implements the fact map: a concurrent, key-ordered
// Key -> offset table.
//
// The shape (one RWMutex guarding a sorted slice, binary search via
// sort.Search rather than a lock-free skip list) follows the teacher
// pack's own sorted in-memory structures, e.g. db/partition.go's plain
// mutex+slice partition list: the ingestion path already serializes all
// offset assignment through a single insertion mutex (see the index
// package), so a more elaborate concurrent data structure here would buy
// nothing.
package factmap

import (
	"sort"
	"sync"

	"github.com/flowtable/incidx/rowkey"
)

// Entry is one (Key, offset) pair, as returned by SubMap.
type Entry struct {
	Key    rowkey.Key
	Offset int
}

// Map is a sorted Key -> offset table ordered by rowkey.Compare.
type Map struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMap returns an empty Map.
func NewMap() *Map {
	return &Map{}
}

// search returns the index of the first entry >= k, and whether that
// entry's key equals k exactly. Callers must hold at least the read lock.
func (m *Map) search(k rowkey.Key) (int, bool) {
	i := sort.Search(len(m.entries), func(i int) bool {
		return rowkey.Compare(m.entries[i].Key, k) >= 0
	})
	return i, i < len(m.entries) && rowkey.Compare(m.entries[i].Key, k) == 0
}

// PutIfAbsent inserts (k, r) if k is not already present, returning the
// prior offset and existed=true if it was. This is the first-writer-wins
// primitive the ingestion path relies on: concurrent PutIfAbsent calls for
// the same key never both believe they inserted.
func (m *Map) PutIfAbsent(k rowkey.Key, r int) (prior int, existed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, found := m.search(k)
	if found {
		return m.entries[i].Offset, true
	}
	m.entries = append(m.entries, Entry{})
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = Entry{Key: k, Offset: r}
	return 0, false
}

// Get returns the offset stored for k, if any.
func (m *Map) Get(k rowkey.Key) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, found := m.search(k)
	if !found {
		return 0, false
	}
	return m.entries[i].Offset, true
}

// Remove deletes the entry for k, if present. It is used only to undo a
// tentative PutIfAbsent after an arena allocation failure.
func (m *Map) Remove(k rowkey.Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, found := m.search(k)
	if !found {
		return
	}
	m.entries = append(m.entries[:i], m.entries[i+1:]...)
}

// Len returns the number of entries currently stored.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// First returns the smallest key and its offset, if the map is non-empty.
func (m *Map) First() (rowkey.Key, int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.entries) == 0 {
		return rowkey.Key{}, 0, false
	}
	e := m.entries[0]
	return e.Key, e.Offset, true
}

// Last returns the largest key and its offset, if the map is non-empty.
func (m *Map) Last() (rowkey.Key, int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.entries) == 0 {
		return rowkey.Key{}, 0, false
	}
	e := m.entries[len(m.entries)-1]
	return e.Key, e.Offset, true
}

// SubMap returns a snapshot of entries with key in the half-open range
// [lo, hi).
func (m *Map) SubMap(lo, hi rowkey.Key) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start, _ := m.search(lo)
	end, _ := m.search(hi)
	if end < start {
		end = start
	}
	out := make([]Entry, end-start)
	copy(out, m.entries[start:end])
	return out
}

// Entries returns a snapshot of every entry in key order. It is the only
// whole-map traversal Map offers; there is no range-over-func iterator.
func (m *Map) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}
