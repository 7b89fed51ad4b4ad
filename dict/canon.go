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

package dict

import (
	"sync"

	"github.com/dchest/siphash"
)

// strongCanon retains every distinct value forever, the way a small
// on-heap dimension dictionary naturally does: there is no eviction, so
// equal content always maps to the same string header for the life of the
// Dict.
type strongCanon struct {
	mu     sync.Mutex
	values map[string]string
}

func newStrongCanon() *strongCanon {
	return &strongCanon{values: make(map[string]string)}
}

func (c *strongCanon) Intern(v string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.values[v]; ok {
		return s
	}
	c.values[v] = v
	return v
}

// weakCanonShards is the number of independent LRU shards a weakCanon
// splits its cache into, reducing lock contention when many goroutines
// intern values concurrently (Index.Add interns every row's dimension
// values) the same way a sharded cache does in the rest of the pack.
const weakCanonShards = 16

// weakCanonShardCap bounds how many entries a single shard retains before
// evicting the least recently used value. This makes the cache's memory
// footprint bounded regardless of cardinality, trading perfect
// deduplication for a fixed ceiling, which is the whole point of choosing
// the off-heap strategy over the strong one.
const weakCanonShardCap = 4096

// weakCanon is a bounded, content-addressed interning cache: a value that
// falls out of its shard's LRU list may later be interned again as a
// distinct string header. It never affects dictionary correctness (the id
// table in Dict is unaffected), only whether two equal values happen to
// share memory.
type weakCanon struct {
	shards [weakCanonShards]canonShard
	k0, k1 uint64
}

type canonShard struct {
	mu    sync.Mutex
	order []string          // most-recently-used at the end
	pos   map[string]int    // value -> index into order
	value map[string]string // value -> canonical value
}

func newWeakCanon() *weakCanon {
	w := &weakCanon{k0: 0x9e3779b97f4a7c15, k1: 0xbf58476d1ce4e5b9}
	for i := range w.shards {
		w.shards[i].pos = make(map[string]int)
		w.shards[i].value = make(map[string]string)
	}
	return w
}

func (w *weakCanon) shardFor(v string) *canonShard {
	h := siphash.Hash(w.k0, w.k1, []byte(v))
	return &w.shards[h%uint64(weakCanonShards)]
}

func (w *weakCanon) Intern(v string) string {
	s := w.shardFor(v)
	s.mu.Lock()
	defer s.mu.Unlock()

	if canonical, ok := s.value[v]; ok {
		s.touch(v)
		return canonical
	}

	if len(s.order) >= weakCanonShardCap {
		s.evictOldest()
	}
	s.value[v] = v
	s.pos[v] = len(s.order)
	s.order = append(s.order, v)
	return v
}

func (s *canonShard) touch(v string) {
	i, ok := s.pos[v]
	if !ok || i == len(s.order)-1 {
		return
	}
	s.order = append(s.order[:i], s.order[i+1:]...)
	for k := i; k < len(s.order); k++ {
		s.pos[s.order[k]] = k
	}
	s.pos[v] = len(s.order)
	s.order = append(s.order, v)
}

func (s *canonShard) evictOldest() {
	if len(s.order) == 0 {
		return
	}
	oldest := s.order[0]
	s.order = s.order[1:]
	delete(s.pos, oldest)
	delete(s.value, oldest)
	for k := range s.order {
		s.pos[s.order[k]] = k
	}
}
