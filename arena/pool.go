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

package arena

import "sync"

// maxIdle bounds how many unused arenas of a given capacity the Pool will
// keep around for reuse rather than unmapping immediately on Close. This
// generalizes the teacher's single global VMM (one fixed-size mapping,
// reused forever) to a pool keyed by the caller-chosen capacity, since an
// incremental index's arena size is schema-driven rather than a single
// process-wide constant.
const maxIdle = 4

// Pool recycles Arenas by capacity so that repeatedly creating and closing
// indexes of the same shape doesn't repeatedly map and unmap OS memory.
type Pool struct {
	mu   sync.Mutex
	idle map[int][]*Arena
}

// NewPool returns an empty Pool.
func NewPool() *Pool {
	return &Pool{idle: make(map[int][]*Arena)}
}

// Holder is a scoped acquisition of an Arena from a Pool: the arena is
// guaranteed to be released (returned to the pool, or unmapped if the pool
// is already holding enough spares) when Close is called, on any exit path.
type Holder struct {
	pool   *Pool
	arena  *Arena
	closed bool
}

// Take acquires an Arena of the given capacity, either recycled from the
// pool's idle list or freshly allocated.
func (p *Pool) Take(capacity int) (*Holder, error) {
	p.mu.Lock()
	bucket := p.idle[capacity]
	var a *Arena
	if n := len(bucket); n > 0 {
		a = bucket[n-1]
		p.idle[capacity] = bucket[:n-1]
	}
	p.mu.Unlock()

	if a == nil {
		var err error
		a, err = New(capacity)
		if err != nil {
			return nil, err
		}
	}
	return &Holder{pool: p, arena: a}, nil
}

// Arena returns the underlying arena. It remains valid until Close.
func (h *Holder) Arena() *Arena {
	return h.arena
}

// Close returns the arena to its pool, or unmaps it outright if the pool
// already has enough spares of that capacity cached. Close is idempotent.
func (h *Holder) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true

	capacity := h.arena.Capacity()
	h.pool.mu.Lock()
	bucket := h.pool.idle[capacity]
	keep := len(bucket) < maxIdle
	if keep {
		h.pool.idle[capacity] = append(bucket, h.arena)
	}
	h.pool.mu.Unlock()

	if keep {
		return nil
	}
	return h.arena.Close()
}
