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

// Package arena implements the fixed-capacity byte region that an
// incremental index packs all of its aggregator intermediate state into.
//
// The arena itself does no bookkeeping beyond bounds checks: allocation of
// row slots (the logical "cursor") is the caller's responsibility. This
// mirrors the VM memory region in the teacher repo (vm/malloc.go), which
// also hands out raw pages from a fixed-size backing mapping and leaves
// all higher-level accounting to its caller.
package arena

import (
	"errors"
	"fmt"
)

// MmapThreshold is the capacity at or above which New backs the arena with
// an anonymous mmap instead of a plain Go heap allocation. Below this size
// the overhead of a syscall round-trip isn't worth it.
const MmapThreshold = 1 << 20 // 1 MiB

// ErrClosed is the panic value SliceAt raises on an arena that has already
// been closed.
var ErrClosed = errors.New("arena: use after close")

// Arena is a fixed-capacity byte region subdivided by the caller into
// equal-size slots.
type Arena struct {
	buf    []byte
	mapped bool // true if buf is backed by an OS mapping that must be released
	closed bool
}

// New allocates an Arena with the given capacity in bytes. Capacity must be
// non-negative; a zero-capacity arena is valid and immediately full.
func New(capacity int) (*Arena, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("arena: negative capacity %d", capacity)
	}
	if capacity >= MmapThreshold {
		buf, err := mapAnon(capacity)
		if err != nil {
			// fall back to a heap allocation rather than fail the caller
			// outright; mmap can be refused in sandboxed environments.
			return &Arena{buf: make([]byte, capacity)}, nil
		}
		return &Arena{buf: buf, mapped: true}, nil
	}
	return &Arena{buf: make([]byte, capacity)}, nil
}

// Capacity returns the total size of the arena in bytes.
func (a *Arena) Capacity() int {
	return len(a.buf)
}

// SliceAt returns a view of length bytes starting at offset. It panics if
// the requested range falls outside the arena; that is always a programmer
// error (the caller is expected to have checked bounds against Capacity
// before calling), never a row-level failure.
func (a *Arena) SliceAt(offset, length int) []byte {
	if a.closed {
		panic(ErrClosed)
	}
	if offset < 0 || length < 0 || offset+length > len(a.buf) {
		panic(fmt.Errorf("arena: slice [%d:%d) out of range for capacity %d", offset, offset+length, len(a.buf)))
	}
	return a.buf[offset : offset+length : offset+length]
}

// Close releases the arena's backing storage. Close is idempotent and safe
// to call on an arena that was never written to.
func (a *Arena) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	if a.mapped {
		buf := a.buf
		a.buf = nil
		return unmapAnon(buf)
	}
	a.buf = nil
	return nil
}
