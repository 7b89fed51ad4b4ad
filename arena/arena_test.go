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

import (
	"testing"
)

func TestSliceAtBounds(t *testing.T) {
	a, err := New(64)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	s := a.SliceAt(0, 32)
	s[0] = 'x'
	s2 := a.SliceAt(32, 32)
	if s2[0] == 'x' {
		t.Fatalf("slots alias: expected disjoint regions")
	}

	if a.Capacity() != 64 {
		t.Fatalf("Capacity() = %d, want 64", a.Capacity())
	}
}

func TestSliceAtOutOfRangePanics(t *testing.T) {
	a, err := New(16)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for out-of-range slice")
		}
	}()
	a.SliceAt(8, 16)
}

func TestCloseIdempotent(t *testing.T) {
	a, err := New(0)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close() returned error: %v", err)
	}
}

func TestNewMmapBacked(t *testing.T) {
	a, err := New(MmapThreshold)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	s := a.SliceAt(0, MmapThreshold)
	s[0] = 1
	s[MmapThreshold-1] = 1
	if a.Capacity() != MmapThreshold {
		t.Fatalf("Capacity() = %d, want %d", a.Capacity(), MmapThreshold)
	}
}

func TestPoolReuse(t *testing.T) {
	p := NewPool()

	h, err := p.Take(128)
	if err != nil {
		t.Fatal(err)
	}
	a1 := h.Arena()
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}

	h2, err := p.Take(128)
	if err != nil {
		t.Fatal(err)
	}
	if h2.Arena() != a1 {
		t.Fatalf("expected Pool.Take to recycle the idle arena")
	}
	if err := h2.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestPoolCloseIdempotent(t *testing.T) {
	p := NewPool()
	h, err := p.Take(64)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close() returned error: %v", err)
	}
}
