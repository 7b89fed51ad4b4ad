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

package rowkey

import (
	"sort"

	"github.com/flowtable/incidx/dict"
)

// DimValues is the sorted (ascending, by content) tuple of canonical
// values a row carries for one dimension. A nil DimValues means the
// dimension is absent from the row.
type DimValues []string

// Key is the composite TimeAndDims ordering key a fact is stored under.
// Dims is aligned to registry order: Dims[i] holds the values for the
// dimension assigned positional index i by the Registry that built this
// Key.
type Key struct {
	Time int64
	Dims []DimValues
}

// Compare returns -1, 0, or 1 as a sorts before, equal to, or after b. It
// is the single source of truth for fact map ordering.
//
// The two Dims slices may have different lengths: a dimension discovered
// after a key was built is conceptually absent from that key, so a
// position past the end of the shorter slice compares exactly as a nil
// (absent) DimValues at that position would, not as "shorter sorts
// first". Two keys differ only where a dimension present in one of them
// actually carries values in the other.
func Compare(a, b Key) int {
	if a.Time != b.Time {
		if a.Time < b.Time {
			return -1
		}
		return 1
	}

	n := len(a.Dims)
	if len(b.Dims) > n {
		n = len(b.Dims)
	}
	for i := 0; i < n; i++ {
		var av, bv DimValues
		if i < len(a.Dims) {
			av = a.Dims[i]
		}
		if i < len(b.Dims) {
			bv = b.Dims[i]
		}
		if c := compareDimValues(av, bv); c != 0 {
			return c
		}
	}
	return 0
}

// compareDimValues orders two per-dimension tuples: absent (nil) sorts
// before any present tuple; two present tuples compare by length first,
// then element-wise by content (§3: "(length, then by string compare of
// each value in order)").
func compareDimValues(a, b DimValues) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	for i := 0; i < len(a); i++ {
		if a[i] < b[i] {
			return -1
		}
		if a[i] > b[i] {
			return 1
		}
	}
	return 0
}

// BuildKey normalizes a set of raw per-dimension values into a Key: every
// value is interned (added to its dimension's dictionary if absent) and
// the resulting tuples are sorted ascending by content. dims that reg has
// not assigned a position are skipped, so callers register every
// dimension first (index.Index does so via Registry.EnsureDim); dicts
// returns the dictionary for each registered name.
func BuildKey(reg *Registry, truncated int64, dims map[string][]string, dicts func(name string) *dict.Dict) (Key, error) {
	k := Key{Time: truncated}
	n := reg.Len()
	if n == 0 && len(dims) == 0 {
		return k, nil
	}

	k.Dims = make([]DimValues, n)
	for name, values := range dims {
		idx, ok := reg.IndexOf(name)
		if !ok {
			continue
		}
		if idx >= len(k.Dims) {
			grown := make([]DimValues, idx+1)
			copy(grown, k.Dims)
			k.Dims = grown
		}
		d := dicts(name)
		tuple := make(DimValues, len(values))
		for i, v := range values {
			tuple[i] = d.Intern(v)
		}
		sort.Strings(tuple)
		k.Dims[idx] = tuple
	}
	return k, nil
}
