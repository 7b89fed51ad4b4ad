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
	"github.com/flowtable/incidx/agg"
	"github.com/flowtable/incidx/granularity"
)

// AggDesc describes one metric slot: the factory that produces its
// Buffer, and the byte width that factory's Buffer occupies within a row
// slot. Size is supplied by the caller (LoadSchema fills it from
// Factory.Size()); New does not call Factory.Size() itself, it validates
// the sum of the Size fields against Schema.Stride before any slot is
// ever reserved.
type AggDesc struct {
	Factory agg.Factory
	Size    int
}

// Schema describes the fixed shape of an Index: its minimum timestamp,
// its time granularity, its row stride, and its ordered aggregator
// descriptors. AggDesc order determines each aggregator's byte offset
// within a row slot.
type Schema struct {
	MinTimestamp int64
	Granularity  granularity.Granularity
	Stride       int
	Aggs         []AggDesc
	// Offheap selects the weak (bounded) dictionary canonicalization
	// strategy for every dimension discovered by this index, rather than
	// the default on-heap strong table.
	Offheap bool
}
