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

import "errors"

// ErrBelowMinTimestamp is returned by Add when a row's timestamp is
// earlier than the index's configured minimum. The row is rejected; the
// index otherwise remains usable.
var ErrBelowMinTimestamp = errors.New("index: row timestamp is below the configured minimum")

// ErrArenaFull is returned by Add when no slot is available in the arena.
// The tentative key is removed from the fact map before this error is
// returned, so a later Add for a different key can still succeed.
var ErrArenaFull = errors.New("index: arena has no room for another slot")

// ErrStrideMismatch is returned by New when the sum of the schema's
// aggregator sizes does not equal the declared row stride.
var ErrStrideMismatch = errors.New("index: sum of aggregator sizes does not match schema stride")

// errTransformerYieldedNull is the panic value raised when a row
// transformer reports no output row; this is treated as an invariant
// violation rather than a recoverable error, matching the teacher's use
// of panic for "this should be impossible" conditions.
var errTransformerYieldedNull = errors.New("index: row transformer yielded no row")

// errDuplicateDimension would signal a dictionary created twice for the
// same dimension name. The registry's mutex-ordered EnsureDim makes this
// structurally unreachable in this implementation (a second caller for an
// in-flight new name blocks and observes created=false rather than racing
// a second creation), but the sentinel is kept so a future registry
// implementation that relaxes that guarantee has something to panic with.
var errDuplicateDimension = errors.New("index: dictionary created twice for the same dimension")
