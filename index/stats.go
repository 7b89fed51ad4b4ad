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

import "github.com/google/uuid"

// Stats is a point-in-time snapshot of an Index's identity and size, for
// callers correlating one index instance across their own logs or
// metrics. MinTime/MaxTime mirror Index.MinTime/Index.MaxTime exactly
// (the smallest and largest truncated timestamps actually ingested, zero
// if the index is empty); they are not the half-open Interval() bound, so
// MaxTime here is never granularity.Next(max).
type Stats struct {
	ID         uuid.UUID
	Size       int
	Dimensions []string
	Metrics    []string
	MinTime    int64
	MaxTime    int64
}
