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

import "github.com/flowtable/incidx/agg"

type testRow struct {
	ts     int64
	dims   map[string][]string
	floats map[string]float64
}

func row(ts int64, dims map[string][]string, floats map[string]float64) *testRow {
	return &testRow{ts: ts, dims: dims, floats: floats}
}

func (r *testRow) Timestamp() int64 { return r.ts }

func (r *testRow) DimNames() []string {
	names := make([]string, 0, len(r.dims))
	for n := range r.dims {
		names = append(names, n)
	}
	return names
}

func (r *testRow) DimValues(name string) []string { return r.dims[name] }

func (r *testRow) Float(name string) (float64, bool) {
	v, ok := r.floats[name]
	return v, ok
}

func (r *testRow) Raw(name string) (any, bool) { return nil, false }

var _ agg.Row = (*testRow)(nil)
