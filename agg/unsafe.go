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

package agg

import "unsafe"

// floatPtr reinterprets the 8 bytes at buf[offset:offset+8] as a *float64,
// the same way the teacher's vm aggregators address their scratch buffer
// regions directly rather than copying through an accessor.
func floatPtr(buf []byte, offset int) *float64 {
	return (*float64)(unsafe.Pointer(&buf[offset]))
}
