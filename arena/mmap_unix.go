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

//go:build linux || darwin

package arena

import (
	"golang.org/x/sys/unix"
)

// unix (linux, darwin) implementation of the off-heap arena backing,
// grounded on the teacher's vm/malloc_linux.go and vm/malloc_darwin.go,
// which reserve VM regions with the equivalent syscalls directly rather
// than through golang.org/x/sys/unix; this module uses the portable
// x/sys/unix wrapper since, unlike the teacher's VM, it has no need for a
// single oversized fixed reservation shared across every arena instance.
func mapAnon(capacity int) ([]byte, error) {
	return unix.Mmap(-1, 0, capacity, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
}

func unmapAnon(buf []byte) error {
	return unix.Munmap(buf)
}
