// Copyright (C) 2024 Entrace Authors.
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

//go:build linux

package mmapfile

import "golang.org/x/sys/unix"

// advise hints to the kernel that the mapping will be accessed by
// offset jumps rather than sequentially, the way the indexed reader
// actually touches it (span bodies are reached through the offset
// table, not read front-to-back). MADV_RANDOM disables the readahead
// that would otherwise be wasted work for that access pattern. A
// failure here is not fatal: the mapping is still usable without the
// hint, just without this one optimization.
func advise(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Madvise(data, unix.MADV_RANDOM)
}
