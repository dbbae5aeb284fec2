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

// Package mmapfile memory-maps a file read-only for the indexed-form
// reader. It is a thin wrapper around github.com/edsrzf/mmap-go, which
// is cross-platform (unlike a raw syscall.Mmap call, which would need a
// //go:build variant per OS).
package mmapfile

import (
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// File is a read-only memory-mapped file. The zero value is not usable;
// construct one with Open.
type File struct {
	f    *os.File
	data mmap.MMap
}

// Open memory-maps path for reading. The caller must call Close when
// done to release the mapping and the underlying file descriptor.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapfile: mapping %s: %w", path, err)
	}
	advise(data)
	return &File{f: f, data: data}, nil
}

// Bytes returns the mapped region. Callers must not retain slices of it
// past Close.
func (m *File) Bytes() []byte { return m.data }

// Close unmaps the region and closes the underlying file descriptor.
func (m *File) Close() error {
	if err := m.data.Unmap(); err != nil {
		m.f.Close()
		return fmt.Errorf("mmapfile: unmap: %w", err)
	}
	return m.f.Close()
}
