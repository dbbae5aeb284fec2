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

// Package store implements the trace storage layer: the stream and
// indexed on-disk formats, their shared magic header, the socket framing
// used for live ingestion, and the read interface the query engine and
// worker pool use to navigate a span tree.
package store

import "errors"

// Sentinel error kinds. Wrap these with fmt.Errorf's %w verb so callers
// can errors.Is against them.
var (
	// ErrUnsupportedFormat is returned when the magic bytes don't match
	// or the format version/tag is not recognized by this reader.
	ErrUnsupportedFormat = errors.New("store: unsupported format")

	// ErrCorruptIndex is returned when an offset or pool entry in the
	// indexed form is out of range, or section lengths are inconsistent.
	ErrCorruptIndex = errors.New("store: corrupt index")

	// ErrIncompleteFrame is returned when a record is truncated. It is
	// recoverable for stream sockets (wait for more bytes) and fatal
	// for files.
	ErrIncompleteFrame = errors.New("store: incomplete frame")

	// ErrCancelled indicates an in-progress operation observed a
	// cancellation signal.
	ErrCancelled = errors.New("store: cancelled")
)

// IoError wraps an underlying I/O or memory-map fault so callers can
// distinguish it from the format-level sentinels above while still
// unwrapping to the original cause.
type IoError struct {
	Op  string
	Err error
}

func (e *IoError) Error() string { return "store: io error during " + e.Op + ": " + e.Err.Error() }
func (e *IoError) Unwrap() error { return e.Err }
