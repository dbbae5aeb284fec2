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

package store

import (
	"errors"
	"fmt"
	"io"

	"github.com/algorithmiker/entrace/internal/binenc"
	"github.com/algorithmiker/entrace/span"
)

// StreamWriter appends span records to an underlying io.Writer in
// stream form: a magic header followed by records in
// span-identifier order, with the synthetic root never serialized.
type StreamWriter struct {
	w           io.Writer
	wroteHeader bool
	scratch     *binenc.Writer
}

// NewStreamWriter returns a StreamWriter over w. The header is written
// lazily on the first Append so that an ingest session that receives no
// spans can still produce a valid (empty) stream-form file by calling
// Flush.
func NewStreamWriter(w io.Writer) *StreamWriter {
	return &StreamWriter{w: w, scratch: binenc.NewWriter(256)}
}

func (s *StreamWriter) ensureHeader() error {
	if s.wroteHeader {
		return nil
	}
	s.scratch.Reset()
	WriteHeader(s.scratch, TagStream)
	if _, err := s.w.Write(s.scratch.Bytes()); err != nil {
		return &IoError{Op: "write stream header", Err: err}
	}
	s.wroteHeader = true
	return nil
}

// Append writes one more record to the stream. Callers must present
// records in span-identifier order (parent before child).
func (s *StreamWriter) Append(rec *span.Record) error {
	if err := s.ensureHeader(); err != nil {
		return err
	}
	s.scratch.Reset()
	rec.Encode(s.scratch)
	if _, err := s.w.Write(s.scratch.Bytes()); err != nil {
		return &IoError{Op: "write stream record", Err: err}
	}
	return nil
}

// Flush ensures the header has been written even if Append was never
// called, producing a valid empty stream-form file.
func (s *StreamWriter) Flush() error { return s.ensureHeader() }

// ReadStream decodes an entire stream-form reader into a fresh Buffer.
// A truncated final record yields ErrIncompleteFrame, which is fatal for
// a file (callers reading from a live socket should use FrameReader
// instead, which recovers from the same condition by waiting for more
// bytes).
func ReadStream(r io.Reader) (*Buffer, error) {
	all, err := io.ReadAll(r)
	if err != nil {
		return nil, &IoError{Op: "read stream", Err: err}
	}
	br := binenc.NewReader(all)
	_, tag, err := ReadHeader(br)
	if err != nil {
		return nil, err
	}
	if tag != TagStream {
		return nil, fmt.Errorf("store: ReadStream given a %s-tagged file: %w", tag, ErrUnsupportedFormat)
	}
	buf := NewBuffer()
	for br.Remaining() > 0 {
		rec, err := span.DecodeRecord(br)
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("store: stream truncated after %d spans: %w", buf.SpanCount()-1, ErrIncompleteFrame)
			}
			return nil, err
		}
		if _, err := buf.Append(rec); err != nil {
			return nil, err
		}
	}
	return buf, nil
}
