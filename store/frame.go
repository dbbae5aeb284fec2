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
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/algorithmiker/entrace/internal/binenc"
	"github.com/algorithmiker/entrace/span"
)

// maxFrameLen bounds a single frame's declared length so a corrupt or
// adversarial length prefix cannot force an unbounded allocation.
const maxFrameLen = 64 << 20

// FrameWriter writes length-prefixed stream form: each record is
// preceded by its encoded byte length as a little-endian uint64. This is
// the framing used over the ingest socket so a receiver can re-frame
// partial reads.
type FrameWriter struct {
	w           io.Writer
	wroteHeader bool
	scratch     *binenc.Writer
}

// NewFrameWriter returns a FrameWriter over w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w, scratch: binenc.NewWriter(256)}
}

func (f *FrameWriter) ensureHeader() error {
	if f.wroteHeader {
		return nil
	}
	f.scratch.Reset()
	WriteHeader(f.scratch, TagLengthPrefixedStream)
	if _, err := f.w.Write(f.scratch.Bytes()); err != nil {
		return &IoError{Op: "write frame header", Err: err}
	}
	f.wroteHeader = true
	return nil
}

// WriteRecord frames and writes one record.
func (f *FrameWriter) WriteRecord(rec *span.Record) error {
	if err := f.ensureHeader(); err != nil {
		return err
	}
	f.scratch.Reset()
	rec.Encode(f.scratch)
	body := f.scratch.Bytes()
	var lenPrefix [8]byte
	binary.LittleEndian.PutUint64(lenPrefix[:], uint64(len(body)))
	if _, err := f.w.Write(lenPrefix[:]); err != nil {
		return &IoError{Op: "write frame length", Err: err}
	}
	if _, err := f.w.Write(body); err != nil {
		return &IoError{Op: "write frame body", Err: err}
	}
	return nil
}

// FrameReader reads length-prefixed stream form from a byte stream
// (typically a socket). ReadRecord blocks in io.ReadFull until a whole
// frame has arrived, so a frame split across several socket reads is
// reassembled without the caller's help. ErrIncompleteFrame is reported
// only when the input ends mid-frame; the bytes of that partial frame
// have already been consumed, so calling ReadRecord again does not
// resume it. A clean EOF exactly on a frame boundary is reported as
// io.EOF.
type FrameReader struct {
	r       io.Reader
	version uint8
}

// NewFrameReader reads and validates the magic header from r, then
// returns a FrameReader for the records that follow.
func NewFrameReader(r io.Reader) (*FrameReader, error) {
	var hdr [HeaderSize]byte
	n, err := io.ReadFull(r, hdr[:])
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("store: header truncated after %d bytes: %w", n, ErrIncompleteFrame)
		}
		return nil, &IoError{Op: "read frame header", Err: err}
	}
	br := binenc.NewReader(hdr[:])
	version, tag, err := ReadHeader(br)
	if err != nil {
		return nil, err
	}
	if tag != TagLengthPrefixedStream {
		return nil, fmt.Errorf("store: FrameReader given a %s-tagged stream: %w", tag, ErrUnsupportedFormat)
	}
	return &FrameReader{r: r, version: version}, nil
}

// ReadRecord reads and decodes one framed record. It returns io.EOF when
// the stream ends cleanly on a frame boundary, and ErrIncompleteFrame
// when it ends mid-frame.
func (f *FrameReader) ReadRecord() (*span.Record, error) {
	var lenPrefix [8]byte
	n, err := io.ReadFull(f.r, lenPrefix[:])
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("store: frame length truncated after %d bytes: %w", n, ErrIncompleteFrame)
	}
	length := binary.LittleEndian.Uint64(lenPrefix[:])
	if length > maxFrameLen {
		return nil, fmt.Errorf("store: frame length %d exceeds maximum %d: %w", length, maxFrameLen, ErrCorruptIndex)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(f.r, body); err != nil {
		return nil, fmt.Errorf("store: frame body truncated (wanted %d bytes): %w", length, ErrIncompleteFrame)
	}
	rec, err := span.DecodeRecord(binenc.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("store: decoding framed record: %w", err)
	}
	return rec, nil
}
