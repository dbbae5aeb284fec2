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
	"fmt"
	"io"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// Codec names a streaming compression wrapper for the stream form.
// Unlike the indexed form, stream form is always read
// sequentially (FrameReader, ReadStream), so wrapping it in a streaming
// compressor costs nothing in random-access ability; the indexed form
// is deliberately left uncompressed since File maps it and indexes
// straight into the mapped bytes by offset.
type Codec string

const (
	CodecNone Codec = ""
	CodecS2   Codec = "s2"
	CodecZstd Codec = "zstd"
)

// compressWriter wraps w so that every byte written to it is
// compressed with codec before reaching w. Close must be called to
// flush the trailing block.
func compressWriter(w io.Writer, codec Codec) (io.WriteCloser, error) {
	switch codec {
	case CodecNone:
		return nopWriteCloser{w}, nil
	case CodecS2:
		return s2.NewWriter(w), nil
	case CodecZstd:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("store: zstd writer: %w", err)
		}
		return enc, nil
	default:
		return nil, fmt.Errorf("store: unknown codec %q", codec)
	}
}

// decompressReader wraps r so that reads from it yield the bytes that
// were fed to the matching compressWriter.
func decompressReader(r io.Reader, codec Codec) (io.Reader, error) {
	switch codec {
	case CodecNone:
		return r, nil
	case CodecS2:
		return s2.NewReader(r), nil
	case CodecZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("store: zstd reader: %w", err)
		}
		return dec.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("store: unknown codec %q", codec)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// WriteStreamCompressed writes src out in stream form through codec,
// for archival of a completed ingest session: the ingest server itself
// keeps records in memory uncompressed, since Buffer needs random
// access for appends and the worker pool's reads, but a finished trace
// written to disk rarely needs to be touched again until read back in
// full.
func WriteStreamCompressed(w io.Writer, src Reader, codec Codec) error {
	cw, err := compressWriter(w, codec)
	if err != nil {
		return err
	}
	sw := NewStreamWriter(cw)
	n := src.SpanCount()
	for id := uint32(1); id < n; id++ {
		rec, err := recordOf(src, id)
		if err != nil {
			return err
		}
		if err := sw.Append(rec); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return cw.Close()
}

// ReadStreamCompressed is the inverse of WriteStreamCompressed.
func ReadStreamCompressed(r io.Reader, codec Codec) (*Buffer, error) {
	dr, err := decompressReader(r, codec)
	if err != nil {
		return nil, err
	}
	return ReadStream(dr)
}
