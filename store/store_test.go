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
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/algorithmiker/entrace/span"
)

// twoChildTrace constructs a three-span fixture: root (id 0), two
// children both with msg="constructed node" and breadth 2 and 1.
func twoChildTrace(t *testing.T) *Buffer {
	t.Helper()
	b := NewBuffer()
	for _, breadth := range []int64{2, 1} {
		rec := &span.Record{
			Parent:  span.Root,
			Message: "constructed node",
			Metadata: Metadata(
				"node",
				span.LevelInfo,
				"entrace",
			),
			Attrs: []span.Attr{
				{Name: "breadth", Value: span.Int(breadth)},
			},
		}
		if _, err := b.Append(rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return b
}

// Metadata is a small test helper constructing a Metadata value; kept
// local to the test file so production code doesn't need a builder.
func Metadata(name string, level span.Level, target string) span.Metadata {
	return span.Metadata{Name: name, Level: level, Target: target}
}

func TestStreamRoundTrip(t *testing.T) {
	b := twoChildTrace(t)
	var out bytes.Buffer
	sw := NewStreamWriter(&out)
	for id := uint32(1); id < b.SpanCount(); id++ {
		rec, err := recordOf(b, id)
		if err != nil {
			t.Fatalf("recordOf(%d): %v", id, err)
		}
		if err := sw.Append(rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, err := ReadStream(bytes.NewReader(out.Bytes()))
	if err != nil {
		t.Fatalf("ReadStream: %v", err)
	}
	if got.SpanCount() != b.SpanCount() {
		t.Fatalf("span count mismatch: got %d want %d", got.SpanCount(), b.SpanCount())
	}
	for id := uint32(0); id < b.SpanCount(); id++ {
		wantMeta, _ := b.Metadata(id)
		gotMeta, _ := got.Metadata(id)
		if wantMeta != gotMeta {
			t.Fatalf("span %d metadata mismatch: got %+v want %+v", id, gotMeta, wantMeta)
		}
	}
}

func TestStreamIndexedConversionRoundTrip(t *testing.T) {
	b := twoChildTrace(t)

	var streamBuf bytes.Buffer
	sw := NewStreamWriter(&streamBuf)
	for id := uint32(1); id < b.SpanCount(); id++ {
		rec, _ := recordOf(b, id)
		if err := sw.Append(rec); err != nil {
			t.Fatal(err)
		}
	}
	sw.Flush()

	var indexedBuf bytes.Buffer
	if err := StreamToIndexed(bytes.NewReader(streamBuf.Bytes()), &indexedBuf); err != nil {
		t.Fatalf("StreamToIndexed: %v", err)
	}
	f, err := NewFileFromBytes(indexedBuf.Bytes())
	if err != nil {
		t.Fatalf("NewFileFromBytes: %v", err)
	}
	if f.SpanCount() != b.SpanCount() {
		t.Fatalf("span count mismatch after indexed conversion: got %d want %d", f.SpanCount(), b.SpanCount())
	}

	var backBuf bytes.Buffer
	if err := IndexedToStream(f, &backBuf); err != nil {
		t.Fatalf("IndexedToStream: %v", err)
	}
	// the data sections must round-trip byte for byte.
	if !bytes.Equal(backBuf.Bytes()[HeaderSize:], streamBuf.Bytes()[HeaderSize:]) {
		t.Fatalf("data section not byte-identical after round trip")
	}

	for id := uint32(0); id < f.SpanCount(); id++ {
		wantMeta, _ := b.Metadata(id)
		gotMeta, _ := f.Metadata(id)
		if wantMeta != gotMeta {
			t.Fatalf("span %d metadata mismatch: got %+v want %+v", id, gotMeta, wantMeta)
		}
		wantChildren, _ := b.Children(id)
		gotChildren, _ := f.Children(id)
		if len(wantChildren) != len(gotChildren) {
			t.Fatalf("span %d children mismatch: got %v want %v", id, gotChildren, wantChildren)
		}
	}
}

func TestContainsAnywhereFindsNoFalsePositive(t *testing.T) {
	b := twoChildTrace(t)
	for id := uint32(0); id < b.SpanCount(); id++ {
		ok, err := b.ContainsAnywhere(id, "winit")
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Fatalf("span %d unexpectedly contains 'winit'", id)
		}
	}
}

func TestContainsAnywhereDoesNotRecurseIntoChildren(t *testing.T) {
	b := NewBuffer()
	parentID, err := b.Append(&span.Record{Parent: span.Root, Metadata: Metadata("parent", span.LevelInfo, "t")})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Append(&span.Record{
		Parent:   parentID,
		Message:  "winit surfaced here",
		Metadata: Metadata("child", span.LevelInfo, "t"),
	}); err != nil {
		t.Fatal(err)
	}
	ok, err := b.ContainsAnywhere(parentID, "winit")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("ContainsAnywhere must not recurse into children, but it did")
	}
}

func TestEmptyTraceBoundary(t *testing.T) {
	b := NewBuffer()
	if b.SpanCount() != 1 {
		t.Fatalf("empty trace span count: got %d want 1", b.SpanCount())
	}
	lo, hi := b.SpanRange()
	if lo != 0 || hi != 0 {
		t.Fatalf("empty trace span range: got (%d,%d) want (0,0)", lo, hi)
	}
}

func TestReadHeaderRejectsBadMagic(t *testing.T) {
	bad := []byte{1, 2, 3, 4, 5, 6, 7, 8, 1, 1}
	var indexedBuf bytes.Buffer
	indexedBuf.Write(bad)
	_, err := NewFileFromBytes(indexedBuf.Bytes())
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestReadStreamTruncatedIsIncompleteFrame(t *testing.T) {
	b := twoChildTrace(t)
	var streamBuf bytes.Buffer
	sw := NewStreamWriter(&streamBuf)
	for id := uint32(1); id < b.SpanCount(); id++ {
		rec, _ := recordOf(b, id)
		sw.Append(rec)
	}
	truncated := streamBuf.Bytes()[:streamBuf.Len()-1]
	_, err := ReadStream(bytes.NewReader(truncated))
	if !errors.Is(err, ErrIncompleteFrame) {
		t.Fatalf("expected ErrIncompleteFrame, got %v", err)
	}
}

func TestFrameReaderRecoversFromPartialFrame(t *testing.T) {
	b := twoChildTrace(t)
	var full bytes.Buffer
	fw := NewFrameWriter(&full)
	for id := uint32(1); id < b.SpanCount(); id++ {
		rec, _ := recordOf(b, id)
		if err := fw.WriteRecord(rec); err != nil {
			t.Fatal(err)
		}
	}

	partial := full.Bytes()[:full.Len()-3]
	fr, err := NewFrameReader(bytes.NewReader(partial))
	if err != nil {
		t.Fatal(err)
	}
	// First record should decode fine.
	if _, err := fr.ReadRecord(); err != nil {
		t.Fatalf("first record: %v", err)
	}
	// Second record is truncated: reported as ErrIncompleteFrame, not as
	// a decode error.
	_, err = fr.ReadRecord()
	if !errors.Is(err, ErrIncompleteFrame) {
		t.Fatalf("expected ErrIncompleteFrame for partial second frame, got %v", err)
	}

	fr2, err := NewFrameReader(bytes.NewReader(full.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for {
		_, err := fr2.ReadRecord()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 records read cleanly, got %d", count)
	}
}
