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
	"strings"
	"sync"

	"github.com/algorithmiker/entrace/span"
)

// Buffer is an in-memory, append-only span tree. It backs live stream
// ingestion and is the form a stream-form file is fully
// deserialized into before conversion to indexed form. Buffer is safe
// for concurrent reads while appends are serialized by its own mutex;
// readers observe a consistent snapshot because Append only ever grows
// the slices and never mutates an already-visible record.
type Buffer struct {
	mu       sync.RWMutex
	records  []*span.Record // records[0] is the synthetic root
	children [][]uint32
}

// NewBuffer returns a Buffer containing only the synthetic root.
func NewBuffer() *Buffer {
	b := &Buffer{
		records:  make([]*span.Record, 1),
		children: make([][]uint32, 1),
	}
	b.records[0] = &span.Record{Parent: span.Root}
	return b
}

// Append assigns the next identifier to rec and links it under its
// parent's child list. Parents must already exist (parent-before-child
// ingestion order); Append returns ErrCorruptIndex if rec.Parent is not
// yet a valid identifier.
func (b *Buffer) Append(rec *span.Record) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if int(rec.Parent) >= len(b.records) {
		return 0, fmt.Errorf("store: span parent %d not yet ingested (have %d spans): %w", rec.Parent, len(b.records), ErrCorruptIndex)
	}
	id := uint32(len(b.records))
	b.records = append(b.records, rec)
	b.children = append(b.children, nil)
	b.children[rec.Parent] = append(b.children[rec.Parent], id)
	return id, nil
}

func (b *Buffer) check(i uint32) error {
	if int(i) >= len(b.records) {
		return fmt.Errorf("store: span id %d out of range [0,%d): %w", i, len(b.records), ErrCorruptIndex)
	}
	return nil
}

func (b *Buffer) SpanCount() uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return uint32(len(b.records))
}

func (b *Buffer) SpanRange() (uint32, uint32) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return 0, uint32(len(b.records)) - 1
}

func (b *Buffer) Parent(i uint32) (uint32, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.check(i); err != nil {
		return 0, err
	}
	return b.records[i].Parent, nil
}

func (b *Buffer) Children(i uint32) ([]uint32, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.check(i); err != nil {
		return nil, err
	}
	out := make([]uint32, len(b.children[i]))
	copy(out, b.children[i])
	return out, nil
}

func (b *Buffer) ChildCount(i uint32) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.check(i); err != nil {
		return 0, err
	}
	return len(b.children[i]), nil
}

func (b *Buffer) Metadata(i uint32) (span.Metadata, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.check(i); err != nil {
		return span.Metadata{}, err
	}
	return b.records[i].Metadata, nil
}

func (b *Buffer) Message(i uint32) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.check(i); err != nil {
		return "", false, err
	}
	msg := b.records[i].Message
	return msg, msg != "", nil
}

func (b *Buffer) Attributes(i uint32) ([]span.Attr, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.check(i); err != nil {
		return nil, err
	}
	out := make([]span.Attr, len(b.records[i].Attrs))
	copy(out, b.records[i].Attrs)
	return out, nil
}

func (b *Buffer) AttributeByName(i uint32, name string) (span.Value, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.check(i); err != nil {
		return span.Value{}, false, err
	}
	v, ok := b.records[i].AttrByName(name)
	return v, ok, nil
}

// Stringify renders span i's message, metadata name/target, and
// attributes into one line, in the style of a structured log line. It
// does not recurse into children (see Reader.ContainsAnywhere).
func (b *Buffer) Stringify(i uint32) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.check(i); err != nil {
		return "", err
	}
	return stringifyRecord(b.records[i]), nil
}

func stringifyRecord(rec *span.Record) string {
	var sb strings.Builder
	sb.WriteString(rec.Metadata.Level.String())
	sb.WriteByte(' ')
	sb.WriteString(rec.Metadata.Target)
	if rec.Metadata.Name != "" {
		sb.WriteByte(' ')
		sb.WriteString(rec.Metadata.Name)
	}
	if rec.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(rec.Message)
	}
	for _, a := range rec.Attrs {
		sb.WriteByte(' ')
		sb.WriteString(a.Name)
		sb.WriteByte('=')
		sb.WriteString(a.Value.String())
	}
	return sb.String()
}

func (b *Buffer) ContainsAnywhere(i uint32, needle string) (bool, error) {
	s, err := b.Stringify(i)
	if err != nil {
		return false, err
	}
	return strings.Contains(s, needle), nil
}

var _ Reader = (*Buffer)(nil)
