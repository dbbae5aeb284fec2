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

package ingest

import (
	"fmt"
	"io"

	"github.com/algorithmiker/entrace/span"
	"github.com/algorithmiker/entrace/store"
)

// recordOf reassembles a Record from a Reader's exported accessors.
// store.WriteIndexed does the same thing internally but keeps its
// version private; this package only has the public Reader surface to
// work with.
func recordOf(r store.Reader, id uint32) (*span.Record, error) {
	parent, err := r.Parent(id)
	if err != nil {
		return nil, err
	}
	meta, err := r.Metadata(id)
	if err != nil {
		return nil, err
	}
	attrs, err := r.Attributes(id)
	if err != nil {
		return nil, err
	}
	msg, _, err := r.Message(id)
	if err != nil {
		return nil, err
	}
	return &span.Record{Parent: parent, Message: msg, Metadata: meta, Attrs: attrs}, nil
}

// WriteStream drains s.Buffer into stream form. Call this after Serve
// has returned, once no further connections can mutate the buffer.
func (s *Server) WriteStream(w io.Writer) error {
	sw := store.NewStreamWriter(w)
	n := s.Buffer.SpanCount()
	for id := uint32(1); id < n; id++ {
		rec, err := recordOf(s.Buffer, id)
		if err != nil {
			return fmt.Errorf("ingest: WriteStream: %w", err)
		}
		if err := sw.Append(rec); err != nil {
			return err
		}
	}
	return sw.Flush()
}

// WriteIndexed drains s.Buffer directly into indexed form.
func (s *Server) WriteIndexed(w io.Writer) error {
	return store.WriteIndexed(w, s.Buffer)
}
