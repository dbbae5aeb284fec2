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
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/algorithmiker/entrace/span"
	"github.com/algorithmiker/entrace/store"
)

func TestServerIngestsOneConnection(t *testing.T) {
	srv, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() { serveDone <- srv.Serve(ctx) }()

	conn, err := net.Dial("tcp", srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	fw := store.NewFrameWriter(conn)
	for _, breadth := range []int64{2, 1} {
		rec := &span.Record{
			Parent:   span.Root,
			Message:  "constructed node",
			Metadata: span.Metadata{Name: "node", Level: span.LevelInfo, Target: "entrace"},
			Attrs:    []span.Attr{{Name: "breadth", Value: span.Int(breadth)}},
		}
		if err := fw.WriteRecord(rec); err != nil {
			t.Fatalf("WriteRecord: %v", err)
		}
	}
	conn.Close()

	deadline := time.After(2 * time.Second)
	for srv.Buffer.SpanCount() < 3 {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for ingestion, got %d spans", srv.Buffer.SpanCount())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-serveDone; err != nil {
		t.Fatalf("Serve: %v", err)
	}

	var out bytes.Buffer
	if err := srv.WriteStream(&out); err != nil {
		t.Fatalf("WriteStream: %v", err)
	}
	got, err := store.ReadStream(bytes.NewReader(out.Bytes()))
	if err != nil {
		t.Fatalf("ReadStream: %v", err)
	}
	if got.SpanCount() != 3 {
		t.Fatalf("span count: got %d want 3", got.SpanCount())
	}
}
