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

// Package ingest runs the socket-facing side of the system: a TCP
// listener that accepts length-prefixed stream-form connections and
// folds every record it reads into one shared Buffer, with a bounded
// channel providing backpressure when decoding outpaces the rate the
// Buffer's writer goroutine can apply appends.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/algorithmiker/entrace/span"
	"github.com/algorithmiker/entrace/store"
)

// defaultQueueDepth bounds how many decoded-but-not-yet-applied records
// a connection may have in flight before its reader blocks.
const defaultQueueDepth = 1024

// Server accepts span records over length-prefixed TCP connections and
// appends them to a single in-memory Buffer.
type Server struct {
	Listener   net.Listener
	Buffer     *store.Buffer
	Logger     *log.Logger
	QueueDepth int

	mu       sync.Mutex
	wg       sync.WaitGroup
	applyCh  chan *span.Record
	applyErr error
}

// Listen opens a TCP listener on addr and returns a Server ready to
// Serve on it.
func Listen(addr string) (*Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ingest: listen on %s: %w", addr, err)
	}
	return &Server{
		Listener:   l,
		Buffer:     store.NewBuffer(),
		Logger:     log.Default(),
		QueueDepth: defaultQueueDepth,
	}, nil
}

// Serve accepts connections until ctx is cancelled or the listener is
// closed, applying every accepted record to s.Buffer from a single
// goroutine (Buffer.Append is safe for one writer plus concurrent
// readers, not for concurrent writers). It returns once every
// in-flight connection has drained.
func (s *Server) Serve(ctx context.Context) error {
	depth := s.QueueDepth
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	s.applyCh = make(chan *span.Record, depth)

	applyDone := make(chan struct{})
	go func() {
		defer close(applyDone)
		s.applyLoop()
	}()

	go func() {
		<-ctx.Done()
		s.Listener.Close()
	}()

	var acceptErr error
	for {
		conn, err := s.Listener.Accept()
		if err != nil {
			if errors.Is(ctx.Err(), context.Canceled) || isClosedErr(err) {
				break
			}
			acceptErr = err
			break
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}

	s.wg.Wait()
	close(s.applyCh)
	<-applyDone

	if acceptErr != nil {
		return fmt.Errorf("ingest: accept: %w", acceptErr)
	}
	return s.applyErr
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

// applyLoop is the sole writer to s.Buffer, serializing every accepted
// connection's records into one append-order stream. A record that
// Buffer.Append rejects (e.g. a parent identifier that doesn't exist
// yet) is logged and dropped; the first such error is kept and returned
// by Serve once it finishes, and later records are still applied.
func (s *Server) applyLoop() {
	for rec := range s.applyCh {
		if _, err := s.Buffer.Append(rec); err != nil {
			s.mu.Lock()
			if s.applyErr == nil {
				s.applyErr = err
			}
			s.mu.Unlock()
			s.Logger.Printf("ingest: apply error: %v", err)
		}
	}
}

// handleConn reads one connection's length-prefixed stream to
// completion (io.EOF) or failure, enqueuing each decoded record onto
// s.applyCh. enqueuing blocks when the channel is full, which is the
// server's backpressure mechanism: a fast sender stalls rather than
// having its records buffered without bound. Each connection gets its
// own session identifier so its log lines can be correlated, the way
// snellerd tags every query with a fresh uuid.
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	sessionID := uuid.New().String()

	fr, err := store.NewFrameReader(conn)
	if err != nil {
		s.Logger.Printf("ingest: session %s %s: %v", sessionID, conn.RemoteAddr(), err)
		return
	}
	var n int
	for {
		rec, err := fr.ReadRecord()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.Logger.Printf("ingest: session %s %s: closed after %d records", sessionID, conn.RemoteAddr(), n)
				return
			}
			// ErrIncompleteFrame here means the peer closed mid-frame
			// (FrameReader already waits for a frame's remaining
			// bytes): there is nothing left to recover into, so the
			// connection simply ends.
			s.Logger.Printf("ingest: session %s %s: %v", sessionID, conn.RemoteAddr(), err)
			return
		}
		n++
		s.applyCh <- rec
	}
}
