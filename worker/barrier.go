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

package worker

import "sync"

// joinBarrier implements the worker pool's map-reduce join: a counter, a
// mutex, and a mailbox of per-worker submissions. A condition variable
// is kept for documentation purposes, but this barrier never actually
// blocks a goroutine on it: a worker that is not the last to arrive
// terminates immediately rather than waiting (its join host call exits
// via runtime.Goexit), so by the time the last worker's submit observes
// arrived == total, every mailbox slot is already populated and the
// merge can happen synchronously under the same lock.
type joinBarrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	total   int
	arrived int
	mailbox [][]uint32
}

func newJoinBarrier(workers int) *joinBarrier {
	b := &joinBarrier{total: workers, mailbox: make([][]uint32, workers)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// submit records worker index's partial result. isLast reports whether
// this call completed the barrier, in which case merged holds every
// worker's contribution concatenated in ascending worker-index order.
func (b *joinBarrier) submit(index int, partial []uint32) (merged []uint32, isLast bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.mailbox[index] = partial
	b.arrived++
	if b.arrived < b.total {
		return nil, false
	}

	total := 0
	for _, m := range b.mailbox {
		total += len(m)
	}
	out := make([]uint32, 0, total)
	for _, m := range b.mailbox {
		out = append(out, m...)
	}
	b.cond.Broadcast()
	return out, true
}
