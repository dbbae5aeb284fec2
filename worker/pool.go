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

import (
	"context"
	"log"

	"github.com/algorithmiker/entrace/store"
	"github.com/algorithmiker/entrace/worker/script"
)

// Pool runs a single query script across a fixed number of workers.
type Pool struct {
	Workers int
	Logger  *log.Logger
}

// NewPool returns a Pool with workers concurrent workers. workers == 0
// is the single-threaded, in-process case: the whole span range runs
// through one interpreter with no join barrier involved.
func NewPool(workers int, logger *log.Logger) *Pool {
	if logger == nil {
		logger = log.Default()
	}
	return &Pool{Workers: workers, Logger: logger}
}

type partition struct {
	lo, hi uint32
}

// partitions splits [lo, hi] into n contiguous, near-equal slices.
// n must be >= 1.
func partitions(lo, hi uint32, n int) []partition {
	if hi < lo {
		out := make([]partition, n)
		for i := range out {
			out[i] = partition{lo: 1, hi: 0} // empty range
		}
		return out
	}
	total := uint64(hi) - uint64(lo) + 1
	base := total / uint64(n)
	rem := total % uint64(n)
	out := make([]partition, n)
	cur := uint64(lo)
	for i := 0; i < n; i++ {
		size := base
		if uint64(i) < rem {
			size++
		}
		if size == 0 {
			out[i] = partition{lo: 1, hi: 0}
			continue
		}
		out[i] = partition{lo: uint32(cur), hi: uint32(cur + size - 1)}
		cur += size
	}
	return out
}

type workerOutcome struct {
	index  int
	result []uint32
	err    error
}

// Run executes src against a span-tree reader, partitioning the
// reader's span range across p.Workers workers (or running inline, for
// p.Workers == 0). It returns the worker results concatenated in
// ascending worker-index order; a worker that hits a script error
// aborts the whole query, cancelling every other worker's context and
// returning a *ScriptError.
func (p *Pool) Run(ctx context.Context, src store.Reader, scriptSrc string) ([]uint32, error) {
	if p.Workers <= 0 {
		return p.runOne(ctx, src, scriptSrc, 0, rangeOf(src), nil)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	lo, hi := src.SpanRange()
	parts := partitions(lo, hi, p.Workers)
	barrier := newJoinBarrier(p.Workers)

	outcomes := make(chan workerOutcome, p.Workers)
	for i, part := range parts {
		go func(i int, part partition) {
			// The send must live in a defer: when this worker is not
			// the last to arrive at a join barrier, p.runOne's own
			// frame exits via runtime.Goexit, which unwinds straight
			// through this function without ever reaching a plain
			// statement after the call — only a deferred one still
			// runs, with result/err left at their zero values (a
			// non-last arrival yields no value).
			var result []uint32
			var err error
			defer func() {
				outcomes <- workerOutcome{index: i, result: result, err: err}
			}()
			result, err = p.runOne(runCtx, src, scriptSrc, i, part, barrier)
		}(i, part)
	}

	results := make([][]uint32, p.Workers)
	var firstErr error
	for i := 0; i < p.Workers; i++ {
		o := <-outcomes
		if o.err != nil && firstErr == nil {
			firstErr = o.err
			cancel()
		}
		results[o.index] = o.result
	}
	if firstErr != nil {
		return nil, firstErr
	}

	var out []uint32
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func rangeOf(src store.Reader) partition {
	lo, hi := src.SpanRange()
	return partition{lo: lo, hi: hi}
}

// runOne drives a single worker's interpreter to completion. When the
// script calls join and is not the last to arrive, the host's join
// function exits the calling goroutine with runtime.Goexit; Go runs
// every deferred call already on that goroutine's stack during the
// exit, including the recover below, in this same frame, so the
// Goexit unwinds straight into a clean, empty, error-free result rather
// than a crash: a non-last join terminates that worker and it
// contributes no value to the aggregated result. runOne must therefore
// be called directly in the goroutine that is meant to terminate, never
// through an extra indirection that would only kill an inner helper
// goroutine.
func (p *Pool) runOne(ctx context.Context, src store.Reader, scriptSrc string, index int, part partition, barrier *joinBarrier) (result []uint32, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ScriptError{WorkerIndex: index, Message: fmtRecover(r)}
		}
	}()
	return p.execScript(ctx, src, scriptSrc, index, part, barrier)
}

func (p *Pool) execScript(ctx context.Context, src store.Reader, scriptSrc string, index int, part partition, barrier *joinBarrier) ([]uint32, error) {
	if barrier == nil {
		barrier = newJoinBarrier(1)
	}
	interp := script.New()
	defer interp.Close()

	host := newWorkerHost(index, part.lo, part.hi, src, barrier, ctx, p.Logger)
	host.install(interp)

	if err := interp.Load(scriptSrc); err != nil {
		return nil, &ScriptError{WorkerIndex: index, Message: err.Error()}
	}
	ret, err := interp.Run(ctx)
	if err != nil {
		return nil, &ScriptError{WorkerIndex: index, Message: err.Error()}
	}
	if len(ret) == 0 {
		return nil, nil
	}
	return ret[0].Uint32List(), nil
}

func fmtRecover(r interface{}) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return "panic during script execution"
}
