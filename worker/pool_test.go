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
	"sort"
	"testing"

	"github.com/algorithmiker/entrace/span"
	"github.com/algorithmiker/entrace/store"
)

// fixtureOddEven builds a small trace with ten children under the root,
// msg_idx 1..10, alternating even/odd.
func fixtureOddEven(t *testing.T) *store.Buffer {
	t.Helper()
	b := store.NewBuffer()
	for i := int64(1); i <= 10; i++ {
		_, err := b.Append(&span.Record{
			Parent:   span.Root,
			Metadata: span.Metadata{Name: "leaf", Level: span.LevelInfo, Target: "entrace"},
			Attrs:    []span.Attr{{Name: "msg_idx", Value: span.Int(i)}},
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return b
}

func sortedUint32(ids []uint32) []uint32 {
	out := append([]uint32(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestPoolInlineForeachFilter(t *testing.T) {
	b := fixtureOddEven(t)
	p := NewPool(0, nil)
	script := `
		return foreach(function(i)
			local v = attr_by_name(i, "msg_idx")
			if v ~= nil and v % 2 == 1 then
				return true
			end
			return nil
		end)
	`
	got, err := p.Run(context.Background(), b, script)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got = sortedUint32(got)
	want := []uint32{1, 3, 5, 7, 9}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestPoolMultiWorkerAggregation(t *testing.T) {
	b := fixtureOddEven(t)
	p := NewPool(4, nil)
	script := `
		local lo, hi = span_range()
		local out = {}
		for i = lo, hi do
			table.insert(out, i)
		end
		return out
	`
	got, err := p.Run(context.Background(), b, script)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Not sorted: Run concatenates per-worker results in ascending
	// worker-index order, and the partitions are contiguous and ascending.
	lo, hi := b.SpanRange()
	if uint32(len(got)) != hi-lo+1 {
		t.Fatalf("got %d spans, want %d", len(got), hi-lo+1)
	}
	for i, id := range got {
		if id != uint32(i) {
			t.Fatalf("aggregation order/coverage mismatch at %d: got %d", i, id)
		}
	}
}

func TestPoolFilterRangeReturnsMatchingIds(t *testing.T) {
	b := fixtureOddEven(t)
	p := NewPool(0, nil)
	script := `
		return filter_range(1, 10, {target = "msg_idx", relation = "GT", value = 5})
	`
	got, err := p.Run(context.Background(), b, script)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got = sortedUint32(got)
	want := []uint32{6, 7, 8, 9, 10}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestPoolJoinBarrier(t *testing.T) {
	b := fixtureOddEven(t)
	p := NewPool(3, nil)
	script := `
		local lo, hi = span_range()
		local mine = {}
		for i = lo, hi do
			table.insert(mine, i)
		end
		local merged = join(mine)
		return merged
	`
	got, err := p.Run(context.Background(), b, script)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got = sortedUint32(got)
	lo, hi := b.SpanRange()
	if uint32(len(got)) != hi-lo+1 {
		t.Fatalf("join result size: got %d want %d", len(got), hi-lo+1)
	}
}

func TestPoolScriptErrorAbortsQuery(t *testing.T) {
	b := fixtureOddEven(t)
	p := NewPool(2, nil)
	script := `error("boom")`
	_, err := p.Run(context.Background(), b, script)
	if err == nil {
		t.Fatal("expected a ScriptError, got nil")
	}
	var se *ScriptError
	if !asScriptError(err, &se) {
		t.Fatalf("expected *ScriptError, got %T: %v", err, err)
	}
}

func asScriptError(err error, target **ScriptError) bool {
	se, ok := err.(*ScriptError)
	if !ok {
		return false
	}
	*target = se
	return true
}
