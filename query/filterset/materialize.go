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

package filterset

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring"

	"github.com/algorithmiker/entrace/store"
)

// Materialize rewrites root to a fixed point and then evaluates it into
// a sorted list of span identifiers. It is the arena's single entry
// point for turning a filterset DAG into a concrete result.
func (a *Arena) Materialize(ctx context.Context, root ID) ([]uint32, error) {
	rewritten := a.Rewrite(root)
	bm, err := a.materializeBitmap(ctx, rewritten)
	if err != nil {
		return nil, err
	}
	return bm.ToArray(), nil
}

// materializeBitmap performs a bottom-up walk over the rewritten DAG.
// Because arena nodes are topologically ordered by construction (a
// node's children always precede it), this can run as a single forward
// pass with memoization rather than recursion.
func (a *Arena) materializeBitmap(ctx context.Context, root ID) (*roaring.Bitmap, error) {
	memo := make([]*roaring.Bitmap, root+1)
	for i := ID(0); i <= root; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("filterset: materialize: %w", store.ErrCancelled)
		default:
		}
		n := a.nodes[i]
		switch n.kind {
		case KindDead:
			memo[i] = roaring.New()

		case KindPrimitive:
			memo[i] = n.bitmap.Clone()

		case KindBlackBox:
			memo[i] = memo[n.src].Clone()

		case KindNot:
			_, hi := a.src.SpanRange()
			memo[i] = memo[n.src].Flip(0, uint64(hi)+1)

		case KindAnd:
			memo[i] = intersectAll(n.children, memo)

		case KindOr:
			memo[i] = unionAll(n.children, memo)

		case KindRelDnf:
			bm, err := a.evalRelDnf(ctx, n, memo[n.src])
			if err != nil {
				return nil, err
			}
			memo[i] = bm
		}
	}
	return memo[root], nil
}

func intersectAll(children []ID, memo []*roaring.Bitmap) *roaring.Bitmap {
	if len(children) == 0 {
		return roaring.New()
	}
	out := memo[children[0]].Clone()
	for _, c := range children[1:] {
		out.And(memo[c])
	}
	return out
}

func unionAll(children []ID, memo []*roaring.Bitmap) *roaring.Bitmap {
	out := roaring.New()
	for _, c := range children {
		out.Or(memo[c])
	}
	return out
}

// evalRelDnf materializes src (already computed into srcBitmap) and then
// evaluates each clause as an AND over its predicates for every
// identifier in srcBitmap, accepting the identifier iff any clause
// holds.
func (a *Arena) evalRelDnf(ctx context.Context, n node, srcBitmap *roaring.Bitmap) (*roaring.Bitmap, error) {
	out := roaring.New()
	it := srcBitmap.Iterator()
	for it.HasNext() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("filterset: materialize RelDnf: %w", store.ErrCancelled)
		default:
		}
		id := it.Next()
		matched := false
		for _, clause := range n.clauses {
			ok, err := clause.eval(a.src, id)
			if err != nil {
				return nil, err
			}
			if ok {
				matched = true
				break
			}
		}
		if matched {
			out.Add(id)
		}
	}
	return out, nil
}
