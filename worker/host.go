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
	"fmt"
	"log"
	"runtime"

	"github.com/algorithmiker/entrace/query/filterset"
	"github.com/algorithmiker/entrace/store"
	"github.com/algorithmiker/entrace/worker/script"
)

// workerHost binds one worker's slice of the span tree, its private
// filterset arena, and the shared join barrier to the script-visible
// host functions installed below.
type workerHost struct {
	index   int
	lo, hi  uint32
	src     store.Reader
	arena   *filterset.Arena
	barrier *joinBarrier
	ctx     context.Context
	logger  *log.Logger
}

func newWorkerHost(index int, lo, hi uint32, src store.Reader, barrier *joinBarrier, ctx context.Context, logger *log.Logger) *workerHost {
	return &workerHost{
		index:   index,
		lo:      lo,
		hi:      hi,
		src:     src,
		arena:   filterset.NewArena(src),
		barrier: barrier,
		ctx:     ctx,
		logger:  logger,
	}
}

// install registers every host function against interp.
func (h *workerHost) install(interp script.Interpreter) {
	interp.Install("span_range", h.spanRange)
	interp.Install("child_cnt", h.childCnt)
	interp.Install("children", h.children)
	interp.Install("parent", h.parent)
	interp.Install("attr_names", h.attrNames)
	interp.Install("attr_values", h.attrValues)
	interp.Install("attr_by_name", h.attrByName)
	interp.Install("metadata_table", h.metadataTable)
	interp.Install("metadata_name", h.metadataName)
	interp.Install("metadata_target", h.metadataTarget)
	interp.Install("metadata_level", h.metadataLevel)
	interp.Install("contains_anywhere", h.containsAnywhere)
	interp.Install("foreach", h.foreach)
	interp.Install("filterset_from_range", h.filtersetFromRange)
	interp.Install("filter", h.filter)
	interp.Install("filter_range", h.filterRange)
	interp.Install("filterset_union", h.filtersetUnion)
	interp.Install("filterset_intersect", h.filtersetIntersect)
	interp.Install("filterset_not", h.filtersetNot)
	interp.Install("filterset_dnf", h.filtersetDnf)
	interp.Install("filterset_materialize", h.filtersetMaterialize)
	interp.Install("join", h.join)
	interp.Install("pretty_table", h.prettyTable)
	interp.Install("log", h.log)
}

func argID(args []script.Value, i int) uint32 {
	if i >= len(args) {
		return 0
	}
	return uint32(args[i].Num)
}

func (h *workerHost) spanRange(args []script.Value) (script.Values, error) {
	return script.Values{script.FromNumber(float64(h.lo)), script.FromNumber(float64(h.hi))}, nil
}

func (h *workerHost) childCnt(args []script.Value) (script.Values, error) {
	n, err := h.src.ChildCount(argID(args, 0))
	if err != nil {
		return nil, err
	}
	return script.Values{script.FromNumber(float64(n))}, nil
}

func (h *workerHost) children(args []script.Value) (script.Values, error) {
	ids, err := h.src.Children(argID(args, 0))
	if err != nil {
		return nil, err
	}
	return script.Values{script.FromUint32List(ids)}, nil
}

func (h *workerHost) parent(args []script.Value) (script.Values, error) {
	p, err := h.src.Parent(argID(args, 0))
	if err != nil {
		return nil, err
	}
	return script.Values{script.FromNumber(float64(p))}, nil
}

func (h *workerHost) attrNames(args []script.Value) (script.Values, error) {
	attrs, err := h.src.Attributes(argID(args, 0))
	if err != nil {
		return nil, err
	}
	out := make(script.Values, len(attrs))
	for i, a := range attrs {
		out[i] = script.FromString(a.Name)
	}
	return script.Values{script.FromList(out)}, nil
}

func (h *workerHost) attrValues(args []script.Value) (script.Values, error) {
	attrs, err := h.src.Attributes(argID(args, 0))
	if err != nil {
		return nil, err
	}
	out := make(script.Values, len(attrs))
	for i, a := range attrs {
		out[i] = script.FromSpanValue(a.Value)
	}
	return script.Values{script.FromList(out)}, nil
}

func (h *workerHost) attrByName(args []script.Value) (script.Values, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("attr_by_name: expected (id, name)")
	}
	v, ok, err := h.src.AttributeByName(argID(args, 0), args[1].Str)
	if err != nil {
		return nil, err
	}
	if !ok {
		return script.Values{script.Nil()}, nil
	}
	return script.Values{script.FromSpanValue(v)}, nil
}

func (h *workerHost) metadataTable(args []script.Value) (script.Values, error) {
	m, err := h.src.Metadata(argID(args, 0))
	if err != nil {
		return nil, err
	}
	tbl := map[string]script.Value{
		"name":   script.FromString(m.Name),
		"level":  script.FromString(m.Level.String()),
		"target": script.FromString(m.Target),
	}
	if m.File != "" {
		tbl["file"] = script.FromString(m.File)
	}
	if m.HasLine {
		tbl["line"] = script.FromNumber(float64(m.Line))
	}
	if m.ModulePath != "" {
		tbl["module_path"] = script.FromString(m.ModulePath)
	}
	return script.Values{{Kind: script.KindTable, Table: tbl}}, nil
}

func (h *workerHost) metadataName(args []script.Value) (script.Values, error) {
	m, err := h.src.Metadata(argID(args, 0))
	if err != nil {
		return nil, err
	}
	return script.Values{script.FromString(m.Name)}, nil
}

func (h *workerHost) metadataTarget(args []script.Value) (script.Values, error) {
	m, err := h.src.Metadata(argID(args, 0))
	if err != nil {
		return nil, err
	}
	return script.Values{script.FromString(m.Target)}, nil
}

func (h *workerHost) metadataLevel(args []script.Value) (script.Values, error) {
	m, err := h.src.Metadata(argID(args, 0))
	if err != nil {
		return nil, err
	}
	return script.Values{script.FromString(m.Level.String())}, nil
}

func (h *workerHost) containsAnywhere(args []script.Value) (script.Values, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("contains_anywhere: expected (id, needle)")
	}
	ok, err := h.src.ContainsAnywhere(argID(args, 0), args[1].Str)
	if err != nil {
		return nil, err
	}
	return script.Values{script.FromBool(ok)}, nil
}

// foreach iterates this worker's own span partition, calling fn for
// each identifier and interpreting its return value: nil drops the
// span, a bool conditionally includes the identifier itself, a number
// includes that number verbatim (allowing fn to map rather than merely
// filter), and a list splices its elements into the result in place.
func (h *workerHost) foreach(args []script.Value) (script.Values, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("foreach: expected a callback")
	}
	fn, ok := args[0].Callable()
	if !ok {
		return nil, fmt.Errorf("foreach: argument is not callable")
	}
	var out script.Values
	for i := h.lo; i <= h.hi; i++ {
		select {
		case <-h.ctx.Done():
			return nil, h.ctx.Err()
		default:
		}
		ret, err := fn(script.Values{script.FromNumber(float64(i))})
		if err != nil {
			return nil, err
		}
		if len(ret) == 0 {
			continue
		}
		r := ret[0]
		switch r.Kind {
		case script.KindNil:
		case script.KindBool:
			if r.Bool {
				out = append(out, script.FromNumber(float64(i)))
			}
		case script.KindNumber:
			out = append(out, r)
		case script.KindList:
			out = append(out, r.List...)
		}
	}
	return script.Values{script.FromList(out)}, nil
}

func decodePredicate(v script.Value) (filterset.Predicate, error) {
	target, ok := v.StringField("target")
	if !ok {
		return filterset.Predicate{}, fmt.Errorf("predicate missing string field 'target'")
	}
	relStr, _ := v.StringField("relation")
	var rel filterset.Relation
	switch relStr {
	case "EQ", "":
		rel = filterset.EQ
	case "LT":
		rel = filterset.LT
	case "GT":
		rel = filterset.GT
	default:
		return filterset.Predicate{}, fmt.Errorf("predicate: unrecognized relation %q", relStr)
	}
	cv, ok := v.Field("value")
	if !ok {
		return filterset.Predicate{}, fmt.Errorf("predicate missing field 'value'")
	}
	return filterset.Predicate{Attr: target, Rel: rel, Const: cv.SpanValue()}, nil
}

func decodeClause(v script.Value) (filterset.Clause, error) {
	if v.Kind != script.KindList {
		p, err := decodePredicate(v)
		if err != nil {
			return nil, err
		}
		return filterset.Clause{p}, nil
	}
	clause := make(filterset.Clause, 0, len(v.List))
	for _, e := range v.List {
		p, err := decodePredicate(e)
		if err != nil {
			return nil, err
		}
		clause = append(clause, p)
	}
	return clause, nil
}

func (h *workerHost) filter(args []script.Value) (script.Values, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("filter: expected (predicate, src)")
	}
	clause, err := decodeClause(args[0])
	if err != nil {
		return nil, err
	}
	id := h.arena.RelDnf([]filterset.Clause{clause}, filterset.ID(int32(argID(args, 1))))
	return script.Values{script.FromNumber(float64(id))}, nil
}

// filterRange is shorthand for materializing a single filter over a
// range: filter_range(a, b, predicate) == filterset_materialize(filter(
// predicate, filterset_from_range(a, b))), returning the matching span
// ids directly rather than a filterset handle.
func (h *workerHost) filterRange(args []script.Value) (script.Values, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("filter_range: expected (lo, hi, predicate)")
	}
	lo := argID(args, 0)
	hi := argID(args, 1)
	clause, err := decodeClause(args[2])
	if err != nil {
		return nil, err
	}
	id := h.arena.RelDnf([]filterset.Clause{clause}, h.arena.FromRange(lo, hi))
	ids, err := h.arena.Materialize(h.ctx, id)
	if err != nil {
		return nil, err
	}
	return script.Values{script.FromUint32List(ids)}, nil
}

func (h *workerHost) filtersetFromRange(args []script.Value) (script.Values, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("filterset_from_range: expected (lo, hi)")
	}
	id := h.arena.FromRange(argID(args, 0), argID(args, 1))
	return script.Values{script.FromNumber(float64(id))}, nil
}

func (h *workerHost) idList(v script.Value) []filterset.ID {
	ids := v.Uint32List()
	out := make([]filterset.ID, len(ids))
	for i, n := range ids {
		out[i] = filterset.ID(int32(n))
	}
	return out
}

func (h *workerHost) filtersetUnion(args []script.Value) (script.Values, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("filterset_union: expected a list of handles")
	}
	id := h.arena.Or(h.idList(args[0]))
	return script.Values{script.FromNumber(float64(id))}, nil
}

func (h *workerHost) filtersetIntersect(args []script.Value) (script.Values, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("filterset_intersect: expected a list of handles")
	}
	id := h.arena.And(h.idList(args[0]))
	return script.Values{script.FromNumber(float64(id))}, nil
}

func (h *workerHost) filtersetNot(args []script.Value) (script.Values, error) {
	id := h.arena.Not(filterset.ID(int32(argID(args, 0))))
	return script.Values{script.FromNumber(float64(id))}, nil
}

func (h *workerHost) filtersetDnf(args []script.Value) (script.Values, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("filterset_dnf: expected (clause_list, src)")
	}
	if args[0].Kind != script.KindList {
		return nil, fmt.Errorf("filterset_dnf: clause_list must be a list")
	}
	clauses := make([]filterset.Clause, 0, len(args[0].List))
	for _, c := range args[0].List {
		clause, err := decodeClause(c)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}
	id := h.arena.RelDnf(clauses, filterset.ID(int32(argID(args, 1))))
	return script.Values{script.FromNumber(float64(id))}, nil
}

func (h *workerHost) filtersetMaterialize(args []script.Value) (script.Values, error) {
	ids, err := h.arena.Materialize(h.ctx, filterset.ID(int32(argID(args, 0))))
	if err != nil {
		return nil, err
	}
	return script.Values{script.FromUint32List(ids)}, nil
}

// join implements the cross-worker barrier: all but the last worker to
// arrive terminate without returning to the script (runtime.Goexit),
// since their contribution is already recorded in the barrier's
// mailbox; the last arrival receives every worker's submission
// concatenated in ascending worker-index order and keeps running.
func (h *workerHost) join(args []script.Value) (script.Values, error) {
	var partial []uint32
	if len(args) > 0 {
		partial = args[0].Uint32List()
	}
	merged, isLast := h.barrier.submit(h.index, partial)
	if !isLast {
		runtime.Goexit()
	}
	return script.Values{script.FromUint32List(merged)}, nil
}

func (h *workerHost) prettyTable(args []script.Value) (script.Values, error) {
	var ids []uint32
	if len(args) > 0 {
		ids = args[0].Uint32List()
	}
	out := ""
	for _, id := range ids {
		line, err := h.src.Stringify(id)
		if err != nil {
			return nil, err
		}
		out += fmt.Sprintf("%d\t%s\n", id, line)
	}
	return script.Values{script.FromString(out)}, nil
}

func (h *workerHost) log(args []script.Value) (script.Values, error) {
	if len(args) > 0 && h.logger != nil {
		h.logger.Printf("worker %d: %s", h.index, args[0].Str)
	}
	return nil, nil
}
