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

// Package rewrite factors the generic "apply rules until nothing
// changes" machinery out of any particular rule set, the way Sneller's
// rules package separates the generic rewrite-rule syntax from the
// concrete simplifications in expr/simplify.go. Here the rules aren't a
// textual pattern language (filtersets are built programmatically,
// never parsed), so a Rule is just a Go function; the value worth
// factoring out is the fixed-point driver itself, since both the
// filterset arena and any future rewrite consumer need the same
// "repeat until stable" loop with the same termination discipline.
package rewrite

// Rule transforms a value of type T, reporting whether it made any
// change. A Rule is expected to be idempotent once nothing more can be
// done: applying it to its own output with no further applicable
// change must report changed=false.
type Rule[T any] func(T) (T, bool)

// Fixpoint repeatedly applies every rule in rules to v, in order, until
// a full pass over all rules makes no change. It returns the final
// value and whether any rule fired at least once across the whole run.
//
// Termination is the caller's responsibility: Fixpoint does not bound
// the number of passes. Every rule used by the filterset arena is
// structurally reducing (flattening strictly reduces nesting depth;
// fusion strictly reduces node count or is skipped via a size guard),
// so the loop below always halts for that rule set.
func Fixpoint[T any](v T, rules []Rule[T]) (T, bool) {
	everChanged := false
	for {
		progressed := false
		for _, rule := range rules {
			nv, changed := rule(v)
			if changed {
				v = nv
				progressed = true
				everChanged = true
			}
		}
		if !progressed {
			return v, everChanged
		}
	}
}
