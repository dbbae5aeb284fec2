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

package main

import (
	"bufio"
	"fmt"
	"os"
)

// dump prints every span in path, one per line, each prefixed with its
// identifier and indented by its depth in the span tree.
func dump(path string) {
	r, closeFn, err := openTrace(path)
	if err != nil {
		exitf("dump: %v", err)
	}
	defer closeFn()

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	lo, hi := r.SpanRange()
	depth := make(map[uint32]int, hi-lo+1)
	for id := lo; id <= hi; id++ {
		d := 0
		if id != 0 {
			p, err := r.Parent(id)
			if err != nil {
				exitf("dump: span %d: %v", id, err)
			}
			d = depth[p] + 1
		}
		depth[id] = d

		line, err := r.Stringify(id)
		if err != nil {
			exitf("dump: span %d: %v", id, err)
		}
		for i := 0; i < d; i++ {
			fmt.Fprint(w, "  ")
		}
		fmt.Fprintf(w, "[%d] %s\n", id, line)
	}
}
