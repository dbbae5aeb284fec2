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
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/algorithmiker/entrace/worker"
)

// runQuery loads a trace file and a Lua script, then runs the script
// across a -w worker pool (inline, single-threaded when -w is 0 or
// unset) and prints the resulting span identifiers.
func runQuery(tracePath, scriptPath string) {
	r, closeFn, err := openTrace(tracePath)
	if err != nil {
		exitf("query: %v", err)
	}
	defer closeFn()

	src, err := os.ReadFile(scriptPath)
	if err != nil {
		exitf("query: reading script: %v", err)
	}

	p := worker.NewPool(dashw, nil)
	ids, err := p.Run(context.Background(), r, string(src))
	if err != nil {
		exitf("query: %v", err)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fmt.Println(id)
	}
}
