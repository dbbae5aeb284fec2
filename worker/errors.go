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

// Package worker implements the query engine's worker pool: it
// partitions a span range across W workers, runs one embedded script
// interpreter per worker (see worker/script), aggregates their results,
// and supports a map-reduce join barrier for cross-worker
// communication.
package worker

import "fmt"

// ScriptError reports a script failure on one worker. It aborts the
// whole query: the pool cancels every other worker's context and
// returns this error to the caller.
type ScriptError struct {
	WorkerIndex int
	Message     string
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("worker %d: script error: %s", e.WorkerIndex, e.Message)
}
