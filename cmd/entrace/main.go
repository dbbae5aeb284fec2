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

// Command entrace is the command-line front end for the span-tree
// store and query engine: it dumps a trace file, converts between
// stream and indexed form, and runs ad hoc worker-pool queries.
package main

import (
	"flag"
	"fmt"
	"os"
)

var (
	dashv int
	dasho string
	dashw int
)

func init() {
	flag.IntVar(&dashv, "v", 0, "verbosity (any value above 0 prefixes ingest log lines with \"entrace-ingest: \"; levels are not otherwise distinguished)")
	flag.StringVar(&dasho, "o", "-", "output file (or - for stdout)")
	flag.IntVar(&dashw, "w", 0, "worker count for query (0 runs single-threaded, inline)")
}

func exitf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, f+"\n", args...)
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "    %s dump <file>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "        dump a stream- or indexed-form trace as text\n")
	fmt.Fprintf(os.Stderr, "    %s [-o <output>] convert <stream|indexed> <file>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "        convert a trace file between stream and indexed form\n")
	fmt.Fprintf(os.Stderr, "    %s [-w <workers>] query <file> <script.lua>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "        run a worker-pool query script against a trace file\n")
	fmt.Fprintf(os.Stderr, "    %s [-o <output>] ingest <addr>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "        accept length-prefixed stream connections until interrupted\n")
	fmt.Fprintf(os.Stderr, "flag usage:\n")
	flag.Usage()
}

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	switch args[0] {
	case "dump":
		if len(args) != 2 {
			exitf("usage: dump <file>")
		}
		dump(args[1])
	case "convert":
		if len(args) != 3 {
			exitf("usage: convert <stream|indexed> <file>")
		}
		convert(args[1], args[2])
	case "query":
		if len(args) != 3 {
			exitf("usage: query <file> <script.lua>")
		}
		runQuery(args[1], args[2])
	case "ingest":
		if len(args) != 2 {
			exitf("usage: ingest <addr>")
		}
		runIngest(args[1])
	default:
		usage()
		os.Exit(1)
	}
}
