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
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/algorithmiker/entrace/ingest"
)

// runIngest listens on addr for length-prefixed stream connections
// until interrupted (SIGINT/SIGTERM), then writes everything ingested
// to -o in indexed form.
func runIngest(addr string) {
	srv, err := ingest.Listen(addr)
	if err != nil {
		exitf("ingest: %v", err)
	}
	if dashv > 0 {
		srv.Logger = log.New(os.Stderr, "entrace-ingest: ", log.LstdFlags)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Printf("entrace: listening on %s", srv.Listener.Addr())
	if err := srv.Serve(ctx); err != nil {
		exitf("ingest: %v", err)
	}

	out := os.Stdout
	if dasho != "-" {
		f, err := os.Create(dasho)
		if err != nil {
			exitf("ingest: creating %s: %v", dasho, err)
		}
		defer f.Close()
		out = f
	}
	if err := srv.WriteIndexed(out); err != nil {
		exitf("ingest: writing output: %v", err)
	}
}
