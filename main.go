// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"readcheck/cmd"
	"readcheck/internal/log"
	"readcheck/pkg/build"
)

// main resolves build information, then hands off to the command line.
// SIGINT and SIGTERM cancel the command's context so a live session can
// stop its capture, finish any recording and print its summary.
func main() {
	if err := build.Initialize(); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil && !errors.Is(err, context.Canceled) {
		stop()
		log.Fatal(err)
	}
}
