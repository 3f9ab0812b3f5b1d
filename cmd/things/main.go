// Package main runs the things engine over NDJSON commands.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	thingscmd "github.com/louisbranch/twinworks/internal/cmd/things"
)

func main() {
	cfg, err := thingscmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[THINGS] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := thingscmd.Run(ctx, cfg, os.Stdout); err != nil {
		log.Fatalf("things: %v", err)
	}
}
