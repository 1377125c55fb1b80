// cmd/caseline-stubd/main.go
//
// Standalone demo backend for the caseline console. It serves the same HTTP
// surface a real case engine would and holds all state in memory, so a fresh
// process is a fresh demo.

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mhollis/caseline/internal/stubserver"
)

const shutdownGrace = 5 * time.Second

func main() {
	logger := log.New(os.Stdout, "caseline-stubd ", log.LstdFlags)

	settings := stubserver.DefaultSettings()
	server := stubserver.NewServer(settings, stubserver.WithLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting stub backend: %v\n", err)
		os.Exit(1)
	}

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error shutting down: %v\n", err)
		os.Exit(1)
	}
	logger.Printf("stopped")
}
