// Command statusctl inspects the checkpoint status pipeline from a shell:
// it scores hypothetical reports, runs one refresh pass against the
// configured store, and checks the embedded offline dataset.
//
// Usage:
//
//	go run ./cmd/statusctl score --severity red --wait 45 --traffic green
//	go run ./cmd/statusctl snapshot --json
//	go run ./cmd/statusctl dataset
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
