// goalctl is a terminal client for the Goal Architect server.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/ashureev/goal-architect/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
