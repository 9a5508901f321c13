package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"resumerank/internal/cli"

	"github.com/joho/godotenv"
)

func main() {
	// A .env file is optional; real environment variables win over it.
	_ = godotenv.Load()

	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
