// Package main provides the taxorank binary entry point.
// Taxorank grows a taxonomy from a single concept name by asking a language
// model for ranks and subconcepts, checkpointing every step.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	// Register LLM providers via init()
	_ "github.com/c360studio/taxorank/llm/providers"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "taxorank"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd(&cliOptions{}).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
