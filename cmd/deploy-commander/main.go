// Package main provides the deploy-commander CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/Nikolaikolya/deploy-commander/internal/cli"
)

func main() {
	// A missing .env is fine; variables then come from the process environment.
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
