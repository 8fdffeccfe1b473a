// Package main provides the CLI for the leapformula formula engine.
package main

import (
	"os"

	"github.com/leapstack-labs/leapformula/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
