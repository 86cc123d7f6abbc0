// Package main is the entry point for the linebridge CLI.
package main

import (
	"os"

	"github.com/linebridge/linebridge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
