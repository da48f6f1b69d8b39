// Package main provides the CLI for the parcelboard dashboard engine.
package main

import (
	"os"

	"github.com/parcelstack-labs/parcelboard/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
