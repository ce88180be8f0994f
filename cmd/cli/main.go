// Package main is the entry point for the parcel-rate CLI.
package main

import (
	"os"

	"parcel-rate/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
