// Package main is the entry point for the look-pyrenees CLI and service.
package main

import (
	"os"

	"github.com/i474232898/look-pyrenees/cmd/look-pyrenees/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
