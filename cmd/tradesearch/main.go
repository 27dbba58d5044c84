// Package main provides the entry point for the tradesearch CLI.
package main

import (
	"os"

	"github.com/mercavo/tradesearch/cmd/tradesearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
