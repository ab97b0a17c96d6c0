// Package main provides the entry point for the docsearch CLI.
package main

import (
	"os"

	"github.com/Adithya-Monish-Kumar-K/docsearch/cmd/docsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
