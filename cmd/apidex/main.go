// Package main provides the entry point for the apidex CLI.
package main

import (
	"os"

	"github.com/apidex/apidex/cmd/apidex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
