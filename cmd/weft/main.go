// Package main provides the entry point for the weft CLI.
package main

import (
	"fmt"
	"os"

	"github.com/weft-ai/weft/cmd/weft/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
