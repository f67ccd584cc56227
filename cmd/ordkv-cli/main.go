// Package main provides the entry point for ordkv-cli, the interactive
// command shell for an embedded ordkv store.
package main

import (
	"fmt"
	"os"

	"github.com/ordkv/ordkv/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
