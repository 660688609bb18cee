// Package main is the entry point for the ovagrab command-line client.
package main

import (
	"fmt"
	"os"

	"github.com/iconidentify/ovagrab/cmd/ovagrab/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
