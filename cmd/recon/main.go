// Package main provides the entry point for the recon dataset reconciliation tool.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
