// Package main provides the entry point for the semidx CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/semidx/cmd/semidx/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
