// Package main provides the entry point for the idxstore CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/idxstore/cmd/idxstore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
