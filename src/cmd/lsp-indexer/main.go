package main

import (
	"fmt"
	"os"

	"lsp-indexer/src/cli"
	"lsp-indexer/src/internal/errors"
)

// runMain executes the main application logic and returns the exit code
// This function is extracted for testing purposes
func runMain() int {
	if err := cli.Execute(); err != nil {
		if code := errors.ErrorCode(err); code != 0 {
			fmt.Fprintf(os.Stderr, "Error [%d]: %v\n", code, err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func main() {
	exitCode := runMain()
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
