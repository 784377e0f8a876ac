// Command surveydash serves the survey completion dashboard and exports its
// company summary.
package main

import (
	"fmt"
	"os"
)

const appName = "surveydash"

// Set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
