package main

import (
	"fmt"
	"os"

	"github.com/bnema/wayime/cmd"
)

// Set by the linker: -X main.version=... -X main.commit=... -X main.date=...
var (
	version = "0.1.0-dev"
	commit  string
	date    string
)

func main() {
	cmd.Version = version
	cmd.Commit = commit
	cmd.Date = date

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
