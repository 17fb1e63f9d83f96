// Command prodscout is the entry point for the product research assistant.
// It provides a CLI interface (via Cobra) and an optional HTTP server
// exposing the research API.
package main

import (
	"fmt"
	"os"

	"github.com/maresbv/prodscout-go/cmd/prodscout/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
