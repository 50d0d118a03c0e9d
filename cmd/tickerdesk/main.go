// Command tickerdesk is the backend entry point for the simulated trading
// desk. Subcommands serve the HTTP API, look up a single ticker, inspect the
// trade journal and validate configuration.
package main

import (
	"os"

	"github.com/alanyoungcy/tickerdesk/cmd/tickerdesk/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
