// Command carectl drives the booking backend from a terminal and serves the
// local sandbox backend.
package main

import (
	"os"

	"github.com/mindhaven/carekit/internal/commands"
)

// version is set via ldflags: -X main.version=v1.0.0
var version = "dev"

func main() {
	if err := commands.Execute(version); err != nil {
		os.Exit(1)
	}
}
