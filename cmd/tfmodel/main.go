// Command tfmodel downloads TensorFlow.js web-format models, caches them on
// disk, and hosts them as inference nodes over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/tfmodel/tfmodel/internal/cli"
	"github.com/tfmodel/tfmodel/pkg/version"
)

func run() error {
	return cli.NewRootCmd(version.GetVersion()).Execute()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
