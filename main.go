package main

import (
	"os"

	"extblock/pkg/cli"
)

// Set version at compile time with
// go build -ldflags "-X extblock/pkg/version.Version=1.0.0" -o extblock

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
