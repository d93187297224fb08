// Package main is the entry point for glm-tray. It loads configuration, builds
// the service manager and runs the terminal dashboard or one of the one-shot
// commands.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
