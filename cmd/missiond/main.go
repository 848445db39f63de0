// Package main is the entry point for the mission control daemon.
package main

import (
	"os"

	"github.com/therealkaiharper-wq/openclaw-mission-control/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
