// Package main provides the entry point for the skuseek CLI.
package main

import (
	"os"

	"github.com/skuseek/skuseek/cmd/skuseek/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
