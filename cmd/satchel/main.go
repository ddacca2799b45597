// Package main provides the satchel CLI, the operator surface over the
// offline queue, id registry, processor, and sync engine.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
