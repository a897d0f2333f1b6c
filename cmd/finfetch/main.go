package main

import (
	"os"

	"github.com/wonny/finfetch/cmd/finfetch/commands"
)

// main is the entry point for the finfetch CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/finfetch [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
