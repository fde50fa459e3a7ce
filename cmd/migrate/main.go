package main

import (
	"os"

	tool "github.com/whitecard/whitecard-backend/internal/tools/migrate"
)

// Cobra already prints the error and usage.
func main() {
	if err := tool.NewRootCommand().Execute(); err != nil {
		os.Exit(2)
	}
}
