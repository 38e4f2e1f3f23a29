package main

import (
	"os"

	"github.com/mellobo05/Ai-Assisted-Debug/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
