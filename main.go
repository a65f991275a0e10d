package main

import (
	"os"

	"github.com/athena-engine/athena/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
