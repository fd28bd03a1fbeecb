package main

import (
	"os"

	"github.com/asnlens/asnlens/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
