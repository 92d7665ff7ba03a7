package main

import (
	"os"

	"github.com/recontor/recontor/cmd/recontor/commands"
)

func main() {
	if err := commands.NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
