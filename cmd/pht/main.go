package main

import (
	"os"

	"github.com/opst/pht-central/cmd/pht/subcmd"
)

func main() {
	if err := subcmd.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
