package main

import (
	"os"

	"github.com/conneroisu/tplsync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
