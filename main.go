package main

import (
	"os"

	"github.com/conneroisu/pagemill/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
