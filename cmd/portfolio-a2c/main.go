package main

import (
	"os"

	"github.com/samuelfneumann/portfolioa2c/cmd/portfolio-a2c/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
