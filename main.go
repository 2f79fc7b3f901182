package main

import (
	"os"

	"github.com/ottoq/ottoq/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
