package main

import (
	"os"

	"github.com/forgebuild/forge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
