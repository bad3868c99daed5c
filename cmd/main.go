package main

import (
	"os"

	"github.com/dhsingh07/ensureu-sub002/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
