package main

import (
	"os"

	"github.com/dmitrymomot/quotakit/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
