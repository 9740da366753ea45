package main

import (
	"os"

	"hemogram-alerts-go/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
