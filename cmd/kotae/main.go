package main

import (
	"os"

	"github.com/bdobrica/kotae/cmd/kotae/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
