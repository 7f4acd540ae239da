package main

import (
	"context"
	"os"

	"github.com/entireio/conductor/cmd/conductor/cli"
)

func main() {
	if err := cli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
