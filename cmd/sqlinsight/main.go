// Package main provides the CLI for sqlinsight.
package main

import (
	"os"

	"github.com/leapstack-labs/sqlinsight/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
