// Command tastefi creates restaurant profiles on the dashboard program and
// verifies what the ledger stored.
package main

import (
	"os"

	"github.com/roach88/tastefi/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
