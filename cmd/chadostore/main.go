// Command chadostore maps content field properties onto a GMOD Chado database.
package main

import (
	"os"

	"github.com/mesh-intelligence/chadostore/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
