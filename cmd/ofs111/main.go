package main

import (
	"os"

	"github.com/couchcryptid/ofs-s111/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
