package main

import (
	"os"

	"github.com/codenav/codenav/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
