package main

import (
	"os"

	"github.com/microsoft/CSS-SQL-Networking-Tools-sub002/internal/cli"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cli.SetVersion(version)
	os.Exit(cli.Execute())
}
