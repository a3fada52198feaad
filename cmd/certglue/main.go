package main

import (
	"github.com/ksyq12/certglue/internal/cli"
	_ "github.com/ksyq12/certglue/internal/driver" // Register drivers
)

// version is set via ldflags at release time
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.Execute()
}
