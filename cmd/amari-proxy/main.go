package main

import (
	"github.com/amari-ai/go-amari/internal/cli"
)

// version is set at build time via -ldflags "-X main.version=...".
var version string

func main() {
	cli.Main(version)
}
