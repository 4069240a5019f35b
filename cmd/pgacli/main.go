package main

import (
	"github.com/robotalks/pga308/pkg/cli/sh"
	"github.com/robotalks/pga308/pkg/config"
)

//go-build: CGO_ENABLED=0

func init() {
	config.SetupFlags()
}

func main() {
	sh.Main()
}
