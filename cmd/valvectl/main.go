package main

import (
	"github.com/robotalks/valvelink/pkg/cli/sh"

	_ "github.com/robotalks/valvelink/pkg/cli/cmds/valve"
)

//go-build: CGO_ENABLED=0

func main() {
	sh.Main()
}
