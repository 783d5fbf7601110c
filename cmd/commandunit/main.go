package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"log"

	"github.com/robotalks/valvelink/pkg/unit"
	"github.com/robotalks/valvelink/pkg/unit/env"
)

func init() {
	env.SetRole(unit.RoleCommand)
	env.SetupFlags()
}

func main() {
	conf, err := env.Parse()
	if err != nil {
		flag.Usage()
		log.Fatalln(err)
	}
	conf.MustNewEnv(context.Background()).RunOrFail()
}
