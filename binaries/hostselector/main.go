package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	dispatcherrors "github.com/twitter/dispatch/common/errors"
	"github.com/twitter/dispatch/common/log/hooks"
	"github.com/twitter/dispatch/dispatch/cli"
)

// Runs, queries and feeds the host selection service.
func main() {
	log.AddHook(hooks.NewContextHook())

	if err := cli.NewCLI().Exec(); err != nil {
		log.Error(err)
		os.Exit(int(dispatcherrors.ExitCodeOf(err)))
	}
}
