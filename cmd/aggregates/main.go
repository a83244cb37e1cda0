package main

import (
	"context"
	"os"

	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
)

const appName string = "aggregates"

var appVersion = "develop"

func main() {
	appVersion = buildinfo.SourceVersion()

	ctx, logger, cleanup := o11y.Init(context.Background(), appName, appVersion, "json")
	log = logger

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(err.Error())
		cleanup()
		os.Exit(1)
	}

	cleanup()
}
