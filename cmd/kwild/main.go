package main

import (
	"os"

	_ "github.com/ssonetwork/node/extensions" // triggers extension registration via blank imports

	"github.com/ssonetwork/node/app"
	"go.uber.org/zap"
)

func main() {
	if err := app.RootCmd().Execute(); err != nil {
		zap.L().Fatal("Failed to execute root command", zap.Error(err))
	}
	os.Exit(0)
}

func init() {
	zap.ReplaceGlobals(zap.Must(zap.NewProduction()))
}
