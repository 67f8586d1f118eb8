package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/dunamismax/pixelshift/internal/app"
	"github.com/dunamismax/pixelshift/internal/config"
	"github.com/dunamismax/pixelshift/internal/logging"
	"github.com/dunamismax/pixelshift/internal/serverless"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New(config.LogConfig{Level: "info", Format: "json"}, "lambda")
		bootLogger.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.Log, "lambda")

	// The sandbox is frozen between invocations and never signalled, so the
	// service lives for the process lifetime.
	service, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("assemble service")
	}

	lambda.Start(serverless.NewAPIGatewayHandler(service.Handler()))
}
