package main

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/CodeMonkeyCybersecurity/hermes/cmd"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/shared"
	"github.com/CodeMonkeyCybersecurity/hermes/pkg/telemetry"
)

func main() {
	logger.InitializeWithFallback()
	log := logger.L()
	if log == nil {
		panic("logger.L() returned nil after initialization")
	}

	if err := telemetry.Init(shared.HermesID); err != nil {
		log.Warn("Telemetry disabled", zap.Error(err))
	}

	code := cmd.Execute()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := telemetry.Shutdown(ctx); err != nil {
		log.Warn("Telemetry shutdown failed", zap.Error(err))
	}
	cancel()
	os.Exit(code)
}
