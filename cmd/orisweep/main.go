package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/orisweep/cmd/orisweep/commands"
	"github.com/timmy/orisweep/internal/logger"
)

func main() {
	appLogger := logger.NewFromEnv(nil)
	logger.SetDefaultLogger(appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := commands.ExecuteContext(ctx)

	stop()
	_ = logger.Sync()
	os.Exit(code)
}
