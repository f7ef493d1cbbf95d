package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/timmy/matchsync/internal/logger"
)

func main() {
	appLogger := logger.NewFromEnv(logger.LoadFromEnv())
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCmd(appLogger).ExecuteContext(appLogger.WithContext(ctx))
	if err == nil {
		return
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintln(os.Stderr, "matchsync:", ee.err)
		}
		logger.Sync()
		os.Exit(ee.code)
	}
	fmt.Fprintln(os.Stderr, "matchsync:", err)
	logger.Sync()
	os.Exit(exitAborted)
}
