package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	appcfg "github.com/park285/cheese-review/internal/config"
	"github.com/park285/cheese-review/internal/obslog"
	"github.com/park285/cheese-review/internal/reviewbuilder"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	cfg, err := appcfg.Load()
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := reviewbuilder.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("review_init_error", zap.Error(err))
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn("shutdown_error", zap.Error(err))
		}
	}()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = deps.Reviewer.Run(ctx)
	}()

	go deps.Bootstrap(ctx)

	if err := deps.Server.ListenAndServe(ctx, cfg.ListenAddr); err != nil {
		logger.Error("liveview_error", zap.Error(err))
		stop()
	}
	<-loopDone
	logger.Info("review_stopped")
}
