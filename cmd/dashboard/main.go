package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"digitdash/config"
	"digitdash/logger"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: search ./config)")
	flag.Parse()

	// viper config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(cfg, log)
	if err != nil {
		log.Fatal("failed to build app", zap.Error(err))
	}

	if err := app.Run(ctx); err != nil {
		log.Error("app stopped with error", zap.Error(err))
		os.Exit(1)
	}
}
