// Command depthwatch follows partial order book depth streams and prints
// every update, optionally relaying it to Redis or Kafka.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/IvanTurko/depthstream-go/internal/config"
	"github.com/IvanTurko/depthstream-go/internal/logx"
)

func main() {
	var (
		configPath  string
		envFile     string
		printConfig bool
		limit       int
	)
	flag.StringVar(&configPath, "config", "", "path to a YAML config file")
	flag.StringVar(&envFile, "env", ".env", "path to a .env file")
	flag.BoolVar(&printConfig, "print-config", false, "print the effective config and exit")
	flag.IntVar(&limit, "n", 0, "stop after n updates (0 means never)")
	flag.Parse()

	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "depthwatch: %v\n", err)
		os.Exit(1)
	}
	if printConfig {
		if err := cfg.Dump(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "depthwatch: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logger := logx.New(cfg.App.LogLevel).Named(cfg.App.Name)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := newWatcher(ctx, cfg, logger, os.Stdout)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		os.Exit(1)
	}
	defer w.close()
	w.limit = limit

	if err := w.run(ctx); err != nil {
		logger.Error("depthwatch stopped", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("depthwatch stopped")
}
