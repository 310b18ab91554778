package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/helmsman/internal/config"
	"github.com/zeusync/helmsman/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file; defaults apply when empty")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}

	srv, cleanup, err := injector.InitializeServer(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error building server:", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start the server
	if err = srv.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error starting server:", err)
		return
	}

	<-ctx.Done()
	if err = srv.Stop(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error stopping server:", err)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}
