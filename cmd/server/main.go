package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/OFFIS-RIT/kgops/internal/app"
	"github.com/OFFIS-RIT/kgops/internal/config"
	"github.com/OFFIS-RIT/kgops/internal/db"
	"github.com/OFFIS-RIT/kgops/internal/server"
	"github.com/OFFIS-RIT/kgops/internal/util"
	"github.com/OFFIS-RIT/kgops/pkg/logger"
)

func main() {
	util.LoadEnv()

	cfg, err := config.Load("")
	if err != nil {
		app.InitLogger(config.Default())
		logger.Fatal("Invalid configuration", "err", err)
	}
	app.InitLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := db.Migrate(cfg.Database.URL, ""); err != nil {
		logger.Fatal("Failed to migrate database", "err", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize", "err", err)
	}
	defer a.Close()

	if err := server.Run(ctx, a); err != nil {
		logger.Fatal("Server stopped", "err", err)
	}
}
