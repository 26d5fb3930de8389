// Package main runs the dice bot: Discord slash commands backed by a
// statistics store, plus a gRPC health endpoint.
package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cory-johannsen/dicebot/internal/config"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before configuration")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading %s: %v", *envFile, err)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx := context.Background()
	app, cleanup, err := initializeApp(ctx, cfg)
	if err != nil {
		log.Fatalf("initializing: %v", err)
	}

	app.logger.Info("dice bot initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("health_addr", cfg.Health.Addr()),
	)

	if err := app.lifecycle(cfg.ShutdownTimeout, cleanup).Run(ctx); err != nil {
		log.Printf("dice bot stopped with errors: %v", err)
		os.Exit(1)
	}
}

// loadConfig reads path when it exists; otherwise configuration comes from
// defaults and the environment alone.
func loadConfig(path string) (config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return config.LoadFromViper(config.NewViper())
	}
	return config.Load(path)
}
