package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/dicebot/internal/bot"
	"github.com/cory-johannsen/dicebot/internal/config"
	"github.com/cory-johannsen/dicebot/internal/health"
	"github.com/cory-johannsen/dicebot/internal/observability"
	"github.com/cory-johannsen/dicebot/internal/server"
	"github.com/cory-johannsen/dicebot/internal/stats"
)

func provideLogger(cfg config.LoggingConfig) (*zap.Logger, func(), error) {
	logger, err := observability.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

func provideSink(store stats.Store) stats.Sink {
	return store
}

func providePinger(store stats.Store) health.Pinger {
	return store
}

// application is the assembled bot process.
type application struct {
	logger *zap.Logger
	bot    server.Service
	health server.Service
}

func newApplication(logger *zap.Logger, botSvc *bot.Service, healthSrv *health.Server) *application {
	return &application{logger: logger, bot: botSvc, health: healthSrv}
}

// lifecycle registers the services and hands cleanup to the Lifecycle so it
// runs once both services have stopped.
func (a *application) lifecycle(shutdownTimeout time.Duration, cleanup func()) *server.Lifecycle {
	lc := server.NewLifecycle(a.logger, server.WithShutdownTimeout(shutdownTimeout))
	lc.Add("health", a.health)
	lc.Add("discord", a.bot)
	lc.AddCleanup("storage", cleanup)
	return lc
}
