//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"github.com/cory-johannsen/dicebot/internal/bot"
	"github.com/cory-johannsen/dicebot/internal/config"
	"github.com/cory-johannsen/dicebot/internal/dice"
	"github.com/cory-johannsen/dicebot/internal/health"
	"github.com/cory-johannsen/dicebot/internal/stats"
	"github.com/cory-johannsen/dicebot/internal/storage"
)

func initializeApp(ctx context.Context, cfg config.Config) (*application, func(), error) {
	wire.Build(
		wire.FieldsOf(new(config.Config), "Discord", "Database", "Logging", "Health"),
		provideLogger,
		storage.Open,
		dice.NewCryptoSource,
		dice.NewLoggedRoller,
		wire.Bind(new(bot.DiceRoller), new(*dice.Roller)),
		provideSink,
		stats.NewRecorder,
		wire.Bind(new(bot.RollRecorder), new(*stats.Recorder)),
		bot.New,
		bot.NewService,
		providePinger,
		health.NewServer,
		newApplication,
	)
	return nil, nil, nil
}
