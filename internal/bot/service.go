package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/cory-johannsen/dicebot/internal/config"
)

// Service connects the Bot to the Discord gateway.
type Service struct {
	cfg    config.DiscordConfig
	bot    *Bot
	logger *zap.Logger

	session  *discordgo.Session
	removeFn func()

	mu         sync.Mutex
	registered []*discordgo.ApplicationCommand

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewService creates a Service with a gateway session for cfg.Token.
//
// Precondition: cfg.Token must be non-empty.
// Postcondition: Returns a Service ready to Start, or a non-nil error.
func NewService(cfg config.DiscordConfig, b *Bot, logger *zap.Logger) (*Service, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:     cfg,
		bot:     b,
		logger:  logger,
		session: session,
		ctx:     ctx,
		cancel:  cancel,
	}
	s.removeFn = session.AddHandler(func(sess *discordgo.Session, ic *discordgo.InteractionCreate) {
		s.bot.Dispatch(s.ctx, sess, ic.Interaction)
	})
	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		logger.Info("discord session ready",
			zap.String("user", r.User.Username),
			zap.Int("guilds", len(r.Guilds)),
		)
	})
	return s, nil
}

// Start opens the gateway connection, registers the command catalog, and
// blocks until Stop is called. Start returns nil without registering commands
// if Stop has already been called.
func (s *Service) Start() error {
	commands, err := Commands()
	if err != nil {
		return err
	}

	if s.ctx.Err() != nil {
		return nil
	}
	if err := s.session.Open(); err != nil {
		return fmt.Errorf("opening discord session: %w", err)
	}
	// Stop may have run while Open was connecting.
	if s.ctx.Err() != nil {
		if err := s.session.Close(); err != nil {
			s.logger.Warn("closing discord session", zap.Error(err))
		}
		return nil
	}

	appID := s.session.State.User.ID
	registered, err := s.session.ApplicationCommandBulkOverwrite(appID, s.cfg.GuildID, commands)
	if err != nil {
		_ = s.session.Close()
		return fmt.Errorf("registering commands: %w", err)
	}
	s.mu.Lock()
	s.registered = registered
	s.mu.Unlock()
	s.logger.Info("registered application commands",
		zap.Int("count", len(registered)),
		zap.String("guild_id", s.cfg.GuildID),
	)

	<-s.ctx.Done()
	return nil
}

// Stop unblocks Start, optionally removes the registered commands, and
// closes the gateway connection.
func (s *Service) Stop() {
	s.once.Do(func() {
		s.cancel()
		s.removeFn()

		s.mu.Lock()
		registered := s.registered
		s.mu.Unlock()
		if s.cfg.RemoveCommands && s.session.State != nil && s.session.State.User != nil {
			appID := s.session.State.User.ID
			for _, c := range registered {
				if err := s.session.ApplicationCommandDelete(appID, s.cfg.GuildID, c.ID); err != nil {
					s.logger.Warn("removing command",
						zap.String("command", c.Name),
						zap.Error(err),
					)
				}
			}
		}
		if err := s.session.Close(); err != nil {
			s.logger.Warn("closing discord session", zap.Error(err))
		}
	})
}
