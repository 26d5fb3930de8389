// Package bot implements the Discord slash command handlers for rolling dice
// and querying roll statistics.
package bot

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/cory-johannsen/dicebot/internal/dice"
	"github.com/cory-johannsen/dicebot/internal/stats"
)

// User-facing replies that are not dice parse errors.
const (
	msgCommandFailed = "There was an error executing this command!"
	msgGuildOnly     = "This command can only be used in a server."
	msgNoStats       = "No dice rolls recorded yet."
	msgNotAdmin      = "You need the Administrator permission to reset statistics."
	msgReset         = "Statistics cleared for "
	msgUserRequired  = "Choose a user whose statistics should be reset."
)

// recordTimeout bounds the statistics writes that follow a roll reply.
const recordTimeout = 5 * time.Second

// Responder sends interaction responses. *discordgo.Session satisfies it.
type Responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// DiceRoller parses and executes a roll expression.
type DiceRoller interface {
	Roll(expr string, modifier dice.Modifier) (dice.Outcome, error)
}

// RollRecorder forwards a roll outcome to the statistics sink.
type RollRecorder interface {
	Record(ctx context.Context, guildID, userID string, out dice.Outcome) error
}

// Bot routes application command interactions to their handlers.
type Bot struct {
	roller   DiceRoller
	recorder RollRecorder
	store    stats.Store
	logger   *zap.Logger
}

// New creates a Bot.
//
// Precondition: all arguments must be non-nil.
func New(roller DiceRoller, recorder RollRecorder, store stats.Store, logger *zap.Logger) *Bot {
	return &Bot{
		roller:   roller,
		recorder: recorder,
		store:    store,
		logger:   logger,
	}
}

// Dispatch handles one interaction. Non-command interactions and unknown
// commands are ignored.
func (b *Bot) Dispatch(ctx context.Context, r Responder, i *discordgo.Interaction) {
	if i == nil || i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	logger := b.logger.With(
		zap.String("command", data.Name),
		zap.String("interaction_id", i.ID),
		zap.String("guild_id", i.GuildID),
		zap.String("user_id", invokerID(i)),
	)

	var err error
	switch data.Name {
	case "roll":
		err = b.handleRoll(ctx, r, i, data, logger)
	case "stats":
		err = b.handleStats(ctx, r, i, data)
	case "leaderboard":
		err = b.handleLeaderboard(ctx, r, i, data)
	case "resetstats":
		err = b.handleResetStats(ctx, r, i, data)
	default:
		logger.Debug("ignoring unknown command")
		return
	}
	if err == nil {
		return
	}

	logger.Error("handling command", zap.Error(err))
	if rerr := replyEphemeral(r, i, msgCommandFailed); rerr != nil {
		logger.Warn("sending error reply", zap.Error(rerr))
	}
}

func (b *Bot) handleRoll(ctx context.Context, r Responder, i *discordgo.Interaction, data discordgo.ApplicationCommandInteractionData, logger *zap.Logger) error {
	expr := stringOption(data, "dice")
	modifier, err := dice.ParseModifier(stringOption(data, "modifier"))
	if err != nil {
		return replyEphemeral(r, i, dice.ErrInvalidFormat.Error())
	}

	out, err := b.roller.Roll(expr, modifier)
	if err != nil {
		var perr *dice.ParseError
		if errors.As(err, &perr) {
			return replyEphemeral(r, i, perr.Message)
		}
		return err
	}

	if err := replyEmbed(r, i, RollEmbed(out)); err != nil {
		return err
	}

	// The reply is already sent; a statistics failure is only logged.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := b.recorder.Record(recCtx, i.GuildID, invokerID(i), out); err != nil {
		logger.Warn("roll statistics incomplete",
			zap.String("roll_id", out.ID),
			zap.Error(err),
		)
	}
	return nil
}

func (b *Bot) handleStats(ctx context.Context, r Responder, i *discordgo.Interaction, data discordgo.ApplicationCommandInteractionData) error {
	if i.GuildID == "" {
		return replyEphemeral(r, i, msgGuildOnly)
	}
	userID := userOption(data, "user")
	if userID == "" {
		userID = invokerID(i)
	}

	us, err := b.store.UserStats(ctx, i.GuildID, userID)
	if errors.Is(err, stats.ErrNoStats) {
		return replyEphemeral(r, i, msgNoStats)
	}
	if err != nil {
		return err
	}
	return replyEmbed(r, i, StatsEmbed(us))
}

func (b *Bot) handleLeaderboard(ctx context.Context, r Responder, i *discordgo.Interaction, data discordgo.ApplicationCommandInteractionData) error {
	if i.GuildID == "" {
		return replyEphemeral(r, i, msgGuildOnly)
	}
	limit := int(intOption(data, "limit"))

	lb, err := b.store.Leaderboard(ctx, i.GuildID, limit)
	if err != nil {
		return err
	}
	return replyEmbed(r, i, LeaderboardEmbed(lb))
}

func (b *Bot) handleResetStats(ctx context.Context, r Responder, i *discordgo.Interaction, data discordgo.ApplicationCommandInteractionData) error {
	if i.GuildID == "" || i.Member == nil {
		return replyEphemeral(r, i, msgGuildOnly)
	}
	if i.Member.Permissions&discordgo.PermissionAdministrator == 0 {
		return replyEphemeral(r, i, msgNotAdmin)
	}
	userID := userOption(data, "user")
	if userID == "" {
		return replyEphemeral(r, i, msgUserRequired)
	}

	err := b.store.ResetUser(ctx, i.GuildID, userID)
	if errors.Is(err, stats.ErrNoStats) {
		return replyEphemeral(r, i, msgNoStats)
	}
	if err != nil {
		return err
	}
	b.logger.Info("statistics reset",
		zap.String("guild_id", i.GuildID),
		zap.String("user_id", userID),
		zap.String("by", invokerID(i)),
	)
	return replyEphemeral(r, i, msgReset+mention(userID))
}

func invokerID(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func findOption(data discordgo.ApplicationCommandInteractionData, name string) *discordgo.ApplicationCommandInteractionDataOption {
	for _, o := range data.Options {
		if o.Name == name {
			return o
		}
	}
	return nil
}

func stringOption(data discordgo.ApplicationCommandInteractionData, name string) string {
	if o := findOption(data, name); o != nil && o.Type == discordgo.ApplicationCommandOptionString {
		return o.StringValue()
	}
	return ""
}

func intOption(data discordgo.ApplicationCommandInteractionData, name string) int64 {
	if o := findOption(data, name); o != nil && o.Type == discordgo.ApplicationCommandOptionInteger {
		return o.IntValue()
	}
	return 0
}

func userOption(data discordgo.ApplicationCommandInteractionData, name string) string {
	if o := findOption(data, name); o != nil && o.Type == discordgo.ApplicationCommandOptionUser {
		return o.UserValue(nil).ID
	}
	return ""
}

func replyEmbed(r Responder, i *discordgo.Interaction, embed *discordgo.MessageEmbed) error {
	return r.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
}

func replyEphemeral(r Responder, i *discordgo.Interaction, content string) error {
	return r.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}
