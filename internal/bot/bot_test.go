package bot_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/dicebot/internal/bot"
	"github.com/cory-johannsen/dicebot/internal/dice"
	"github.com/cory-johannsen/dicebot/internal/stats"
	"github.com/cory-johannsen/dicebot/internal/storage/sqlite"
)

// fakeResponder captures responses; failFirst makes the first call fail.
type fakeResponder struct {
	responses []*discordgo.InteractionResponse
	failFirst bool
}

func (f *fakeResponder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.responses = append(f.responses, resp)
	if f.failFirst && len(f.responses) == 1 {
		return errors.New("gateway unavailable")
	}
	return nil
}

func (f *fakeResponder) last(t *testing.T) *discordgo.InteractionResponseData {
	t.Helper()
	require.NotEmpty(t, f.responses)
	return f.responses[len(f.responses)-1].Data
}

// failingStore wraps a real store but rejects every write.
type failingStore struct {
	stats.Store
}

func (failingStore) RecordRoll(context.Context, stats.Event) error {
	return errors.New("disk full")
}

// faces returns a source producing exactly the given face values on a die with sides faces.
func faces(sides int, values ...int) dice.Source {
	i := 0
	return dice.SourceFunc(func() float64 {
		v := values[i%len(values)]
		i++
		return (float64(v) - 0.5) / float64(sides)
	})
}

type harness struct {
	bot   *bot.Bot
	store stats.Store
	resp  *fakeResponder
}

func newHarness(t *testing.T, src dice.Source) *harness {
	t.Helper()
	repo, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return newHarnessWithStore(t, src, repo)
}

func newHarnessWithStore(t *testing.T, src dice.Source, store stats.Store) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	roller := dice.NewLoggedRoller(src, logger)
	recorder := stats.NewRecorder(store, logger)
	return &harness{
		bot:   bot.New(roller, recorder, store, logger),
		store: store,
		resp:  &fakeResponder{},
	}
}

func (h *harness) dispatch(i *discordgo.Interaction) {
	h.bot.Dispatch(context.Background(), h.resp, i)
}

func command(guildID, userID, name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.Interaction {
	i := &discordgo.Interaction{
		ID:      "interaction-1",
		Type:    discordgo.InteractionApplicationCommand,
		GuildID: guildID,
		Data: discordgo.ApplicationCommandInteractionData{
			Name:    name,
			Options: opts,
		},
	}
	if guildID == "" {
		i.User = &discordgo.User{ID: userID}
	} else {
		i.Member = &discordgo.Member{User: &discordgo.User{ID: userID}}
	}
	return i
}

func strOpt(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name: name, Type: discordgo.ApplicationCommandOptionString, Value: value,
	}
}

func intOpt(name string, value int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name: name, Type: discordgo.ApplicationCommandOptionInteger, Value: float64(value),
	}
}

func userOpt(name, id string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name: name, Type: discordgo.ApplicationCommandOptionUser, Value: id,
	}
}

func fieldMap(embed *discordgo.MessageEmbed) map[string]string {
	m := make(map[string]string, len(embed.Fields))
	for _, f := range embed.Fields {
		m[f.Name] = f.Value
	}
	return m
}

func TestRoll_KeepHighest(t *testing.T) {
	h := newHarness(t, faces(6, 2, 6, 4, 1))
	h.dispatch(command("guild", "alice", "roll", strOpt("dice", "4d6kh3")))

	require.Len(t, h.resp.responses, 1)
	assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, h.resp.responses[0].Type)
	data := h.resp.last(t)
	require.Len(t, data.Embeds, 1)

	embed := data.Embeds[0]
	assert.Equal(t, "🎲 Dice Roll", embed.Title)
	assert.Equal(t, 0x0099ff, embed.Color)
	assert.Equal(t, "Rolling 4d6 keeping highest 3...", embed.Description)
	assert.Equal(t, map[string]string{
		"All Rolls":  "2, 6, 4, 1",
		"Kept Rolls": "6, 4, 2",
		"Total":      "12",
	}, fieldMap(embed))

	us, err := h.store.UserStats(context.Background(), "guild", "alice")
	require.NoError(t, err)
	assert.Equal(t, stats.OverallStats{Rolls: 3, Crits: 1, Value: 12, PossibleValue: 18}, us.Overall)
}

func TestRoll_Simple(t *testing.T) {
	h := newHarness(t, faces(8, 3, 8))
	h.dispatch(command("guild", "bob", "roll", strOpt("dice", "2d8")))

	embed := h.resp.last(t).Embeds[0]
	assert.Equal(t, "Rolling 2d8...", embed.Description)
	assert.Equal(t, map[string]string{"Rolls": "3, 8", "Total": "11"}, fieldMap(embed))
}

func TestRoll_Advantage(t *testing.T) {
	h := newHarness(t, faces(20, 15, 9))
	h.dispatch(command("guild", "carol", "roll", strOpt("dice", "d20"), strOpt("modifier", "advantage")))

	embed := h.resp.last(t).Embeds[0]
	assert.Equal(t, "Rolling with advantage...", embed.Description)
	assert.Equal(t, map[string]string{"Rolls": "15, 9", "Result": "15"}, fieldMap(embed))

	us, err := h.store.UserStats(context.Background(), "guild", "carol")
	require.NoError(t, err)
	require.Len(t, us.Dice, 1)
	assert.Equal(t, stats.DieStats{Sides: 20, Rolls: 1, Crits: 0, Value: 15}, us.Dice[0])
}

func TestRoll_Disadvantage(t *testing.T) {
	h := newHarness(t, faces(20, 15, 9))
	h.dispatch(command("guild", "carol", "roll", strOpt("dice", "1d20"), strOpt("modifier", "disadvantage")))

	embed := h.resp.last(t).Embeds[0]
	assert.Equal(t, map[string]string{"Rolls": "15, 9", "Result": "9"}, fieldMap(embed))
}

func TestRoll_ParseErrorsAreEphemeral(t *testing.T) {
	tests := []struct {
		name     string
		opts     []*discordgo.ApplicationCommandInteractionDataOption
		expected string
	}{
		{"too many dice", []*discordgo.ApplicationCommandInteractionDataOption{strOpt("dice", "101d6")}, dice.ErrTooManyDice.Message},
		{"unsupported die", []*discordgo.ApplicationCommandInteractionDataOption{strOpt("dice", "d7")}, dice.ErrUnsupportedDie.Message},
		{"keep exceeds", []*discordgo.ApplicationCommandInteractionDataOption{strOpt("dice", "2d6kh3")}, dice.ErrKeepExceedsCount.Message},
		{"advantage non d20", []*discordgo.ApplicationCommandInteractionDataOption{strOpt("dice", "2d6"), strOpt("modifier", "advantage")}, dice.ErrAdvantageRequiresD20.Message},
		{"garbage", []*discordgo.ApplicationCommandInteractionDataOption{strOpt("dice", "abc")}, dice.ErrInvalidFormat.Message},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, faces(6, 1))
			h.dispatch(command("guild", "dave", "roll", tt.opts...))

			require.Len(t, h.resp.responses, 1)
			data := h.resp.last(t)
			assert.Equal(t, tt.expected, data.Content)
			assert.Equal(t, discordgo.MessageFlagsEphemeral, data.Flags)
			assert.Empty(t, data.Embeds)

			_, err := h.store.UserStats(context.Background(), "guild", "dave")
			assert.ErrorIs(t, err, stats.ErrNoStats)
		})
	}
}

func TestRoll_DirectMessageNotRecorded(t *testing.T) {
	h := newHarness(t, faces(6, 6))
	h.dispatch(command("", "erin", "roll", strOpt("dice", "d6")))

	require.Len(t, h.resp.responses, 1)
	assert.Len(t, h.resp.last(t).Embeds, 1)

	_, err := h.store.UserStats(context.Background(), "", "erin")
	assert.ErrorIs(t, err, stats.ErrNoStats)
}

func TestRoll_SinkFailureDoesNotChangeReply(t *testing.T) {
	repo, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	h := newHarnessWithStore(t, faces(6, 2, 6, 4, 1), failingStore{Store: repo})
	h.dispatch(command("guild", "frank", "roll", strOpt("dice", "4d6kh3")))

	require.Len(t, h.resp.responses, 1)
	assert.Equal(t, "12", fieldMap(h.resp.last(t).Embeds[0])["Total"])
}

func TestRoll_ReplyFailureSendsErrorReply(t *testing.T) {
	h := newHarness(t, faces(6, 3))
	h.resp.failFirst = true
	h.dispatch(command("guild", "gina", "roll", strOpt("dice", "d6")))

	require.Len(t, h.resp.responses, 2)
	data := h.resp.last(t)
	assert.Equal(t, "There was an error executing this command!", data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, data.Flags)
}

func TestDispatch_IgnoresNonCommands(t *testing.T) {
	h := newHarness(t, faces(6, 1))
	h.dispatch(&discordgo.Interaction{Type: discordgo.InteractionMessageComponent})
	h.dispatch(nil)
	h.dispatch(command("guild", "hank", "unknown"))
	assert.Empty(t, h.resp.responses)
}

func TestStats_NoRolls(t *testing.T) {
	h := newHarness(t, faces(6, 1))
	h.dispatch(command("guild", "ivy", "stats"))

	data := h.resp.last(t)
	assert.Equal(t, "No dice rolls recorded yet.", data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, data.Flags)
}

func TestStats_SelfAndOther(t *testing.T) {
	h := newHarness(t, faces(20, 20, 10))
	h.dispatch(command("guild", "jack", "roll", strOpt("dice", "2d20")))

	h.dispatch(command("guild", "jack", "stats"))
	embed := h.resp.last(t).Embeds[0]
	assert.Equal(t, "Statistics for <@jack>", embed.Description)
	fields := fieldMap(embed)
	assert.Contains(t, fields["d20"], "Rolls: 2")
	assert.Contains(t, fields["d20"], "Crits: 1 (50.00%)")
	assert.Contains(t, fields["Overall"], "Average: 75.00% of max")

	h.dispatch(command("guild", "kim", "stats", userOpt("user", "jack")))
	assert.Equal(t, "Statistics for <@jack>", h.resp.last(t).Embeds[0].Description)
}

func TestStats_GuildOnly(t *testing.T) {
	h := newHarness(t, faces(6, 1))
	h.dispatch(command("", "lee", "stats"))
	assert.Equal(t, "This command can only be used in a server.", h.resp.last(t).Content)
}

func TestLeaderboard(t *testing.T) {
	h := newHarness(t, faces(6, 3))
	h.dispatch(command("guild", "mia", "roll", strOpt("dice", "3d6")))
	h.dispatch(command("guild", "ned", "roll", strOpt("dice", "d6")))

	h.dispatch(command("guild", "ned", "leaderboard", intOpt("limit", 5)))
	embed := h.resp.last(t).Embeds[0]
	assert.Equal(t, "🏆 Dice Leaderboard", embed.Title)
	fields := fieldMap(embed)
	assert.Contains(t, fields["Most Rolls"], "1. <@mia>: 3 rolls")
	assert.Contains(t, fields["Most Rolls"], "2. <@ned>: 1 rolls")
	assert.Contains(t, fields["Most Rolls by Die"], "<@mia> d6")
}

func TestLeaderboard_Empty(t *testing.T) {
	h := newHarness(t, faces(6, 1))
	h.dispatch(command("guild", "olga", "leaderboard"))
	assert.Equal(t, "No rolls recorded in this server yet.", h.resp.last(t).Embeds[0].Description)
}

func TestResetStats_RequiresAdministrator(t *testing.T) {
	h := newHarness(t, faces(6, 4))
	h.dispatch(command("guild", "pat", "roll", strOpt("dice", "d6")))

	h.dispatch(command("guild", "pat", "resetstats", userOpt("user", "pat")))
	assert.Equal(t, "You need the Administrator permission to reset statistics.", h.resp.last(t).Content)

	_, err := h.store.UserStats(context.Background(), "guild", "pat")
	assert.NoError(t, err)
}

func TestResetStats_Administrator(t *testing.T) {
	h := newHarness(t, faces(6, 4))
	h.dispatch(command("guild", "pat", "roll", strOpt("dice", "d6")))

	i := command("guild", "quinn", "resetstats", userOpt("user", "pat"))
	i.Member.Permissions = discordgo.PermissionAdministrator
	h.dispatch(i)

	data := h.resp.last(t)
	assert.Equal(t, "Statistics cleared for <@pat>", data.Content)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, data.Flags)

	_, err := h.store.UserStats(context.Background(), "guild", "pat")
	assert.ErrorIs(t, err, stats.ErrNoStats)

	h.dispatch(i)
	assert.Equal(t, "No dice rolls recorded yet.", h.resp.last(t).Content)
}
