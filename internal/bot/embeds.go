package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/cory-johannsen/dicebot/internal/dice"
	"github.com/cory-johannsen/dicebot/internal/stats"
)

// Embed colours.
const (
	ColorRoll  = 0x0099ff
	ColorStats = 0x2ecc71
	ColorBoard = 0xf1c40f
)

// RollEmbed renders a roll outcome.
func RollEmbed(out dice.Outcome) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "🎲 Dice Roll",
		Color:       ColorRoll,
		Description: out.Plan.Describe(),
	}

	switch out.Plan.Kind {
	case dice.KindAdvantage, dice.KindDisadvantage:
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "Rolls", Value: dice.FormatRolls(out.AllRolls), Inline: true},
			{Name: "Result", Value: strconv.Itoa(out.Total), Inline: true},
		}
	case dice.KindKeepHighest:
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "All Rolls", Value: dice.FormatRolls(out.AllRolls), Inline: true},
			{Name: "Kept Rolls", Value: dice.FormatRolls(out.KeptRolls), Inline: true},
			{Name: "Total", Value: strconv.Itoa(out.Total), Inline: true},
		}
	default:
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "Rolls", Value: dice.FormatRolls(out.AllRolls), Inline: true},
			{Name: "Total", Value: strconv.Itoa(out.Total), Inline: true},
		}
	}
	return embed
}

// StatsEmbed renders one user's statistics.
func StatsEmbed(us stats.UserStats) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "📊 Dice Statistics",
		Color:       ColorStats,
		Description: "Statistics for " + mention(us.UserID),
	}
	for _, d := range us.Dice {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   fmt.Sprintf("d%d", d.Sides),
			Value:  summary(d.Rolls, d.Crits, d.CritPercentage(), d.RollPercentage()),
			Inline: true,
		})
	}
	o := us.Overall
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:  "Overall",
		Value: summary(o.Rolls, o.Crits, o.CritPercentage(), o.RollPercentage()),
	})
	return embed
}

func summary(rolls, crits int64, critPct, rollPct float64) string {
	return fmt.Sprintf("Rolls: %d\nCrits: %d (%.2f%%)\nAverage: %.2f%% of max", rolls, crits, critPct, rollPct)
}

// LeaderboardEmbed renders a guild leaderboard.
func LeaderboardEmbed(lb stats.Leaderboard) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "🏆 Dice Leaderboard",
		Color: ColorBoard,
	}
	if len(lb.Overall) == 0 {
		embed.Description = "No rolls recorded in this server yet."
		return embed
	}

	var overall strings.Builder
	for i, e := range lb.Overall {
		fmt.Fprintf(&overall, "%d. %s: %d rolls, %d crits (%.2f%%), avg %.2f%%\n",
			i+1, mention(e.UserID), e.Rolls, e.Crits, e.CritPercentage(), e.RollPercentage())
	}
	var perDie strings.Builder
	for i, e := range lb.Dice {
		fmt.Fprintf(&perDie, "%d. %s d%d: %d rolls, %d crits (%.2f%%), avg %.2f%%\n",
			i+1, mention(e.UserID), e.Sides, e.Rolls, e.Crits, e.CritPercentage(), e.RollPercentage())
	}

	embed.Fields = []*discordgo.MessageEmbedField{
		{Name: "Most Rolls", Value: fieldValue(overall.String())},
	}
	if perDie.Len() > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Most Rolls by Die", Value: fieldValue(perDie.String()),
		})
	}
	return embed
}

// maxFieldValue is Discord's limit on an embed field value.
const maxFieldValue = 1024

// fieldValue trims lines from the end of s until it fits in an embed field.
func fieldValue(s string) string {
	s = strings.TrimSuffix(s, "\n")
	for len(s) > maxFieldValue {
		cut := strings.LastIndexByte(s[:maxFieldValue], '\n')
		if cut <= 0 {
			return s[:maxFieldValue]
		}
		s = s[:cut]
	}
	return s
}

func mention(userID string) string {
	return "<@" + userID + ">"
}
