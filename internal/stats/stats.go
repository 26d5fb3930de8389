// Package stats defines the roll statistics sink, the aggregate queries served
// from it, and the recorder that forwards roll outcomes to it.
package stats

import (
	"context"
	"errors"
	"math"

	"github.com/cory-johannsen/dicebot/internal/dice"
)

// Leaderboard limits.
const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 25
)

// ErrNoStats is returned when a user has no recorded rolls in a guild.
var ErrNoStats = errors.New("no stats recorded")

// Event is a single die value attributed to a user in a guild.
type Event struct {
	UserID  string
	GuildID string
	Sides   int
	Value   int
}

// Critical reports whether the die landed on its highest face.
func (e Event) Critical() bool {
	return dice.IsCritical(e.Sides, e.Value)
}

// Sink accepts roll events. Counters are commutative over events, so callers
// may submit them in any order.
type Sink interface {
	// RecordRoll increments the per-die and overall counters for the event's
	// user and guild.
	RecordRoll(ctx context.Context, e Event) error
}

// Store is a Sink that also answers aggregate queries.
type Store interface {
	Sink
	// UserStats returns a user's per-die and overall counters, or ErrNoStats.
	UserStats(ctx context.Context, guildID, userID string) (UserStats, error)
	// Leaderboard returns the top rollers in a guild, ordered by roll count.
	Leaderboard(ctx context.Context, guildID string, limit int) (Leaderboard, error)
	// ResetUser deletes every counter for a user in a guild. It reports
	// ErrNoStats when nothing was deleted.
	ResetUser(ctx context.Context, guildID, userID string) error
	// Ping checks that the backing database is reachable.
	Ping(ctx context.Context) error
}

// DieStats holds a user's counters for one die type.
type DieStats struct {
	Sides int
	Rolls int64
	Crits int64
	Value int64
}

// RollPercentage is the sum of rolled values as a percentage of the maximum
// possible sum, rounded to two decimals.
func (d DieStats) RollPercentage() float64 {
	return percentage(d.Value, int64(d.Sides)*d.Rolls)
}

// CritPercentage is the share of rolls that were critical, rounded to two decimals.
func (d DieStats) CritPercentage() float64 {
	return percentage(d.Crits, d.Rolls)
}

// OverallStats holds a user's counters across every die type.
type OverallStats struct {
	Rolls int64
	Crits int64
	Value int64
	// PossibleValue is the sum of the sides of every die rolled.
	PossibleValue int64
}

// RollPercentage is Value as a percentage of PossibleValue, rounded to two decimals.
func (o OverallStats) RollPercentage() float64 {
	return percentage(o.Value, o.PossibleValue)
}

// CritPercentage is the share of rolls that were critical, rounded to two decimals.
func (o OverallStats) CritPercentage() float64 {
	return percentage(o.Crits, o.Rolls)
}

// UserStats is the answer to a per-user stats query.
type UserStats struct {
	UserID  string
	GuildID string
	Dice    []DieStats // ordered by Sides
	Overall OverallStats
}

// OverallEntry is one row of the overall leaderboard.
type OverallEntry struct {
	UserID string
	OverallStats
}

// DieEntry is one row of the per-die leaderboard.
type DieEntry struct {
	UserID string
	DieStats
}

// Leaderboard is the answer to a guild leaderboard query.
type Leaderboard struct {
	Overall []OverallEntry
	Dice    []DieEntry
}

// ClampLimit maps a requested leaderboard size onto [1, MaxLeaderboardLimit],
// substituting DefaultLeaderboardLimit for non-positive values.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLeaderboardLimit
	case limit > MaxLeaderboardLimit:
		return MaxLeaderboardLimit
	default:
		return limit
	}
}

func percentage(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*100*100) / 100
}
