// Package sqlite provides a SQLite-backed roll statistics store for local
// development and single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/cory-johannsen/dicebot/internal/stats"
)

//go:embed schema.sql
var schema string

// StatsRepository persists roll statistics in SQLite.
type StatsRepository struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and applies the schema.
//
// Precondition: path must be non-empty.
// Postcondition: Returns a ready repository or a non-nil error.
func Open(ctx context.Context, path string) (*StatsRepository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := "file:" + filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// SQLite serialises writers; a single connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &StatsRepository{db: db}, nil
}

// Close closes the database handle.
func (r *StatsRepository) Close() error {
	return r.db.Close()
}

// RecordRoll upserts the per-die and overall counters for e in one transaction.
func (r *StatsRepository) RecordRoll(ctx context.Context, e stats.Event) (err error) {
	crit := 0
	if e.Critical() {
		crit = 1
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO roll_die_stats (guild_id, user_id, sides, total_rolls, total_crits, total_value)
		 VALUES (?, ?, ?, 1, ?, ?)
		 ON CONFLICT (guild_id, user_id, sides) DO UPDATE SET
		     total_rolls = total_rolls + 1,
		     total_crits = total_crits + excluded.total_crits,
		     total_value = total_value + excluded.total_value`,
		e.GuildID, e.UserID, e.Sides, crit, e.Value,
	); err != nil {
		return fmt.Errorf("upserting die stats: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO roll_overall_stats (guild_id, user_id, total_rolls, total_crits, total_value, total_possible_value)
		 VALUES (?, ?, 1, ?, ?, ?)
		 ON CONFLICT (guild_id, user_id) DO UPDATE SET
		     total_rolls = total_rolls + 1,
		     total_crits = total_crits + excluded.total_crits,
		     total_value = total_value + excluded.total_value,
		     total_possible_value = total_possible_value + excluded.total_possible_value`,
		e.GuildID, e.UserID, crit, e.Value, e.Sides,
	); err != nil {
		return fmt.Errorf("upserting overall stats: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing roll: %w", err)
	}
	return nil
}

// UserStats returns the counters for one user in one guild, or stats.ErrNoStats.
func (r *StatsRepository) UserStats(ctx context.Context, guildID, userID string) (stats.UserStats, error) {
	us := stats.UserStats{UserID: userID, GuildID: guildID}

	err := r.db.QueryRowContext(ctx,
		`SELECT total_rolls, total_crits, total_value, total_possible_value
		 FROM roll_overall_stats WHERE guild_id = ? AND user_id = ?`,
		guildID, userID,
	).Scan(&us.Overall.Rolls, &us.Overall.Crits, &us.Overall.Value, &us.Overall.PossibleValue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return stats.UserStats{}, stats.ErrNoStats
		}
		return stats.UserStats{}, fmt.Errorf("querying overall stats: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT sides, total_rolls, total_crits, total_value
		 FROM roll_die_stats WHERE guild_id = ? AND user_id = ?
		 ORDER BY sides`,
		guildID, userID,
	)
	if err != nil {
		return stats.UserStats{}, fmt.Errorf("querying die stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d stats.DieStats
		if err := rows.Scan(&d.Sides, &d.Rolls, &d.Crits, &d.Value); err != nil {
			return stats.UserStats{}, fmt.Errorf("scanning die stats: %w", err)
		}
		us.Dice = append(us.Dice, d)
	}
	if err := rows.Err(); err != nil {
		return stats.UserStats{}, fmt.Errorf("iterating die stats: %w", err)
	}
	return us, nil
}

// Leaderboard returns the guild's top rollers overall and per die.
func (r *StatsRepository) Leaderboard(ctx context.Context, guildID string, limit int) (stats.Leaderboard, error) {
	limit = stats.ClampLimit(limit)
	var lb stats.Leaderboard

	overall, err := r.db.QueryContext(ctx,
		`SELECT user_id, total_rolls, total_crits, total_value, total_possible_value
		 FROM roll_overall_stats
		 WHERE guild_id = ? AND total_rolls > 0
		 ORDER BY total_rolls DESC, user_id
		 LIMIT ?`,
		guildID, limit,
	)
	if err != nil {
		return stats.Leaderboard{}, fmt.Errorf("querying overall leaderboard: %w", err)
	}
	for overall.Next() {
		var e stats.OverallEntry
		if err := overall.Scan(&e.UserID, &e.Rolls, &e.Crits, &e.Value, &e.PossibleValue); err != nil {
			_ = overall.Close()
			return stats.Leaderboard{}, fmt.Errorf("scanning overall leaderboard: %w", err)
		}
		lb.Overall = append(lb.Overall, e)
	}
	if err := overall.Err(); err != nil {
		_ = overall.Close()
		return stats.Leaderboard{}, fmt.Errorf("iterating overall leaderboard: %w", err)
	}
	_ = overall.Close()

	perDie, err := r.db.QueryContext(ctx,
		`SELECT user_id, sides, total_rolls, total_crits, total_value
		 FROM roll_die_stats
		 WHERE guild_id = ? AND total_rolls > 0
		 ORDER BY total_rolls DESC, user_id, sides
		 LIMIT ?`,
		guildID, limit,
	)
	if err != nil {
		return stats.Leaderboard{}, fmt.Errorf("querying die leaderboard: %w", err)
	}
	defer perDie.Close()
	for perDie.Next() {
		var e stats.DieEntry
		if err := perDie.Scan(&e.UserID, &e.Sides, &e.Rolls, &e.Crits, &e.Value); err != nil {
			return stats.Leaderboard{}, fmt.Errorf("scanning die leaderboard: %w", err)
		}
		lb.Dice = append(lb.Dice, e)
	}
	if err := perDie.Err(); err != nil {
		return stats.Leaderboard{}, fmt.Errorf("iterating die leaderboard: %w", err)
	}
	return lb, nil
}

// ResetUser deletes every counter for a user in a guild, or reports stats.ErrNoStats.
func (r *StatsRepository) ResetUser(ctx context.Context, guildID, userID string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM roll_die_stats WHERE guild_id = ? AND user_id = ?`, guildID, userID,
	); err != nil {
		return fmt.Errorf("deleting die stats: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM roll_overall_stats WHERE guild_id = ? AND user_id = ?`, guildID, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting overall stats: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("counting deleted rows: %w", err)
	}
	if n == 0 {
		err = stats.ErrNoStats
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing reset: %w", err)
	}
	return nil
}

// Ping checks that the database handle is usable.
func (r *StatsRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
