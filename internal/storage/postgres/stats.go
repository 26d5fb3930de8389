package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/dicebot/internal/stats"
)

// StatsRepository persists roll statistics in PostgreSQL.
type StatsRepository struct {
	db *pgxpool.Pool
}

// NewStatsRepository creates a StatsRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool with the
// roll_die_stats and roll_overall_stats tables migrated.
func NewStatsRepository(db *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{db: db}
}

// RecordRoll upserts the per-die and overall counters for e in one transaction.
//
// Postcondition: Both counters are incremented, or neither is and an error is returned.
func (r *StatsRepository) RecordRoll(ctx context.Context, e stats.Event) error {
	crit := 0
	if e.Critical() {
		crit = 1
	}

	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO roll_die_stats (guild_id, user_id, sides, total_rolls, total_crits, total_value)
			 VALUES ($1, $2, $3, 1, $4, $5)
			 ON CONFLICT (guild_id, user_id, sides) DO UPDATE SET
			     total_rolls = roll_die_stats.total_rolls + 1,
			     total_crits = roll_die_stats.total_crits + EXCLUDED.total_crits,
			     total_value = roll_die_stats.total_value + EXCLUDED.total_value`,
			e.GuildID, e.UserID, e.Sides, crit, e.Value,
		); err != nil {
			return fmt.Errorf("upserting die stats: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO roll_overall_stats (guild_id, user_id, total_rolls, total_crits, total_value, total_possible_value)
			 VALUES ($1, $2, 1, $3, $4, $5)
			 ON CONFLICT (guild_id, user_id) DO UPDATE SET
			     total_rolls = roll_overall_stats.total_rolls + 1,
			     total_crits = roll_overall_stats.total_crits + EXCLUDED.total_crits,
			     total_value = roll_overall_stats.total_value + EXCLUDED.total_value,
			     total_possible_value = roll_overall_stats.total_possible_value + EXCLUDED.total_possible_value`,
			e.GuildID, e.UserID, crit, e.Value, e.Sides,
		); err != nil {
			return fmt.Errorf("upserting overall stats: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("recording roll: %w", err)
	}
	return nil
}

// UserStats returns the counters for one user in one guild.
//
// Postcondition: Returns the stats with Dice ordered by sides, or stats.ErrNoStats.
func (r *StatsRepository) UserStats(ctx context.Context, guildID, userID string) (stats.UserStats, error) {
	us := stats.UserStats{UserID: userID, GuildID: guildID}

	err := r.db.QueryRow(ctx,
		`SELECT total_rolls, total_crits, total_value, total_possible_value
		 FROM roll_overall_stats WHERE guild_id = $1 AND user_id = $2`,
		guildID, userID,
	).Scan(&us.Overall.Rolls, &us.Overall.Crits, &us.Overall.Value, &us.Overall.PossibleValue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stats.UserStats{}, stats.ErrNoStats
		}
		return stats.UserStats{}, fmt.Errorf("querying overall stats: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT sides, total_rolls, total_crits, total_value
		 FROM roll_die_stats WHERE guild_id = $1 AND user_id = $2
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

// Leaderboard returns the top limit users overall and the top limit
// (user, die) pairs in a guild, each ordered by roll count descending.
//
// Postcondition: limit is clamped with stats.ClampLimit; rows with zero rolls are excluded.
func (r *StatsRepository) Leaderboard(ctx context.Context, guildID string, limit int) (stats.Leaderboard, error) {
	limit = stats.ClampLimit(limit)
	var lb stats.Leaderboard

	rows, err := r.db.Query(ctx,
		`SELECT user_id, total_rolls, total_crits, total_value, total_possible_value
		 FROM roll_overall_stats
		 WHERE guild_id = $1 AND total_rolls > 0
		 ORDER BY total_rolls DESC, user_id
		 LIMIT $2`,
		guildID, limit,
	)
	if err != nil {
		return stats.Leaderboard{}, fmt.Errorf("querying overall leaderboard: %w", err)
	}
	for rows.Next() {
		var e stats.OverallEntry
		if err := rows.Scan(&e.UserID, &e.Rolls, &e.Crits, &e.Value, &e.PossibleValue); err != nil {
			rows.Close()
			return stats.Leaderboard{}, fmt.Errorf("scanning overall leaderboard: %w", err)
		}
		lb.Overall = append(lb.Overall, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats.Leaderboard{}, fmt.Errorf("iterating overall leaderboard: %w", err)
	}

	rows, err = r.db.Query(ctx,
		`SELECT user_id, sides, total_rolls, total_crits, total_value
		 FROM roll_die_stats
		 WHERE guild_id = $1 AND total_rolls > 0
		 ORDER BY total_rolls DESC, user_id, sides
		 LIMIT $2`,
		guildID, limit,
	)
	if err != nil {
		return stats.Leaderboard{}, fmt.Errorf("querying die leaderboard: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e stats.DieEntry
		if err := rows.Scan(&e.UserID, &e.Sides, &e.Rolls, &e.Crits, &e.Value); err != nil {
			return stats.Leaderboard{}, fmt.Errorf("scanning die leaderboard: %w", err)
		}
		lb.Dice = append(lb.Dice, e)
	}
	if err := rows.Err(); err != nil {
		return stats.Leaderboard{}, fmt.Errorf("iterating die leaderboard: %w", err)
	}
	return lb, nil
}

// ResetUser deletes every counter for a user in a guild.
//
// Postcondition: Returns stats.ErrNoStats if the user had no overall row.
func (r *StatsRepository) ResetUser(ctx context.Context, guildID, userID string) error {
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM roll_die_stats WHERE guild_id = $1 AND user_id = $2`,
			guildID, userID,
		); err != nil {
			return fmt.Errorf("deleting die stats: %w", err)
		}
		tag, err := tx.Exec(ctx,
			`DELETE FROM roll_overall_stats WHERE guild_id = $1 AND user_id = $2`,
			guildID, userID,
		)
		if err != nil {
			return fmt.Errorf("deleting overall stats: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return stats.ErrNoStats
		}
		return nil
	})
}

// Ping checks that the database is reachable.
func (r *StatsRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
