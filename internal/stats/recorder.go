package stats

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/cory-johannsen/dicebot/internal/dice"
)

// Recorder forwards roll outcomes to a Sink, one event per forwarded die.
type Recorder struct {
	sink   Sink
	logger *zap.Logger
}

// NewRecorder creates a Recorder writing to sink.
//
// Precondition: sink and logger must be non-nil.
func NewRecorder(sink Sink, logger *zap.Logger) *Recorder {
	return &Recorder{sink: sink, logger: logger}
}

// Record submits every die in out.Forwarded() as an independent event. A
// failed event does not stop the remaining ones; all failures are returned
// combined. Rolls outside a guild are not recorded.
//
// Postcondition: out is not modified.
func (r *Recorder) Record(ctx context.Context, guildID, userID string, out dice.Outcome) error {
	if guildID == "" {
		r.logger.Debug("skipping stats for roll outside a guild",
			zap.String("roll_id", out.ID),
			zap.String("user_id", userID),
		)
		return nil
	}

	var errs error
	for _, d := range out.Forwarded() {
		e := Event{UserID: userID, GuildID: guildID, Sides: d.Sides, Value: d.Value}
		if err := r.sink.RecordRoll(ctx, e); err != nil {
			r.logger.Warn("recording roll stats",
				zap.String("roll_id", out.ID),
				zap.String("guild_id", guildID),
				zap.String("user_id", userID),
				zap.Int("sides", d.Sides),
				zap.Int("value", d.Value),
				zap.Error(err),
			)
			errs = multierr.Append(errs, fmt.Errorf("d%d=%d: %w", d.Sides, d.Value, err))
		}
	}
	return errs
}
