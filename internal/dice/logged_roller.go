package dice

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Roller wraps a Source and logger to provide logged dice rolling.
// Every executed roll is stamped with a correlation ID and logged at debug level.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that rolls with src and logs each roll to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	return &Roller{src: src, logger: logger}
}

// Roll parses expr with modifier and executes the resulting plan.
//
// Postcondition: Returns an Outcome with a non-empty ID, or a *ParseError.
func (r *Roller) Roll(expr string, modifier Modifier) (Outcome, error) {
	plan, err := Parse(expr, modifier)
	if err != nil {
		r.logger.Debug("dice roll rejected",
			zap.String("expression", expr),
			zap.String("modifier", string(modifier)),
			zap.Error(err),
		)
		return Outcome{}, err
	}
	return r.Execute(plan), nil
}

// Execute resolves plan and logs the result.
//
// Precondition: plan must come from Parse.
func (r *Roller) Execute(plan Plan) Outcome {
	out := Execute(plan, r.src)
	out.ID = uuid.NewString()
	r.logger.Debug("dice roll",
		zap.String("roll_id", out.ID),
		zap.Stringer("plan", plan),
		zap.Ints("rolls", out.AllRolls),
		zap.Ints("kept", out.KeptRolls),
		zap.Int("total", out.Total),
	)
	return out
}
