// Package dice parses dice notation, resolves rolls against an injected
// randomness source, and reports the outcome.
package dice

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Outcome is the result of executing a Plan.
//
// Postcondition: Total == sum(KeptRolls).
type Outcome struct {
	// ID correlates the roll across log lines. Set by Roller; empty for
	// direct Execute calls.
	ID        string
	Plan      Plan
	AllRolls  []int // every die rolled, in roll order
	KeptRolls []int // the dice counting toward Total
	Total     int
}

// String returns a compact audit string, e.g. "4d6kh3 → [2 6 4 1] kept [6 4 2] = 12".
func (o Outcome) String() string {
	if o.Plan.Kind == KindSimple {
		return fmt.Sprintf("%s → %v = %d", o.Plan, o.AllRolls, o.Total)
	}
	return fmt.Sprintf("%s → %v kept %v = %d", o.Plan, o.AllRolls, o.KeptRolls, o.Total)
}

// DieResult is a single die value forwarded to the statistics sink.
type DieResult struct {
	Sides int
	Value int
}

// Critical reports whether the die landed on its highest face.
func (d DieResult) Critical() bool {
	return IsCritical(d.Sides, d.Value)
}

// IsCritical reports whether value is the maximum face of a die with sides faces.
func IsCritical(sides, value int) bool {
	return value == sides
}

// Forwarded returns the dice that count toward statistics: every die for a
// simple roll, the kept dice for keep-highest, and the chosen d20 for
// advantage or disadvantage.
func (o Outcome) Forwarded() []DieResult {
	results := make([]DieResult, len(o.KeptRolls))
	for i, v := range o.KeptRolls {
		results[i] = DieResult{Sides: o.Plan.Sides, Value: v}
	}
	return results
}

// Execute resolves plan against src.
//
// Precondition: plan must come from Parse; src must be non-nil.
// Postcondition: len(AllRolls) == plan.Count for simple and keep-highest plans
// and 2 for advantage/disadvantage; every value is in [1, plan.Sides];
// Total == sum(KeptRolls).
func Execute(plan Plan, src Source) Outcome {
	switch plan.Kind {
	case KindAdvantage, KindDisadvantage:
		rolls := []int{rollDie(src, 20), rollDie(src, 20)}
		chosen := max(rolls[0], rolls[1])
		if plan.Kind == KindDisadvantage {
			chosen = min(rolls[0], rolls[1])
		}
		return Outcome{Plan: plan, AllRolls: rolls, KeptRolls: []int{chosen}, Total: chosen}
	}

	rolls := make([]int, plan.Count)
	for i := range rolls {
		rolls[i] = rollDie(src, plan.Sides)
	}

	var kept []int
	if plan.Kind == KindKeepHighest {
		sorted := slices.Clone(rolls)
		slices.SortStableFunc(sorted, func(a, b int) int { return cmp.Compare(b, a) })
		kept = sorted[:plan.KeepHighest]
	} else {
		kept = slices.Clone(rolls)
	}

	return Outcome{Plan: plan, AllRolls: rolls, KeptRolls: kept, Total: sum(kept)}
}

// RollExpr parses expr with modifier and executes it against src in one call.
//
// Postcondition: Returns an Outcome or a *ParseError.
func RollExpr(expr string, modifier Modifier, src Source) (Outcome, error) {
	plan, err := Parse(expr, modifier)
	if err != nil {
		return Outcome{}, err
	}
	return Execute(plan, src), nil
}

// FormatRolls joins values with ", " for display.
func FormatRolls(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}
