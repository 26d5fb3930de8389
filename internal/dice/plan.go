package dice

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// MaxDice is the largest number of dice a single roll may request.
const MaxDice = 100

// supportedSides is the fixed set of die types a roll may use.
var supportedSides = []int{4, 6, 8, 10, 12, 20, 100}

// SupportedSides returns the die types accepted by Parse, in ascending order.
//
// Postcondition: the returned slice is a fresh copy; callers may modify it.
func SupportedSides() []int {
	return slices.Clone(supportedSides)
}

// Kind identifies how a Plan is resolved.
type Kind int

const (
	KindSimple Kind = iota
	KindKeepHighest
	KindAdvantage
	KindDisadvantage
)

func (k Kind) String() string {
	switch k {
	case KindSimple:
		return "simple"
	case KindKeepHighest:
		return "keep_highest"
	case KindAdvantage:
		return "advantage"
	case KindDisadvantage:
		return "disadvantage"
	default:
		return "unknown"
	}
}

// Modifier is the optional roll modifier supplied alongside an expression.
type Modifier string

const (
	ModifierNone         Modifier = ""
	ModifierAdvantage    Modifier = "advantage"
	ModifierDisadvantage Modifier = "disadvantage"
)

// ParseModifier maps a user-supplied modifier name onto a Modifier.
//
// Postcondition: the empty string maps to ModifierNone; unknown names return an error.
func ParseModifier(s string) (Modifier, error) {
	switch m := Modifier(strings.ToLower(strings.TrimSpace(s))); m {
	case ModifierNone, ModifierAdvantage, ModifierDisadvantage:
		return m, nil
	default:
		return ModifierNone, fmt.Errorf("dice: unknown modifier %q", s)
	}
}

// Plan is a validated description of a roll, before any randomness is applied.
//
// Invariant: every Plan returned by Parse is executable by Execute.
type Plan struct {
	Kind        Kind
	Count       int // number of dice; 1 for advantage/disadvantage
	Sides       int // faces per die; 20 for advantage/disadvantage
	KeepHighest int // > 0 only for KindKeepHighest
}

// String renders the plan in canonical dice notation, e.g. "4d6kh3" or "d20 advantage".
func (p Plan) String() string {
	switch p.Kind {
	case KindAdvantage, KindDisadvantage:
		return "d20 " + p.Kind.String()
	case KindKeepHighest:
		return fmt.Sprintf("%dd%dkh%d", p.Count, p.Sides, p.KeepHighest)
	default:
		return fmt.Sprintf("%dd%d", p.Count, p.Sides)
	}
}

// Describe returns the one-line announcement shown above a roll result.
func (p Plan) Describe() string {
	switch p.Kind {
	case KindAdvantage, KindDisadvantage:
		return fmt.Sprintf("Rolling with %s...", p.Kind)
	case KindKeepHighest:
		return fmt.Sprintf("Rolling %dd%d keeping highest %d...", p.Count, p.Sides, p.KeepHighest)
	default:
		return fmt.Sprintf("Rolling %dd%d...", p.Count, p.Sides)
	}
}

// ParseError is a user-facing validation failure. Its message is shown to the
// player verbatim.
type ParseError struct {
	Message string
}

func (e *ParseError) Error() string { return e.Message }

// Parse failures. Parse always returns one of these values, so callers may
// compare with errors.Is.
var (
	ErrAdvantageRequiresD20 = &ParseError{Message: "Advantage/Disadvantage only works with d20 rolls"}
	ErrInvalidFormat        = &ParseError{Message: "Invalid roll format. Use: [number]d[sides] or [number]d[sides]kh[number] (e.g., 2d6 or 4d6kh3)"}
	ErrTooManyDice          = &ParseError{Message: fmt.Sprintf("Cannot roll more than %d dice at once", MaxDice)}
	ErrUnsupportedDie       = &ParseError{Message: "Invalid die type. Available types: " + joinInts(supportedSides, ", ")}
	ErrKeepExceedsCount     = &ParseError{Message: "Cannot keep more dice than you roll"}
)

var rollPattern = regexp.MustCompile(`^(\d+)?d(\d+)(?:kh(\d+))?$`)

// Parse validates a dice expression and an optional modifier and returns the
// resulting Plan.
//
// The modifier keyword, when set, is appended to the expression, so
// Parse("d20", ModifierAdvantage) and Parse("d20 advantage", ModifierNone)
// are equivalent. Matching is case-insensitive.
//
// Postcondition: Returns a Plan that Execute accepts, or one of the ParseError
// sentinels declared in this package.
func Parse(expression string, modifier Modifier) (Plan, error) {
	input := strings.ToLower(expression)
	if modifier != ModifierNone {
		input += " " + string(modifier)
	}

	fields := strings.Fields(input)
	if len(fields) == 0 {
		return Plan{}, ErrInvalidFormat
	}
	token := fields[0]

	advantage := slices.Contains(fields, string(ModifierAdvantage))
	disadvantage := slices.Contains(fields, string(ModifierDisadvantage))
	if advantage || disadvantage {
		if token != "d20" && token != "1d20" {
			return Plan{}, ErrAdvantageRequiresD20
		}
		kind := KindDisadvantage
		if advantage {
			kind = KindAdvantage
		}
		return Plan{Kind: kind, Count: 1, Sides: 20}, nil
	}

	m := rollPattern.FindStringSubmatch(token)
	if m == nil {
		return Plan{}, ErrInvalidFormat
	}

	count := 1
	if m[1] != "" {
		count = atoiSaturating(m[1])
	}
	sides := atoiSaturating(m[2])
	keep := 0
	if m[3] != "" {
		keep = atoiSaturating(m[3])
		if keep == 0 {
			return Plan{}, ErrInvalidFormat
		}
	}
	if count == 0 {
		return Plan{}, ErrInvalidFormat
	}

	if count > MaxDice {
		return Plan{}, ErrTooManyDice
	}
	if !slices.Contains(supportedSides, sides) {
		return Plan{}, ErrUnsupportedDie
	}
	if keep > count {
		return Plan{}, ErrKeepExceedsCount
	}

	plan := Plan{Kind: KindSimple, Count: count, Sides: sides}
	if keep > 0 {
		plan.Kind = KindKeepHighest
		plan.KeepHighest = keep
	}
	return plan, nil
}

// MustParse parses expr with no modifier and panics on error. Useful for
// package-level fixtures.
//
// Precondition: expr must be a valid dice expression.
func MustParse(expr string) Plan {
	p, err := Parse(expr, ModifierNone)
	if err != nil {
		panic("dice: MustParse failed for expression " + expr + ": " + err.Error())
	}
	return p
}

// atoiSaturating converts a run of ASCII digits, clamping values that overflow
// int to the maximum int.
func atoiSaturating(digits string) int {
	// On overflow strconv returns the clamped value along with ErrRange.
	n, _ := strconv.Atoi(digits)
	return n
}

func joinInts(values []int, sep string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, sep)
}
