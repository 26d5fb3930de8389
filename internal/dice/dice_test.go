package dice_test

import (
	"cmp"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/dicebot/internal/dice"
)

// faces returns a Source that lands on the given face values, in order, for
// dice with the given number of sides.
func faces(t testing.TB, sides int, values ...int) dice.Source {
	i := 0
	return dice.SourceFunc(func() float64 {
		if i >= len(values) {
			t.Fatalf("source exhausted after %d draws", len(values))
		}
		v := values[i]
		i++
		return (float64(v) - 0.5) / float64(sides)
	})
}

func TestExecute_KeepHighestScenario(t *testing.T) {
	out, err := dice.RollExpr("4d6kh3", dice.ModifierNone, faces(t, 6, 2, 6, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 6, 4, 1}, out.AllRolls)
	assert.Equal(t, []int{6, 4, 2}, out.KeptRolls)
	assert.Equal(t, 12, out.Total)
}

func TestExecute_AdvantageScenario(t *testing.T) {
	out, err := dice.RollExpr("d20", dice.ModifierAdvantage, faces(t, 20, 15, 9))
	require.NoError(t, err)
	assert.Equal(t, []int{15, 9}, out.AllRolls)
	assert.Equal(t, []int{15}, out.KeptRolls)
	assert.Equal(t, 15, out.Total)
}

func TestExecute_DisadvantageScenario(t *testing.T) {
	out, err := dice.RollExpr("1d20 disadvantage", dice.ModifierNone, faces(t, 20, 15, 9))
	require.NoError(t, err)
	assert.Equal(t, []int{15, 9}, out.AllRolls)
	assert.Equal(t, 9, out.Total)
}

func TestExecute_SimpleKeepsAllInOrder(t *testing.T) {
	out := dice.Execute(dice.MustParse("3d8"), faces(t, 8, 8, 1, 5))
	assert.Equal(t, []int{8, 1, 5}, out.AllRolls)
	assert.Equal(t, []int{8, 1, 5}, out.KeptRolls)
	assert.Equal(t, 14, out.Total)
}

func TestExecute_KeptRollsDoNotAliasAllRolls(t *testing.T) {
	out := dice.Execute(dice.MustParse("2d6"), faces(t, 6, 3, 4))
	out.KeptRolls[0] = 99
	assert.Equal(t, 3, out.AllRolls[0])
}

// TestExecute_FaceMappingBounds verifies floor(r*sides)+1 at both ends of [0, 1).
func TestExecute_FaceMappingBounds(t *testing.T) {
	for _, sides := range dice.SupportedSides() {
		low := dice.Execute(dice.Plan{Kind: dice.KindSimple, Count: 1, Sides: sides},
			dice.SourceFunc(func() float64 { return 0 }))
		assert.Equal(t, 1, low.Total, "d%d low", sides)

		high := dice.Execute(dice.Plan{Kind: dice.KindSimple, Count: 1, Sides: sides},
			dice.SourceFunc(func() float64 { return 0.9999999999999999 }))
		assert.Equal(t, sides, high.Total, "d%d high", sides)
	}
}

func TestOutcome_String(t *testing.T) {
	out := dice.Execute(dice.MustParse("4d6kh3"), faces(t, 6, 2, 6, 4, 1))
	assert.Equal(t, "4d6kh3 → [2 6 4 1] kept [6 4 2] = 12", out.String())

	out = dice.Execute(dice.MustParse("2d6"), faces(t, 6, 2, 3))
	assert.Equal(t, "2d6 → [2 3] = 5", out.String())
}

func TestIsCritical(t *testing.T) {
	assert.True(t, dice.IsCritical(6, 6))
	assert.False(t, dice.IsCritical(6, 5))
	assert.True(t, dice.DieResult{Sides: 20, Value: 20}.Critical())
}

func TestForwarded_Simple(t *testing.T) {
	out := dice.Execute(dice.MustParse("2d6"), faces(t, 6, 6, 5))
	assert.Equal(t, []dice.DieResult{{Sides: 6, Value: 6}, {Sides: 6, Value: 5}}, out.Forwarded())
	assert.True(t, out.Forwarded()[0].Critical())
	assert.False(t, out.Forwarded()[1].Critical())
}

func TestForwarded_KeepHighestOnlyKept(t *testing.T) {
	out := dice.Execute(dice.MustParse("4d6kh3"), faces(t, 6, 2, 6, 4, 1))
	assert.Equal(t, []dice.DieResult{{Sides: 6, Value: 6}, {Sides: 6, Value: 4}, {Sides: 6, Value: 2}}, out.Forwarded())
}

func TestForwarded_AdvantageChosenD20(t *testing.T) {
	out := dice.Execute(dice.MustParse("d20 advantage"), faces(t, 20, 20, 3))
	require.Len(t, out.Forwarded(), 1)
	assert.Equal(t, dice.DieResult{Sides: 20, Value: 20}, out.Forwarded()[0])
	assert.True(t, out.Forwarded()[0].Critical())
}

func TestFormatRolls(t *testing.T) {
	assert.Equal(t, "6, 4, 2", dice.FormatRolls([]int{6, 4, 2}))
	assert.Equal(t, "", dice.FormatRolls(nil))
}

// Property: NdS yields N rolls in [1, S] and Total == sum(AllRolls).
func TestExecute_Simple_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, dice.MaxDice).Draw(rt, "count")
		s := rapid.SampledFrom(dice.SupportedSides()).Draw(rt, "sides")
		seed := rapid.Uint64().Draw(rt, "seed")

		out := dice.Execute(dice.Plan{Kind: dice.KindSimple, Count: n, Sides: s}, dice.NewSeededSource(seed))

		require.Len(rt, out.AllRolls, n)
		total := 0
		for _, v := range out.AllRolls {
			assert.GreaterOrEqual(rt, v, 1)
			assert.LessOrEqual(rt, v, s)
			total += v
		}
		assert.Equal(rt, total, out.Total)
		assert.Equal(rt, out.AllRolls, out.KeptRolls)
	})
}

// Property: NdSkhK keeps the K largest rolls, stable-descending, and totals them.
func TestExecute_KeepHighest_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, dice.MaxDice).Draw(rt, "count")
		k := rapid.IntRange(1, n).Draw(rt, "keep")
		s := rapid.SampledFrom(dice.SupportedSides()).Draw(rt, "sides")
		seed := rapid.Uint64().Draw(rt, "seed")

		plan := dice.Plan{Kind: dice.KindKeepHighest, Count: n, Sides: s, KeepHighest: k}
		out := dice.Execute(plan, dice.NewSeededSource(seed))

		require.Len(rt, out.AllRolls, n)
		require.Len(rt, out.KeptRolls, k)

		sorted := slices.Clone(out.AllRolls)
		slices.SortStableFunc(sorted, func(a, b int) int { return cmp.Compare(b, a) })
		assert.Equal(rt, sorted[:k], out.KeptRolls)

		remaining := slices.Clone(out.AllRolls)
		total := 0
		for _, v := range out.KeptRolls {
			idx := slices.Index(remaining, v)
			require.GreaterOrEqual(rt, idx, 0, "kept value %d not present in all rolls", v)
			remaining = slices.Delete(remaining, idx, idx+1)
			total += v
		}
		assert.Equal(rt, total, out.Total)
	})
}

// Property: advantage and disadvantage roll two d20s and keep the max or min.
func TestExecute_AdvantageDisadvantage_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		mod := rapid.SampledFrom([]dice.Modifier{dice.ModifierAdvantage, dice.ModifierDisadvantage}).Draw(rt, "modifier")
		seed := rapid.Uint64().Draw(rt, "seed")

		out, err := dice.RollExpr("d20", mod, dice.NewSeededSource(seed))
		require.NoError(rt, err)
		require.Len(rt, out.AllRolls, 2)
		for _, v := range out.AllRolls {
			assert.GreaterOrEqual(rt, v, 1)
			assert.LessOrEqual(rt, v, 20)
		}
		want := max(out.AllRolls[0], out.AllRolls[1])
		if mod == dice.ModifierDisadvantage {
			want = min(out.AllRolls[0], out.AllRolls[1])
		}
		assert.Equal(rt, want, out.Total)
		assert.Equal(rt, []int{want}, out.KeptRolls)
	})
}

// Property: the same seed replays the same outcome.
func TestExecute_Deterministic_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.Uint64().Draw(rt, "seed")
		plan := dice.MustParse("10d100kh4")
		a := dice.Execute(plan, dice.NewSeededSource(seed))
		b := dice.Execute(plan, dice.NewSeededSource(seed))
		assert.Equal(rt, a, b)
	})
}

func TestCryptoSource_InRange(t *testing.T) {
	src := dice.NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Float64()
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
}

func TestSeededSource_ConcurrentUse(t *testing.T) {
	src := dice.NewSeededSource(42)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				out := dice.Execute(dice.MustParse("2d6"), src)
				assert.Len(t, out.AllRolls, 2)
			}
		}()
	}
	wg.Wait()
}

func TestRoller_StampsIDAndLogs(t *testing.T) {
	r := dice.NewLoggedRoller(faces(t, 6, 6, 1), zaptest.NewLogger(t))
	out, err := r.Roll("2d6", dice.ModifierNone)
	require.NoError(t, err)
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, 7, out.Total)
}

func TestRoller_ParseError(t *testing.T) {
	r := dice.NewLoggedRoller(dice.NewCryptoSource(), zaptest.NewLogger(t))
	_, err := r.Roll("2d6", dice.ModifierAdvantage)
	assert.ErrorIs(t, err, dice.ErrAdvantageRequiresD20)
}
