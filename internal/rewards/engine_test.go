package rewards

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableTiers_EmptyHistory(t *testing.T) {
	for _, p := range []int{0, 1, 9, 10, 24, 25, 49, 50, 99, 100, 250} {
		tiers := AvailableTiers(p, Redeemed{})
		assert.Len(t, tiers.Coffees, p/CoffeeUnit, "coffees at balance %d", p)
		assert.Len(t, tiers.Meals, p/MealUnit, "meals at balance %d", p)
		for _, c := range tiers.Coffees {
			assert.Zero(t, c%CoffeeUnit)
			assert.LessOrEqual(t, c, p)
			assert.Positive(t, c)
		}
		for _, m := range tiers.Meals {
			assert.Zero(t, m%MealUnit)
			assert.LessOrEqual(t, m, p)
			assert.Positive(t, m)
		}
	}
}

func TestAvailableTiers_ExcludesRedeemed(t *testing.T) {
	tiers := AvailableTiers(30, Redeemed{Coffees: []int{10, 30}})
	assert.Equal(t, []int{20}, tiers.Coffees)
	assert.Equal(t, []int{25}, tiers.Meals)
}

func TestAvailableTiers_EmptyNotNil(t *testing.T) {
	tiers := AvailableTiers(5, Redeemed{})
	require.NotNil(t, tiers.Coffees)
	require.NotNil(t, tiers.Meals)
	assert.Empty(t, tiers.Coffees)
	assert.Empty(t, tiers.Meals)
}

func TestEvaluate_MultiplesOfFifty(t *testing.T) {
	for _, p := range []int{50, 100, 150, 200} {
		ev := Evaluate(p, Redeemed{})
		assert.True(t, ev.EarnedCoffee, "balance %d", p)
		assert.True(t, ev.EarnedMeal, "balance %d", p)
		assert.Equal(t, TypeMeal, ev.RewardType, "meal wins at %d", p)
	}
}

func TestEvaluate_RedeemedThresholdNeverFiresAgain(t *testing.T) {
	ev := Evaluate(10, Redeemed{Coffees: []int{10}})
	assert.False(t, ev.EarnedCoffee)
	assert.Empty(t, ev.RewardType)

	// Other unredeemed multiples remain available.
	tiers := AvailableTiers(20, Redeemed{Coffees: []int{10}})
	assert.Equal(t, []int{20}, tiers.Coffees)
}

func TestEvaluate_NegativeBalanceIsSafe(t *testing.T) {
	ev := Evaluate(-40, Redeemed{})
	assert.False(t, ev.EarnedCoffee)
	assert.False(t, ev.EarnedMeal)
	tiers := AvailableTiers(-40, Redeemed{})
	assert.Empty(t, tiers.Coffees)
	assert.Empty(t, tiers.Meals)
}

func TestEvaluate_PurchaseScenario(t *testing.T) {
	redeemed := Redeemed{}

	// Balance 1..9: nothing earned.
	for p := 1; p <= 9; p++ {
		ev := Evaluate(p, redeemed)
		assert.Empty(t, ev.RewardType, "balance %d", p)
	}

	// 10th purchase earns a coffee.
	ev := Evaluate(10, redeemed)
	assert.True(t, ev.EarnedCoffee)
	assert.Equal(t, TypeCoffee, ev.RewardType)

	// Redeem the coffee at 10.
	redeemed.Coffees = append(redeemed.Coffees, 10)

	// 11..19: nothing.
	for p := 11; p <= 19; p++ {
		ev := Evaluate(p, redeemed)
		assert.Empty(t, ev.RewardType, "balance %d", p)
	}

	// 20th purchase earns a new coffee threshold.
	ev = Evaluate(20, redeemed)
	assert.True(t, ev.EarnedCoffee)
	assert.Equal(t, TypeCoffee, ev.RewardType)
}

func TestAvailable(t *testing.T) {
	redeemed := Redeemed{Coffees: []int{10}}
	assert.False(t, Available(25, TypeCoffee, 10, redeemed)) // already redeemed
	assert.True(t, Available(25, TypeCoffee, 20, redeemed))
	assert.True(t, Available(25, TypeMeal, 25, redeemed))
	assert.False(t, Available(25, TypeMeal, 50, redeemed)) // not reached
	assert.False(t, Available(25, TypeCoffee, 15, redeemed))
	assert.False(t, Available(25, "unknown", 10, redeemed))
}

func TestNormalizeBalance(t *testing.T) {
	cases := []struct {
		in   any
		want int
	}{
		{nil, 0},
		{42, 42},
		{int64(7), 7},
		{-3, 0},
		{3.9, 3},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{"15", 15},
		{" 8 ", 8},
		{"12.0", 12},
		{"garbage", 0},
		{"", 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeBalance(c.in), "input %v", c.in)
	}
}

func TestNormalizeThresholds(t *testing.T) {
	in := []any{10, float64(20), "30", nil, "junk", math.NaN(), true}
	assert.Equal(t, []int{10, 20, 30}, NormalizeThresholds(in))
}
