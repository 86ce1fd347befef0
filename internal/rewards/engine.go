// Package rewards computes reward tiers from a points balance and a
// redemption history. It is pure: no I/O, no clocks, no state.
package rewards

import (
	"math"
	"strconv"
	"strings"
)

// Reward units. A tier is any positive multiple of a unit. Single source of
// truth: callers must never re-derive these values.
const (
	CoffeeUnit = 10
	MealUnit   = 25
)

// Reward type labels used on the pass and in admin responses.
const (
	TypeCoffee = "coffee"
	TypeMeal   = "meal"
)

// Redeemed holds the thresholds a customer has already cashed in, one set per
// reward type. A threshold appears at most once per set; the sets need not be
// disjoint (50 is a valid member of both).
type Redeemed struct {
	Coffees []int
	Meals   []int
}

// Evaluation is the outcome of Evaluate for a given balance.
type Evaluation struct {
	EarnedCoffee bool
	EarnedMeal   bool
	// RewardType names the single reward used for notification wording. When
	// both fire at once the meal wins. Empty when nothing was just earned.
	RewardType string
	Message    string
}

// Tiers lists the redeemable thresholds per reward type.
type Tiers struct {
	Coffees []int
	Meals   []int
}

// Evaluate reports what the most recent purchase just earned. Unlike
// AvailableTiers it only fires when the balance is itself an exact unit
// multiple that has not been redeemed at that exact value: it describes the
// newest reward, not the backlog.
func Evaluate(balance int, redeemed Redeemed) Evaluation {
	b := clampBalance(balance)

	var ev Evaluation
	ev.EarnedCoffee = b > 0 && b%CoffeeUnit == 0 && !contains(redeemed.Coffees, b)
	ev.EarnedMeal = b > 0 && b%MealUnit == 0 && !contains(redeemed.Meals, b)

	switch {
	case ev.EarnedMeal:
		ev.RewardType = TypeMeal
		ev.Message = "You've earned a free meal!"
	case ev.EarnedCoffee:
		ev.RewardType = TypeCoffee
		ev.Message = "You've earned a free coffee!"
	}
	return ev
}

// AvailableTiers lists every threshold the balance has reached that is not yet
// redeemed for that reward type, in ascending order. The two lists are
// independent: a meal being available never hides a coffee.
func AvailableTiers(balance int, redeemed Redeemed) Tiers {
	b := clampBalance(balance)
	return Tiers{
		Coffees: tiersFor(b, CoffeeUnit, redeemed.Coffees),
		Meals:   tiersFor(b, MealUnit, redeemed.Meals),
	}
}

// Available reports whether a specific threshold is currently redeemable.
func Available(balance int, rewardType string, threshold int, redeemed Redeemed) bool {
	b := clampBalance(balance)
	switch rewardType {
	case TypeCoffee:
		return threshold > 0 && threshold%CoffeeUnit == 0 && threshold <= b && !contains(redeemed.Coffees, threshold)
	case TypeMeal:
		return threshold > 0 && threshold%MealUnit == 0 && threshold <= b && !contains(redeemed.Meals, threshold)
	}
	return false
}

func tiersFor(balance, unit int, redeemed []int) []int {
	out := []int{}
	for t := unit; t <= balance; t += unit {
		if !contains(redeemed, t) {
			out = append(out, t)
		}
	}
	return out
}

func contains(set []int, v int) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func clampBalance(b int) int {
	if b < 0 {
		return 0
	}
	return b
}

// NormalizeBalance coerces a loosely typed stored balance to a safe
// non-negative int. Historical records carried numbers as floats or strings;
// anything unparseable (nil, NaN, text) is treated as 0 rather than an error.
func NormalizeBalance(v any) int {
	switch n := v.(type) {
	case nil:
		return 0
	case int:
		return clampBalance(n)
	case int32:
		return clampBalance(int(n))
	case int64:
		return clampBalance(int(n))
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return clampBalance(int(n))
	case float32:
		return NormalizeBalance(float64(n))
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0
		}
		if i, err := strconv.Atoi(s); err == nil {
			return clampBalance(i)
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return NormalizeBalance(f)
		}
		return 0
	}
	return 0
}

// NormalizeThresholds filters a loosely typed stored redemption list down to
// the integers it actually contains. Non-numeric entries left behind by old
// write paths are dropped, never surfaced as errors.
func NormalizeThresholds(vs []any) []int {
	out := make([]int, 0, len(vs))
	for _, v := range vs {
		switch n := v.(type) {
		case int:
			out = append(out, n)
		case int64:
			out = append(out, int(n))
		case float64:
			if !math.IsNaN(n) && !math.IsInf(n, 0) {
				out = append(out, int(n))
			}
		case string:
			if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
				out = append(out, i)
			}
		}
	}
	return out
}
