// Package loyalty implements the purchase and redemption flows for loyalty
// passes, plus the snapshot source the pass pipeline renders from.
package loyalty

import (
	"context"
	"fmt"
	"time"

	"github.com/brewpass/brewpass/internal/notify"
	"github.com/brewpass/brewpass/internal/observability/logger"
	"github.com/brewpass/brewpass/internal/passkit"
	"github.com/brewpass/brewpass/internal/rewards"
	"github.com/brewpass/brewpass/internal/store/core"
)

// notifyTimeout bounds the fire-and-forget push fan-out after a mutation.
const notifyTimeout = 15 * time.Second

// Deps are the service collaborators. Notifier may be nil in tests and in
// deployments without push credentials.
type Deps struct {
	Customers  core.CustomerRepository
	Notifier   *notify.Notifier
	PassTypeID string
}

type Service struct {
	deps Deps
}

func New(deps Deps) *Service {
	return &Service{deps: deps}
}

// Result is the outcome of a purchase: the stored record plus the reward
// evaluation at the new balance.
type Result struct {
	Customer   *core.Customer
	Evaluation rewards.Evaluation
}

// RecordPurchase adds one point and evaluates the new balance. The increment
// is atomic in the store, so concurrent purchases for one serial each land;
// devices are notified after commit, never on the request's critical path.
func (s *Service) RecordPurchase(ctx context.Context, serial string) (*Result, error) {
	updated, err := s.deps.Customers.IncrementBalance(ctx, serial)
	if err != nil {
		return nil, err
	}

	eval := rewards.Evaluate(updated.PointsBalance, rewards.Redeemed{
		Coffees: updated.RedeemedCoffees,
		Meals:   updated.RedeemedMeals,
	})

	logger.From(ctx).Info("purchase recorded",
		logger.Layer("service"),
		logger.Component("loyalty"),
		logger.Serial(serial),
		logger.Balance(updated.PointsBalance),
		logger.Reward(eval.RewardType))

	s.notifyAsync(ctx, serial)
	return &Result{Customer: updated, Evaluation: eval}, nil
}

// Redeem marks a threshold as used. The threshold must be an available tier:
// reachable at the current balance and not already redeemed.
func (s *Service) Redeem(ctx context.Context, serial, rewardType string, threshold int) (*core.Customer, error) {
	if rewardType != rewards.TypeCoffee && rewardType != rewards.TypeMeal {
		return nil, fmt.Errorf("unknown reward type %q: %w", rewardType, core.ErrInvalid)
	}

	c, err := s.deps.Customers.GetBySerial(ctx, serial)
	if err != nil {
		return nil, err
	}

	redeemed := rewards.Redeemed{Coffees: c.RedeemedCoffees, Meals: c.RedeemedMeals}
	if !rewards.Available(c.PointsBalance, rewardType, threshold, redeemed) {
		return nil, fmt.Errorf("tier %d (%s) not available: %w", threshold, rewardType, core.ErrConflict)
	}

	coffees, meals := c.RedeemedCoffees, c.RedeemedMeals
	if rewardType == rewards.TypeCoffee {
		coffees = append(append([]int(nil), coffees...), threshold)
	} else {
		meals = append(append([]int(nil), meals...), threshold)
	}

	updated, err := s.deps.Customers.UpdateBalanceAndRedemptions(ctx, serial, c.PointsBalance, coffees, meals)
	if err != nil {
		return nil, err
	}

	logger.From(ctx).Info("reward redeemed",
		logger.Layer("service"),
		logger.Component("loyalty"),
		logger.Serial(serial),
		logger.Reward(rewardType),
		logger.Int("threshold", threshold))

	s.notifyAsync(ctx, serial)
	return updated, nil
}

// notifyAsync pushes the change to registered devices without blocking or
// failing the business operation. A lost notification self-heals on the
// provider's next poll.
func (s *Service) notifyAsync(ctx context.Context, serial string) {
	if s.deps.Notifier == nil {
		return
	}
	log := logger.From(ctx)
	go func() {
		nctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		nctx = logger.ToContext(nctx, log)
		if _, err := s.deps.Notifier.PassUpdated(nctx, serial, s.deps.PassTypeID); err != nil {
			log.Warn("pass update notification failed", logger.Serial(serial), logger.Err(err))
		}
	}()
}

// Snapshot renders the pass state for a serial. The auxiliary message only
// carries reward wording when a tier was just earned; otherwise the builder's
// default encouragement line applies.
func (s *Service) Snapshot(ctx context.Context, serial string) (passkit.Snapshot, error) {
	c, err := s.deps.Customers.GetBySerial(ctx, serial)
	if err != nil {
		return passkit.Snapshot{}, err
	}

	eval := rewards.Evaluate(c.PointsBalance, rewards.Redeemed{
		Coffees: c.RedeemedCoffees,
		Meals:   c.RedeemedMeals,
	})
	message := ""
	if eval.EarnedCoffee || eval.EarnedMeal {
		message = eval.Message
	}

	return passkit.Snapshot{
		Kind:         passkit.KindLoyalty,
		PassTypeID:   s.deps.PassTypeID,
		SerialNumber: c.SerialNumber,
		DisplayName:  c.DisplayName,
		Balance:      c.PointsBalance,
		Message:      message,
		Progress:     progressToNextCoffee(c.PointsBalance),
		UpdatedAt:    c.UpdatedAt,
	}, nil
}

// progressToNextCoffee maps the balance onto [0,100] toward the next coffee
// tier, driving the rendered background.
func progressToNextCoffee(balance int) int {
	if balance < 0 {
		return 0
	}
	return (balance % rewards.CoffeeUnit) * 100 / rewards.CoffeeUnit
}
