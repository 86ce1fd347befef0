// Package giftcard implements the stored-value card flows and the snapshot
// source for the gift-card pass surface.
package giftcard

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brewpass/brewpass/internal/notify"
	"github.com/brewpass/brewpass/internal/observability/logger"
	"github.com/brewpass/brewpass/internal/passkit"
	"github.com/brewpass/brewpass/internal/store/core"
)

const notifyTimeout = 15 * time.Second

// Deps are the service collaborators. Notifier may be nil.
type Deps struct {
	Cards      core.GiftCardRepository
	Notifier   *notify.Notifier
	PassTypeID string
}

type Service struct {
	deps Deps
}

func New(deps Deps) *Service {
	return &Service{deps: deps}
}

// Issue creates a card with an opaque serial and an initial balance.
func (s *Service) Issue(ctx context.Context, displayName string, initialCents int) (*core.GiftCard, error) {
	if initialCents < 0 {
		return nil, fmt.Errorf("initial balance must be non-negative: %w", core.ErrInvalid)
	}
	card := &core.GiftCard{
		SerialNumber: "gc-" + uuid.NewString(),
		DisplayName:  displayName,
		BalanceCents: initialCents,
	}
	if err := s.deps.Cards.Create(ctx, card); err != nil {
		return nil, err
	}
	logger.From(ctx).Info("gift card issued",
		logger.Layer("service"),
		logger.Component("giftcard"),
		logger.Serial(card.SerialNumber),
		logger.Balance(card.BalanceCents))
	return card, nil
}

// Adjust applies a signed delta in cents. The balance never goes negative.
func (s *Service) Adjust(ctx context.Context, serial string, deltaCents int) (*core.GiftCard, error) {
	card, err := s.deps.Cards.GetBySerial(ctx, serial)
	if err != nil {
		return nil, err
	}
	newBalance := card.BalanceCents + deltaCents
	if newBalance < 0 {
		return nil, fmt.Errorf("balance would go negative: %w", core.ErrConflict)
	}

	updated, err := s.deps.Cards.UpdateBalance(ctx, serial, newBalance)
	if err != nil {
		return nil, err
	}
	logger.From(ctx).Info("gift card adjusted",
		logger.Layer("service"),
		logger.Component("giftcard"),
		logger.Serial(serial),
		logger.Balance(updated.BalanceCents))

	s.notifyAsync(ctx, serial)
	return updated, nil
}

func (s *Service) Get(ctx context.Context, serial string) (*core.GiftCard, error) {
	return s.deps.Cards.GetBySerial(ctx, serial)
}

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

// Snapshot renders the pass state for a card serial.
func (s *Service) Snapshot(ctx context.Context, serial string) (passkit.Snapshot, error) {
	card, err := s.deps.Cards.GetBySerial(ctx, serial)
	if err != nil {
		return passkit.Snapshot{}, err
	}
	return passkit.Snapshot{
		Kind:         passkit.KindGiftCard,
		PassTypeID:   s.deps.PassTypeID,
		SerialNumber: card.SerialNumber,
		DisplayName:  card.DisplayName,
		Balance:      card.BalanceCents,
		UpdatedAt:    card.UpdatedAt,
	}, nil
}
