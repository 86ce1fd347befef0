package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brewpass/brewpass/internal/store/core"
)

// ─── GiftCardRepository ───

type giftCardRepo struct{ pool *pgxpool.Pool }

func (r *giftCardRepo) Create(ctx context.Context, g *core.GiftCard) error {
	const query = `
		INSERT INTO gift_card (serial_number, display_name, balance_cents, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query, g.SerialNumber, g.DisplayName, g.BalanceCents).Scan(&g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return core.ErrConflict
		}
		return fmt.Errorf("pg: create gift card: %w", err)
	}
	return nil
}

func (r *giftCardRepo) GetBySerial(ctx context.Context, serial string) (*core.GiftCard, error) {
	const query = `
		SELECT serial_number, display_name, balance_cents, created_at, updated_at
		FROM gift_card WHERE serial_number = $1
	`
	var g core.GiftCard
	err := r.pool.QueryRow(ctx, query, serial).Scan(
		&g.SerialNumber, &g.DisplayName, &g.BalanceCents, &g.CreatedAt, &g.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get gift card: %w", err)
	}
	return &g, nil
}

func (r *giftCardRepo) UpdateBalance(ctx context.Context, serial string, balanceCents int) (*core.GiftCard, error) {
	const query = `
		UPDATE gift_card SET balance_cents = $2, updated_at = NOW()
		WHERE serial_number = $1
		RETURNING serial_number, display_name, balance_cents, created_at, updated_at
	`
	var g core.GiftCard
	err := r.pool.QueryRow(ctx, query, serial, balanceCents).Scan(
		&g.SerialNumber, &g.DisplayName, &g.BalanceCents, &g.CreatedAt, &g.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: update gift card: %w", err)
	}
	return &g, nil
}
