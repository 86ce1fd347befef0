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

// pgUndefinedColumn is the SQLSTATE the schema cache returns when a recently
// added column is not yet visible to the write path.
const pgUndefinedColumn = "42703"

// ─── CustomerRepository ───

type customerRepo struct{ pool *pgxpool.Pool }

func (r *customerRepo) Create(ctx context.Context, c *core.Customer) error {
	const query = `
		INSERT INTO customer (serial_number, display_name, points_balance, redeemed_coffees, redeemed_meals, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		c.SerialNumber, c.DisplayName, c.PointsBalance, intArray(c.RedeemedCoffees), intArray(c.RedeemedMeals),
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return core.ErrConflict
		}
		return fmt.Errorf("pg: create customer: %w", err)
	}
	return nil
}

func (r *customerRepo) GetBySerial(ctx context.Context, serial string) (*core.Customer, error) {
	const query = `
		SELECT serial_number, display_name, points_balance, redeemed_coffees, redeemed_meals, created_at, updated_at
		FROM customer WHERE serial_number = $1
	`
	var c core.Customer
	var coffees, meals []int32
	err := r.pool.QueryRow(ctx, query, serial).Scan(
		&c.SerialNumber, &c.DisplayName, &c.PointsBalance, &coffees, &meals, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: get customer: %w", err)
	}
	c.RedeemedCoffees = fromInt32(coffees)
	c.RedeemedMeals = fromInt32(meals)
	return &c, nil
}

func (r *customerRepo) IncrementBalance(ctx context.Context, serial string) (*core.Customer, error) {
	// The increment happens inside the UPDATE so concurrent purchases for the
	// same serial serialize on the row instead of overwriting each other.
	const query = `
		UPDATE customer
		SET points_balance = points_balance + 1, updated_at = NOW()
		WHERE serial_number = $1
		RETURNING serial_number, display_name, points_balance, redeemed_coffees, redeemed_meals, created_at, updated_at
	`
	var c core.Customer
	var rc, rm []int32
	err := r.pool.QueryRow(ctx, query, serial).Scan(
		&c.SerialNumber, &c.DisplayName, &c.PointsBalance, &rc, &rm, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: increment balance: %w", err)
	}
	c.RedeemedCoffees = fromInt32(rc)
	c.RedeemedMeals = fromInt32(rm)
	return &c, nil
}

func (r *customerRepo) UpdateBalanceAndRedemptions(ctx context.Context, serial string, balance int, coffees, meals []int) (*core.Customer, error) {
	// Full write includes last_reward_at; if the column is not visible yet
	// (stale schema cache after deploy) retry exactly once with the reduced
	// column set. Not a general retry policy.
	const full = `
		UPDATE customer
		SET points_balance = $2, redeemed_coffees = $3, redeemed_meals = $4, last_reward_at = NOW(), updated_at = NOW()
		WHERE serial_number = $1
		RETURNING serial_number, display_name, points_balance, redeemed_coffees, redeemed_meals, created_at, updated_at
	`
	const reduced = `
		UPDATE customer
		SET points_balance = $2, redeemed_coffees = $3, redeemed_meals = $4, updated_at = NOW()
		WHERE serial_number = $1
		RETURNING serial_number, display_name, points_balance, redeemed_coffees, redeemed_meals, created_at, updated_at
	`

	c, err := r.scanUpdate(ctx, full, serial, balance, coffees, meals)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedColumn {
			return r.scanUpdate(ctx, reduced, serial, balance, coffees, meals)
		}
		return nil, err
	}
	return c, nil
}

func (r *customerRepo) scanUpdate(ctx context.Context, query, serial string, balance int, coffees, meals []int) (*core.Customer, error) {
	var c core.Customer
	var rc, rm []int32
	err := r.pool.QueryRow(ctx, query, serial, balance, intArray(coffees), intArray(meals)).Scan(
		&c.SerialNumber, &c.DisplayName, &c.PointsBalance, &rc, &rm, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedColumn {
			return nil, err
		}
		return nil, fmt.Errorf("pg: update customer: %w", err)
	}
	c.RedeemedCoffees = fromInt32(rc)
	c.RedeemedMeals = fromInt32(rm)
	return &c, nil
}

func (r *customerRepo) List(ctx context.Context, limit, offset int) ([]core.Customer, error) {
	const query = `
		SELECT serial_number, display_name, points_balance, redeemed_coffees, redeemed_meals, created_at, updated_at
		FROM customer ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("pg: list customers: %w", err)
	}
	defer rows.Close()

	var customers []core.Customer
	for rows.Next() {
		var c core.Customer
		var rc, rm []int32
		if err := rows.Scan(&c.SerialNumber, &c.DisplayName, &c.PointsBalance, &rc, &rm, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.RedeemedCoffees = fromInt32(rc)
		c.RedeemedMeals = fromInt32(rm)
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func intArray(vs []int) []int32 {
	out := make([]int32, len(vs))
	for i, v := range vs {
		out[i] = int32(v)
	}
	return out
}

func fromInt32(vs []int32) []int {
	out := make([]int, len(vs))
	for i, v := range vs {
		out[i] = int(v)
	}
	return out
}
