package pg

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ─── WalletLogRepository ───

type walletLogRepo struct{ pool *pgxpool.Pool }

func (r *walletLogRepo) Append(ctx context.Context, message string) error {
	const query = `
		INSERT INTO wallet_log (id, message, created_at)
		VALUES ($1, $2, NOW())
	`
	_, err := r.pool.Exec(ctx, query, uuid.NewString(), message)
	if err != nil {
		return fmt.Errorf("pg: append wallet log: %w", err)
	}
	return nil
}
