// Package pg implements the store contracts on PostgreSQL via pgx.
package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brewpass/brewpass/internal/store/core"
)

// Store bundles the pg-backed repositories over one pgx pool.
type Store struct {
	pool          *pgxpool.Pool
	customers     *customerRepo
	giftCards     *giftCardRepo
	registrations *registrationRepo
	walletLogs    *walletLogRepo
}

// Options tune the connection pool.
type Options struct {
	MaxConns        int
	ConnMaxLifetime time.Duration
}

// New connects to the database and returns the store handle.
func New(ctx context.Context, dsn string, opts Options) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = int32(opts.MaxConns)
	}
	if opts.ConnMaxLifetime > 0 {
		cfg.MaxConnLifetime = opts.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{
		pool:          pool,
		customers:     &customerRepo{pool: pool},
		giftCards:     &giftCardRepo{pool: pool},
		registrations: &registrationRepo{pool: pool},
		walletLogs:    &walletLogRepo{pool: pool},
	}, nil
}

func (s *Store) Customers() core.CustomerRepository         { return s.customers }
func (s *Store) GiftCards() core.GiftCardRepository         { return s.giftCards }
func (s *Store) Registrations() core.RegistrationRepository { return s.registrations }
func (s *Store) WalletLogs() core.WalletLogRepository       { return s.walletLogs }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }
func (s *Store) Close()                         { s.pool.Close() }
