package core

import (
	"context"
	"time"
)

// CustomerRepository is the pass state store for loyalty customers.
// Implementations must perform each mutation as a single atomic
// read-modify-write; this package never takes its own locks.
type CustomerRepository interface {
	Create(ctx context.Context, c *Customer) error
	GetBySerial(ctx context.Context, serial string) (*Customer, error)
	// IncrementBalance adds one point inside the datastore and returns the
	// stored record. Concurrent callers never overwrite each other.
	IncrementBalance(ctx context.Context, serial string) (*Customer, error)
	// UpdateBalanceAndRedemptions persists the new balance and redemption sets
	// and bumps UpdatedAt, returning the stored record.
	UpdateBalanceAndRedemptions(ctx context.Context, serial string, balance int, coffees, meals []int) (*Customer, error)
	List(ctx context.Context, limit, offset int) ([]Customer, error)
}

// GiftCardRepository is the pass state store for stored-value cards.
type GiftCardRepository interface {
	Create(ctx context.Context, g *GiftCard) error
	GetBySerial(ctx context.Context, serial string) (*GiftCard, error)
	UpdateBalance(ctx context.Context, serial string, balanceCents int) (*GiftCard, error)
}

// RegistrationRepository tracks which devices hold which passes.
type RegistrationRepository interface {
	// Upsert registers or refreshes a device/pass association; the last writer
	// wins for the push token.
	Upsert(ctx context.Context, reg *DeviceRegistration) error
	// Delete removes a registration. Deleting an absent key is not an error.
	Delete(ctx context.Context, deviceID, passTypeID, serial string) error
	// SerialsForDevice lists the serial numbers a device holds, optionally
	// limited to passes whose record changed after updatedSince.
	SerialsForDevice(ctx context.Context, deviceID, passTypeID string, updatedSince *time.Time) ([]string, error)
	// DevicesForSerial lists the devices holding a pass, including entries
	// without a push token (callers filter).
	DevicesForSerial(ctx context.Context, serial, passTypeID string) ([]Device, error)
}

// WalletLogRepository persists provider diagnostics for operator visibility.
type WalletLogRepository interface {
	Append(ctx context.Context, message string) error
}

// Store bundles the repositories behind a single handle.
type Store interface {
	Customers() CustomerRepository
	GiftCards() GiftCardRepository
	Registrations() RegistrationRepository
	WalletLogs() WalletLogRepository
	Ping(ctx context.Context) error
	Close()
}
