// Package memory implements the store contracts in process memory.
// Used by tests and by the dev storage driver; semantics mirror the pg
// adapter, including idempotent registration deletes.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/brewpass/brewpass/internal/store/core"
)

type Store struct {
	mu            sync.RWMutex
	customers     map[string]*core.Customer
	giftCards     map[string]*core.GiftCard
	registrations map[string]*core.DeviceRegistration
	logs          []core.WalletLogEntry
}

func New() *Store {
	return &Store{
		customers:     make(map[string]*core.Customer),
		giftCards:     make(map[string]*core.GiftCard),
		registrations: make(map[string]*core.DeviceRegistration),
	}
}

func (s *Store) Customers() core.CustomerRepository         { return (*customerRepo)(s) }
func (s *Store) GiftCards() core.GiftCardRepository         { return (*giftCardRepo)(s) }
func (s *Store) Registrations() core.RegistrationRepository { return (*registrationRepo)(s) }
func (s *Store) WalletLogs() core.WalletLogRepository       { return (*walletLogRepo)(s) }

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close()                         {}

func regKey(deviceID, passTypeID, serial string) string {
	return strings.Join([]string{deviceID, passTypeID, serial}, "|")
}

// ─── CustomerRepository ───

type customerRepo Store

func (r *customerRepo) Create(ctx context.Context, c *core.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.customers[c.SerialNumber]; ok {
		return core.ErrConflict
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	cp := *c
	r.customers[c.SerialNumber] = &cp
	return nil
}

func (r *customerRepo) GetBySerial(ctx context.Context, serial string) (*core.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.customers[serial]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *customerRepo) IncrementBalance(ctx context.Context, serial string) (*core.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[serial]
	if !ok {
		return nil, core.ErrNotFound
	}
	c.PointsBalance++
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	return &cp, nil
}

func (r *customerRepo) UpdateBalanceAndRedemptions(ctx context.Context, serial string, balance int, coffees, meals []int) (*core.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.customers[serial]
	if !ok {
		return nil, core.ErrNotFound
	}
	c.PointsBalance = balance
	c.RedeemedCoffees = append([]int(nil), coffees...)
	c.RedeemedMeals = append([]int(nil), meals...)
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	return &cp, nil
}

func (r *customerRepo) List(ctx context.Context, limit, offset int) ([]core.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]core.Customer, 0, len(r.customers))
	for _, c := range r.customers {
		all = append(all, *c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return []core.Customer{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// ─── GiftCardRepository ───

type giftCardRepo Store

func (r *giftCardRepo) Create(ctx context.Context, g *core.GiftCard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.giftCards[g.SerialNumber]; ok {
		return core.ErrConflict
	}
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now
	cp := *g
	r.giftCards[g.SerialNumber] = &cp
	return nil
}

func (r *giftCardRepo) GetBySerial(ctx context.Context, serial string) (*core.GiftCard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.giftCards[serial]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (r *giftCardRepo) UpdateBalance(ctx context.Context, serial string, balanceCents int) (*core.GiftCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.giftCards[serial]
	if !ok {
		return nil, core.ErrNotFound
	}
	g.BalanceCents = balanceCents
	g.UpdatedAt = time.Now().UTC()
	cp := *g
	return &cp, nil
}

// ─── RegistrationRepository ───

type registrationRepo Store

func (r *registrationRepo) Upsert(ctx context.Context, reg *core.DeviceRegistration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *reg
	cp.UpdatedAt = time.Now().UTC()
	r.registrations[regKey(reg.DeviceID, reg.PassTypeID, reg.SerialNumber)] = &cp
	return nil
}

func (r *registrationRepo) Delete(ctx context.Context, deviceID, passTypeID, serial string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.registrations, regKey(deviceID, passTypeID, serial))
	return nil
}

func (r *registrationRepo) SerialsForDevice(ctx context.Context, deviceID, passTypeID string, updatedSince *time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	serials := []string{}
	for _, reg := range r.registrations {
		if reg.DeviceID != deviceID || reg.PassTypeID != passTypeID {
			continue
		}
		if updatedSince != nil && !r.recordUpdatedAfter(reg.SerialNumber, *updatedSince) {
			continue
		}
		serials = append(serials, reg.SerialNumber)
	}
	sort.Strings(serials)
	return serials, nil
}

func (r *registrationRepo) recordUpdatedAfter(serial string, since time.Time) bool {
	if c, ok := r.customers[serial]; ok && c.UpdatedAt.After(since) {
		return true
	}
	if g, ok := r.giftCards[serial]; ok && g.UpdatedAt.After(since) {
		return true
	}
	return false
}

func (r *registrationRepo) DevicesForSerial(ctx context.Context, serial, passTypeID string) ([]core.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	devices := []core.Device{}
	for _, reg := range r.registrations {
		if reg.SerialNumber == serial && reg.PassTypeID == passTypeID {
			devices = append(devices, core.Device{DeviceID: reg.DeviceID, PushToken: reg.PushToken})
		}
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].DeviceID < devices[j].DeviceID })
	return devices, nil
}

// ─── WalletLogRepository ───

type walletLogRepo Store

func (r *walletLogRepo) Append(ctx context.Context, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, core.WalletLogEntry{Message: message, CreatedAt: time.Now().UTC()})
	return nil
}

// Logs returns a copy of the captured diagnostics. Test helper.
func (s *Store) Logs() []core.WalletLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.WalletLogEntry(nil), s.logs...)
}
