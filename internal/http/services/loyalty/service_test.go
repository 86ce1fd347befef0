package loyalty

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewpass/brewpass/internal/passkit"
	"github.com/brewpass/brewpass/internal/rewards"
	"github.com/brewpass/brewpass/internal/store/core"
	"github.com/brewpass/brewpass/internal/store/memory"
)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	st := memory.New()
	return New(Deps{Customers: st.Customers(), PassTypeID: "pass.com.example.loyalty"}), st
}

func seed(t *testing.T, st *memory.Store, serial string, balance int) {
	t.Helper()
	require.NoError(t, st.Customers().Create(context.Background(), &core.Customer{SerialNumber: serial, DisplayName: "Ada"}))
	if balance > 0 {
		_, err := st.Customers().UpdateBalanceAndRedemptions(context.Background(), serial, balance, nil, nil)
		require.NoError(t, err)
	}
}

func TestRecordPurchase(t *testing.T) {
	svc, st := newService(t)
	seed(t, st, "serial-1", 0)
	ctx := context.Background()

	for i := 1; i <= 9; i++ {
		res, err := svc.RecordPurchase(ctx, "serial-1")
		require.NoError(t, err)
		assert.Equal(t, i, res.Customer.PointsBalance)
		assert.False(t, res.Evaluation.EarnedCoffee)
	}

	res, err := svc.RecordPurchase(ctx, "serial-1")
	require.NoError(t, err)
	assert.Equal(t, 10, res.Customer.PointsBalance)
	assert.True(t, res.Evaluation.EarnedCoffee)
	assert.Equal(t, rewards.TypeCoffee, res.Evaluation.RewardType)
}

func TestRecordPurchase_ConcurrentPurchasesAllLand(t *testing.T) {
	svc, st := newService(t)
	seed(t, st, "serial-1", 0)

	const purchases = 200
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < purchases; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.RecordPurchase(context.Background(), "serial-1")
			assert.NoError(t, err)
		}()
	}
	close(start)
	wg.Wait()

	c, err := st.Customers().GetBySerial(context.Background(), "serial-1")
	require.NoError(t, err)
	assert.Equal(t, purchases, c.PointsBalance, "every concurrent purchase adds exactly one point")
}

func TestRecordPurchase_UnknownSerial(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.RecordPurchase(context.Background(), "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRedeem(t *testing.T) {
	svc, st := newService(t)
	seed(t, st, "serial-1", 30)
	ctx := context.Background()

	updated, err := svc.Redeem(ctx, "serial-1", rewards.TypeCoffee, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{10}, updated.RedeemedCoffees)
	// redeeming does not touch the balance
	assert.Equal(t, 30, updated.PointsBalance)

	// same threshold again conflicts
	_, err = svc.Redeem(ctx, "serial-1", rewards.TypeCoffee, 10)
	assert.ErrorIs(t, err, core.ErrConflict)

	// unreachable tier conflicts
	_, err = svc.Redeem(ctx, "serial-1", rewards.TypeMeal, 50)
	assert.ErrorIs(t, err, core.ErrConflict)

	// reachable meal tier works
	_, err = svc.Redeem(ctx, "serial-1", rewards.TypeMeal, 25)
	require.NoError(t, err)

	_, err = svc.Redeem(ctx, "serial-1", "sandwich", 10)
	assert.ErrorIs(t, err, core.ErrInvalid)
}

func TestSnapshot(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	seed(t, st, "serial-1", 7)
	snap, err := svc.Snapshot(ctx, "serial-1")
	require.NoError(t, err)
	assert.Equal(t, passkit.KindLoyalty, snap.Kind)
	assert.Equal(t, 7, snap.Balance)
	assert.Empty(t, snap.Message, "nothing just earned at 7 points")
	assert.Equal(t, 70, snap.Progress)
	assert.False(t, snap.UpdatedAt.IsZero())

	seed(t, st, "serial-2", 50)
	snap, err = svc.Snapshot(ctx, "serial-2")
	require.NoError(t, err)
	assert.Equal(t, "You've earned a free meal!", snap.Message)

	_, err = svc.Snapshot(ctx, "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
