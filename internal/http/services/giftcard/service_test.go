package giftcard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewpass/brewpass/internal/passkit"
	"github.com/brewpass/brewpass/internal/store/core"
	"github.com/brewpass/brewpass/internal/store/memory"
)

func newService() *Service {
	st := memory.New()
	return New(Deps{Cards: st.GiftCards(), PassTypeID: "pass.com.example.giftcard"})
}

func TestIssueAndAdjust(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	card, err := svc.Issue(ctx, "Ada", 2500)
	require.NoError(t, err)
	assert.NotEmpty(t, card.SerialNumber)
	assert.Equal(t, 2500, card.BalanceCents)

	card, err = svc.Adjust(ctx, card.SerialNumber, -1000)
	require.NoError(t, err)
	assert.Equal(t, 1500, card.BalanceCents)

	_, err = svc.Adjust(ctx, card.SerialNumber, -2000)
	assert.ErrorIs(t, err, core.ErrConflict)

	_, err = svc.Adjust(ctx, "ghost", 100)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestIssue_NegativeBalance(t *testing.T) {
	_, err := newService().Issue(context.Background(), "Ada", -1)
	assert.ErrorIs(t, err, core.ErrInvalid)
}

func TestSnapshot(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	card, err := svc.Issue(ctx, "Ada", 1234)
	require.NoError(t, err)

	snap, err := svc.Snapshot(ctx, card.SerialNumber)
	require.NoError(t, err)
	assert.Equal(t, passkit.KindGiftCard, snap.Kind)
	assert.Equal(t, 1234, snap.Balance)
	assert.Equal(t, card.SerialNumber, snap.SerialNumber)

	_, err = svc.Snapshot(ctx, "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
