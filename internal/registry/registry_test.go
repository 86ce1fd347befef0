package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brewpass/brewpass/internal/store/core"
	"github.com/brewpass/brewpass/internal/store/memory"
)

func TestRegisterAndUnregister(t *testing.T) {
	st := memory.New()
	r := New(st.Registrations())
	ctx := context.Background()

	r.Register(ctx, "dev-1", "pass.com.example.loyalty", "serial-1", "tok-1")
	r.Register(ctx, "dev-2", "pass.com.example.loyalty", "serial-1", "tok-2")

	tokens, err := r.PushTargets(ctx, "serial-1", "pass.com.example.loyalty")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tok-1", "tok-2"}, tokens)

	require.NoError(t, r.Unregister(ctx, "dev-1", "pass.com.example.loyalty", "serial-1"))
	tokens, err = r.PushTargets(ctx, "serial-1", "pass.com.example.loyalty")
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-2"}, tokens)

	// deleting again is still a success
	require.NoError(t, r.Unregister(ctx, "dev-1", "pass.com.example.loyalty", "serial-1"))
}

func TestRegister_LastWriterWinsForToken(t *testing.T) {
	st := memory.New()
	r := New(st.Registrations())
	ctx := context.Background()

	r.Register(ctx, "dev-1", "pass.com.example.loyalty", "serial-1", "old")
	r.Register(ctx, "dev-1", "pass.com.example.loyalty", "serial-1", "new")

	tokens, err := r.PushTargets(ctx, "serial-1", "pass.com.example.loyalty")
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, tokens)
}

func TestPushTargets_FiltersAndDeduplicates(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	regs := []core.DeviceRegistration{
		{DeviceID: "a", PassTypeID: "pt", SerialNumber: "s", PushToken: "tok"},
		{DeviceID: "b", PassTypeID: "pt", SerialNumber: "s", PushToken: "tok"},
		{DeviceID: "c", PassTypeID: "pt", SerialNumber: "s", PushToken: ""},
	}
	for i := range regs {
		require.NoError(t, st.Registrations().Upsert(ctx, &regs[i]))
	}

	tokens, err := New(st.Registrations()).PushTargets(ctx, "s", "pt")
	require.NoError(t, err)
	assert.Equal(t, []string{"tok"}, tokens)
}

type failingRegs struct{ core.RegistrationRepository }

func (failingRegs) Upsert(context.Context, *core.DeviceRegistration) error {
	return errors.New("boom")
}

func TestRegister_SwallowsStoreFailure(t *testing.T) {
	r := New(failingRegs{})
	// must not panic or propagate
	r.Register(context.Background(), "dev-1", "pt", "s", "tok")
}

func TestSerialsForDevice_ScopedByPassType(t *testing.T) {
	st := memory.New()
	r := New(st.Registrations())
	ctx := context.Background()

	r.Register(ctx, "dev-1", "pass.com.example.loyalty", "serial-1", "tok")
	r.Register(ctx, "dev-1", "pass.com.example.giftcard", "gc-1", "tok")

	serials, err := r.SerialsForDevice(ctx, "dev-1", "pass.com.example.loyalty", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"serial-1"}, serials)
}
