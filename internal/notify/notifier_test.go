package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	tokens []string
	err    error
}

func (s staticTokens) PushTargets(context.Context, string, string) ([]string, error) {
	return s.tokens, s.err
}

type recordingPusher struct {
	mu     sync.Mutex
	pushed []string
	fail   map[string]bool
}

func (p *recordingPusher) Push(ctx context.Context, token, topic string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed = append(p.pushed, token)
	if p.fail[token] {
		return errors.New("device gone")
	}
	return nil
}

func TestPassUpdated_NoDevices(t *testing.T) {
	n := New(staticTokens{}, &recordingPusher{})
	count, err := n.PassUpdated(context.Background(), "serial-1", "pt")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPassUpdated_NoCredentialsCountsWithoutSending(t *testing.T) {
	n := New(staticTokens{tokens: []string{"a", "b"}}, nil)
	count, err := n.PassUpdated(context.Background(), "serial-1", "pt")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPassUpdated_FanOut(t *testing.T) {
	pusher := &recordingPusher{}
	n := New(staticTokens{tokens: []string{"a", "b", "c"}}, pusher)

	count, err := n.PassUpdated(context.Background(), "serial-1", "pt")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, pusher.pushed)
}

func TestPassUpdated_PartialFailureIsNotAnError(t *testing.T) {
	pusher := &recordingPusher{fail: map[string]bool{"b": true}}
	n := New(staticTokens{tokens: []string{"a", "b", "c"}}, pusher)

	count, err := n.PassUpdated(context.Background(), "serial-1", "pt")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "only devices with a successful send are counted")
	assert.Len(t, pusher.pushed, 3, "the failing device is still attempted")
}

func TestPassUpdated_RegistryErrorPropagates(t *testing.T) {
	n := New(staticTokens{err: errors.New("store down")}, &recordingPusher{})
	_, err := n.PassUpdated(context.Background(), "serial-1", "pt")
	assert.Error(t, err)
}
