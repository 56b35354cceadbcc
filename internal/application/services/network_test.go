package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marketen/duties-traffic-generator/internal/application/domain"
)

// recordingPublisher keeps every published message and cancels once it has
// seen enough of them.
type recordingPublisher struct {
	mu     sync.Mutex
	msgs   []domain.Message
	limit  int
	cancel context.CancelFunc
	closed bool
}

func (p *recordingPublisher) Publish(_ context.Context, msg domain.Message, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	if len(p.msgs) >= p.limit {
		p.cancel()
	}
	return nil
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func TestNewNetworkPartitionsValidators(t *testing.T) {
	p := smallParams(t, newFakeClock(0))
	n, err := NewNetwork(p, domain.ValidatorRange(0, 16), 3)
	require.NoError(t, err)

	gens := n.Generators()
	require.Len(t, gens, 3)

	seen := map[domain.ValidatorIndex]string{}
	for i, g := range gens {
		assert.Equal(t, []string{"node-0", "node-1", "node-2"}[i], g.Name())
		assert.InDelta(t, 16/3, g.Validators().Len(), 1)
		for v := range g.Validators().All() {
			owner, dup := seen[v]
			assert.False(t, dup, "validator %d owned by %s and %s", v, owner, g.Name())
			seen[v] = g.Name()
		}
	}
	assert.Len(t, seen, 16)
}

func TestNewNetworkRejectsBadNodeCounts(t *testing.T) {
	p := smallParams(t, newFakeClock(0))

	_, err := NewNetwork(p, domain.ValidatorRange(0, 16), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidParams)

	_, err = NewNetwork(p, domain.ValidatorRange(0, 2), 3)
	assert.ErrorIs(t, err, domain.ErrInvalidParams)

	_, err = NewNetwork(p, domain.NewValidatorSet(1, 99), 1)
	assert.ErrorIs(t, err, ErrValidatorOutOfRange)
}

func TestNetworkRunDrainsEveryNode(t *testing.T) {
	clock := newFakeClock(0)
	p := smallParams(t, clock)
	n, err := NewNetwork(p, domain.ValidatorRange(0, 16), 2, WithAfterFunc(func(d time.Duration) <-chan time.Time {
		// throttle so that both nodes get to run before the shared clock races ahead
		time.Sleep(time.Millisecond)
		return clock.after(d)
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pub := &recordingPublisher{limit: 200, cancel: cancel}
	e := NewEmitter(fixedPayloads{}, pub, 2)

	require.NoError(t, n.Run(ctx, e))
	require.NoError(t, e.Stop())

	assert.True(t, pub.closed)
	assert.GreaterOrEqual(t, len(pub.msgs), 200)
	for _, msg := range pub.msgs {
		assert.Less(t, uint64(msg.Validator), uint64(16))
	}
}
