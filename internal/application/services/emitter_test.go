package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Marketen/duties-traffic-generator/internal/application/domain"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, msg domain.Message, payload []byte) error {
	args := m.Called(ctx, msg, payload)
	return args.Error(0)
}

func (m *mockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// fixedPayloads returns one byte per unit of kind plus one.
type fixedPayloads struct {
	err error
}

func (p fixedPayloads) Payload(msg domain.Message) ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	return make([]byte, int(msg.Kind)+1), nil
}

// sliceSource hands out msgs, then fails with err or blocks until ctx is done.
type sliceSource struct {
	mu   sync.Mutex
	msgs []domain.Message
	err  error
}

func (s *sliceSource) Next(ctx context.Context) (domain.Message, error) {
	s.mu.Lock()
	if len(s.msgs) > 0 {
		msg := s.msgs[0]
		s.msgs = s.msgs[1:]
		s.mu.Unlock()
		return msg, nil
	}
	s.mu.Unlock()
	if s.err != nil {
		return domain.Message{}, s.err
	}
	<-ctx.Done()
	return domain.Message{}, ctx.Err()
}

func (s *sliceSource) remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

// blockingPublisher holds every publish until release is closed.
type blockingPublisher struct {
	release   chan struct{}
	started   atomic.Int32
	published atomic.Int32
}

func (p *blockingPublisher) Publish(context.Context, domain.Message, []byte) error {
	p.started.Add(1)
	<-p.release
	p.published.Add(1)
	return nil
}

func (p *blockingPublisher) Close() error { return nil }

var errSourceBroken = errors.New("source broken")

func TestEmitterPublishesEveryMessage(t *testing.T) {
	msgs := []domain.Message{
		domain.NewBeaconBlock(1, 3),
		domain.NewAttestation(1, 4, 2),
		domain.NewSyncCommitteeMessage(1, 5, 1),
	}
	pub := new(mockPublisher)
	for _, msg := range msgs {
		pub.On("Publish", mock.Anything, msg, make([]byte, int(msg.Kind)+1)).Return(nil).Once()
	}
	pub.On("Close").Return(nil).Once()

	m := NewEmitterMetrics()
	e := NewEmitter(fixedPayloads{}, pub, 2, WithEmitterMetrics(m))

	err := e.Run(context.Background(), &sliceSource{msgs: msgs, err: errSourceBroken})
	assert.ErrorIs(t, err, errSourceBroken)
	require.NoError(t, e.Stop())

	pub.AssertExpectations(t)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Published.WithLabelValues(domain.BeaconBlock.String())))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Published.WithLabelValues(domain.Attestation.String())))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.PublishErrors.WithLabelValues(domain.Attestation.String())))
}

func TestEmitterCountsFailures(t *testing.T) {
	msg := domain.NewAggregateAndProof(7, 1, 0)

	t.Run("payload", func(t *testing.T) {
		pub := new(mockPublisher)
		pub.On("Close").Return(nil)
		m := NewEmitterMetrics()
		e := NewEmitter(fixedPayloads{err: errors.New("no payload")}, pub, 1, WithEmitterMetrics(m))

		_ = e.Run(context.Background(), &sliceSource{msgs: []domain.Message{msg}, err: errSourceBroken})
		require.NoError(t, e.Stop())

		pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, float64(1), testutil.ToFloat64(m.PublishErrors.WithLabelValues(msg.Kind.String())))
	})

	t.Run("publish", func(t *testing.T) {
		pub := new(mockPublisher)
		pub.On("Publish", mock.Anything, msg, mock.Anything).Return(errors.New("no peers"))
		pub.On("Close").Return(nil)
		m := NewEmitterMetrics()
		e := NewEmitter(fixedPayloads{}, pub, 1, WithEmitterMetrics(m))

		_ = e.Run(context.Background(), &sliceSource{msgs: []domain.Message{msg}, err: errSourceBroken})
		require.NoError(t, e.Stop())

		assert.Equal(t, float64(1), testutil.ToFloat64(m.PublishErrors.WithLabelValues(msg.Kind.String())))
		assert.Equal(t, float64(0), testutil.ToFloat64(m.Published.WithLabelValues(msg.Kind.String())))
	})
}

func TestEmitterStopsCleanlyOnCancel(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Close").Return(nil)
	e := NewEmitter(fixedPayloads{}, pub, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, e.Run(ctx, &sliceSource{}))
	require.NoError(t, e.Stop())
	pub.AssertExpectations(t)
}

func TestEmitterStopsPullingWhileWorkersAreBusy(t *testing.T) {
	msgs := make([]domain.Message, 100)
	for i := range msgs {
		msgs[i] = domain.NewAttestation(1, domain.ValidatorIndex(i), 0)
	}
	source := &sliceSource{msgs: msgs}
	pub := &blockingPublisher{release: make(chan struct{})}
	m := NewEmitterMetrics()
	e := NewEmitter(fixedPayloads{}, pub, 2, WithEmitterMetrics(m))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, source) }()

	require.Eventually(t, func() bool { return pub.started.Load() == 2 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	// two publishing, one held by Run until a worker frees up
	assert.GreaterOrEqual(t, source.remaining(), len(msgs)-3)
	assert.LessOrEqual(t, e.pool.WaitingQueueSize(), 2)
	assert.LessOrEqual(t, testutil.ToFloat64(m.Pending), float64(2))

	cancel()
	require.NoError(t, <-done)
	close(pub.release)
	require.NoError(t, e.Stop())
	assert.Equal(t, int32(2), pub.published.Load())
}
