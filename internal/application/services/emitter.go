package services

import (
	"context"
	"errors"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/Marketen/duties-traffic-generator/internal/application/domain"
	"github.com/Marketen/duties-traffic-generator/internal/application/ports"
	"github.com/Marketen/duties-traffic-generator/internal/logger"
)

const DefaultPublishWorkers = 4

// Emitter drains message sources and hands every message, with a synthesised
// payload, to the publisher. Publishes run on a bounded worker pool. At most
// one publish per worker is in flight; while all are busy Run stops pulling,
// so messages wait in the source's queue. Run may be called concurrently for
// several sources.
type Emitter struct {
	payloads  ports.PayloadSynthesizer
	publisher ports.MessagePublisher
	pool      *workerpool.WorkerPool
	inFlight  *semaphore.Weighted
	log       zerolog.Logger
	m         *EmitterMetrics
}

type EmitterOption func(*Emitter)

func WithEmitterMetrics(m *EmitterMetrics) EmitterOption {
	return func(e *Emitter) { e.m = m }
}

func WithEmitterLogger(log zerolog.Logger) EmitterOption {
	return func(e *Emitter) { e.log = log }
}

func NewEmitter(payloads ports.PayloadSynthesizer, publisher ports.MessagePublisher, workers int, opts ...EmitterOption) *Emitter {
	if workers < 1 {
		workers = DefaultPublishWorkers
	}
	e := &Emitter{
		payloads:  payloads,
		publisher: publisher,
		pool:      workerpool.New(workers),
		inFlight:  semaphore.NewWeighted(int64(workers)),
		log:       logger.Component("emitter"),
		m:         NewEmitterMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run pulls from source until ctx is done, returning nil in that case, or the
// source fails.
func (e *Emitter) Run(ctx context.Context, source ports.MessageSource) error {
	for {
		msg, err := source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return nil
			}
			return err
		}
		if err := e.inFlight.Acquire(ctx, 1); err != nil {
			return nil
		}
		e.pool.Submit(func() {
			defer e.inFlight.Release(1)
			e.emit(ctx, msg)
		})
		e.m.Pending.Set(float64(e.pool.WaitingQueueSize()))
	}
}

// Stop waits for the submitted publishes and closes the publisher.
func (e *Emitter) Stop() error {
	e.pool.StopWait()
	e.m.Pending.Set(0)
	return e.publisher.Close()
}

func (e *Emitter) emit(ctx context.Context, msg domain.Message) {
	kind := msg.Kind.String()

	payload, err := e.payloads.Payload(msg)
	if err != nil {
		e.m.PublishErrors.WithLabelValues(kind).Inc()
		e.log.Error().Err(err).Stringer("msg", msg).Msg("failed to build payload")
		return
	}

	start := time.Now()
	err = e.publisher.Publish(ctx, msg, payload)
	e.m.PublishTiming.Observe(time.Since(start).Seconds())
	if err != nil {
		e.m.PublishErrors.WithLabelValues(kind).Inc()
		e.log.Warn().Err(err).Stringer("msg", msg).Msg("failed to publish")
		return
	}

	e.m.Published.WithLabelValues(kind).Inc()
	e.m.PayloadSize.WithLabelValues(kind).Observe(float64(len(payload)))
}
