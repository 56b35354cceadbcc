package services

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/rs/zerolog"

	"github.com/Marketen/duties-traffic-generator/internal/application/committee"
	"github.com/Marketen/duties-traffic-generator/internal/application/domain"
	"github.com/Marketen/duties-traffic-generator/internal/application/ports"
	"github.com/Marketen/duties-traffic-generator/internal/fifoqueue"
	"github.com/Marketen/duties-traffic-generator/internal/logger"
)

// Every slot is split in thirds. Phase 0 is the slot boundary.
type tickPhase int

const (
	phaseSlotStart tickPhase = iota
	phaseOneThird
	phaseTwoThirds

	ticksPerSlot = 3
)

func (p tickPhase) String() string {
	return [...]string{"slot_start", "one_third", "two_thirds"}[p]
}

// Generator emits the gossip messages of its validators at the instants the
// protocol would: aggregates two thirds into the slot, everything at the slot
// boundary. It is a demand-driven sequence; consume it with Next or Messages
// from a single goroutine.
type Generator struct {
	name       string
	clock      ports.SlotClock
	assigner   *committee.Assigner
	validators domain.ValidatorSet
	queue      *fifoqueue.FifoQueue[domain.Message]
	after      func(time.Duration) <-chan time.Time
	log        zerolog.Logger
	m          *GeneratorMetrics

	// index of the last observed tick, counted in thirds of a slot
	lastTick uint64
	ticked   bool
}

type generatorConfig struct {
	name          string
	maxQueueDepth int
	after         func(time.Duration) <-chan time.Time
	log           *zerolog.Logger
	metrics       *GeneratorMetrics
}

// GeneratorOption customises a Generator.
type GeneratorOption func(*generatorConfig)

// WithName labels the generator in logs and metrics.
func WithName(name string) GeneratorOption {
	return func(c *generatorConfig) { c.name = name }
}

// WithMaxQueueDepth caps the pending queue. Messages that do not fit are
// dropped. Zero means unbounded.
func WithMaxQueueDepth(depth int) GeneratorOption {
	return func(c *generatorConfig) { c.maxQueueDepth = depth }
}

// WithAfterFunc replaces time.After as the source of tick wake-ups.
func WithAfterFunc(after func(time.Duration) <-chan time.Time) GeneratorOption {
	return func(c *generatorConfig) { c.after = after }
}

func WithLogger(log zerolog.Logger) GeneratorOption {
	return func(c *generatorConfig) { c.log = &log }
}

func WithMetrics(m *GeneratorMetrics) GeneratorOption {
	return func(c *generatorConfig) { c.metrics = m }
}

func newGenerator(clock ports.SlotClock, params domain.Params, validators domain.ValidatorSet, opts ...GeneratorOption) (*Generator, error) {
	cfg := generatorConfig{
		name:  "generator",
		after: time.After,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.metrics == nil {
		cfg.metrics = NewGeneratorMetrics()
	}
	log := logger.Component("generator")
	if cfg.log != nil {
		log = *cfg.log
	}
	log = log.With().Str("engine", cfg.name).Logger()

	depth := cfg.metrics.QueueDepth.WithLabelValues(cfg.name)
	queueOpts := []fifoqueue.ConstructorOption{
		fifoqueue.WithLengthObserver(func(n int) { depth.Set(float64(n)) }),
	}
	if cfg.maxQueueDepth > 0 {
		queueOpts = append(queueOpts, fifoqueue.WithCapacity(cfg.maxQueueDepth))
	}
	queue, err := fifoqueue.NewFifoQueue[domain.Message](queueOpts...)
	if err != nil {
		return nil, fmt.Errorf("create message queue: %w", err)
	}

	return &Generator{
		name:       cfg.name,
		clock:      clock,
		assigner:   committee.New(params),
		validators: validators,
		queue:      queue,
		after:      cfg.after,
		log:        log,
		m:          cfg.metrics,
	}, nil
}

func (g *Generator) Name() string { return g.name }

func (g *Generator) Validators() domain.ValidatorSet { return g.validators }

// Pending returns the number of queued messages.
func (g *Generator) Pending() int { return g.queue.Len() }

// Next returns the next message. If none is queued it waits for the next tick
// that produces at least one message. If ticks passed while the queue was
// draining, only the latest of them is observed, at once.
func (g *Generator) Next(ctx context.Context) (domain.Message, error) {
	for {
		if msg, ok := g.queue.Pop(); ok {
			return msg, nil
		}
		if err := g.waitForTick(ctx); err != nil {
			return domain.Message{}, err
		}
	}
}

// Messages ranges over the generator until ctx is done or the clock fails.
// The final pair carries the error.
func (g *Generator) Messages(ctx context.Context) iter.Seq2[domain.Message, error] {
	return func(yield func(domain.Message, error) bool) {
		for {
			msg, err := g.Next(ctx)
			if !yield(msg, err) || err != nil {
				return
			}
		}
	}
}

// nextTick returns how long to wait for the next tick and its phase.
func (g *Generator) nextTick() (time.Duration, tickPhase, error) {
	untilSlot, err := g.clock.DurationToNextSlot()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ports.ErrClockUnavailable, err)
	}
	slotDuration := g.clock.SlotDuration()
	third := slotDuration / ticksPerSlot

	switch {
	case untilSlot > slotDuration:
		// before genesis
		return untilSlot, phaseSlotStart, nil
	case untilSlot > 2*third:
		return untilSlot - 2*third, phaseOneThird, nil
	case untilSlot > third:
		return untilSlot - third, phaseTwoThirds, nil
	default:
		return untilSlot, phaseSlotStart, nil
	}
}

// position returns the index of the latest tick at or before now, counted in
// thirds of a slot. ok is false before genesis.
func (g *Generator) position() (index uint64, ok bool, err error) {
	untilSlot, err := g.clock.DurationToNextSlot()
	if err != nil {
		return 0, false, fmt.Errorf("%w: %w", ports.ErrClockUnavailable, err)
	}
	slotDuration := g.clock.SlotDuration()
	if untilSlot > slotDuration {
		return 0, false, nil
	}
	thirds := min(uint64((slotDuration-untilSlot)/(slotDuration/ticksPerSlot)), ticksPerSlot-1)
	return uint64(g.clock.Now())*ticksPerSlot + thirds, true, nil
}

func (g *Generator) waitForTick(ctx context.Context) error {
	if g.ticked {
		index, ok, err := g.position()
		if err != nil {
			g.log.Error().Err(err).Msg("cannot read tick position")
			return err
		}
		if ok && index > g.lastTick {
			g.m.LateTicks.Inc()
			g.log.Debug().Uint64("missed", index-g.lastTick).Msg("queue drained after tick")
			g.observe(domain.Slot(index/ticksPerSlot), tickPhase(index%ticksPerSlot))
			return nil
		}
	}

	current := g.clock.Now()
	wait, phase, err := g.nextTick()
	if err != nil {
		g.log.Error().Err(err).Msg("cannot schedule next tick")
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-g.after(wait):
	}

	slot := current
	if phase == phaseSlotStart {
		slot = g.clock.Now()
	}
	g.observe(slot, phase)
	return nil
}

func (g *Generator) observe(slot domain.Slot, phase tickPhase) {
	g.lastTick = uint64(slot)*ticksPerSlot + uint64(phase)
	g.ticked = true
	g.onTick(slot, phase)
}

func (g *Generator) onTick(slot domain.Slot, phase tickPhase) {
	g.m.Ticks.WithLabelValues(phase.String()).Inc()

	var kinds []domain.MessageKind
	switch phase {
	case phaseSlotStart:
		kinds = domain.AllKinds
	case phaseTwoThirds:
		kinds = domain.AggregateKinds
	default:
		return
	}

	start := time.Now()
	batch := g.assigner.Messages(slot, g.validators, kinds...)
	g.m.BatchTiming.Observe(time.Since(start).Seconds())
	g.m.CurrentSlot.Set(float64(slot))

	for _, msg := range batch {
		g.m.Messages.WithLabelValues(msg.Kind.String()).Inc()
	}
	if dropped := g.queue.PushAll(batch); dropped > 0 {
		g.m.Dropped.WithLabelValues(g.name).Add(float64(dropped))
		g.log.Warn().
			Uint64("slot", uint64(slot)).
			Int("dropped", dropped).
			Int("pending", g.queue.Len()).
			Msg("message queue full")
	}

	g.log.Debug().
		Uint64("slot", uint64(slot)).
		Stringer("phase", phase).
		Int("batch", len(batch)).
		Msg("tick")
}
