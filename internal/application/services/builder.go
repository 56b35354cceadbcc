package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/Marketen/duties-traffic-generator/internal/application/domain"
	"github.com/Marketen/duties-traffic-generator/internal/application/ports"
	"github.com/Marketen/duties-traffic-generator/internal/slotclock"
)

var (
	ErrTotalValidatorsNotSet = errors.New("total_validators not set")
	ErrValidatorOutOfRange   = errors.New("validator ids must go up to total_validators - 1")
)

// GeneratorBuilder collects generator settings. Everything but the total
// number of validators has a default.
type GeneratorBuilder struct {
	clock        ports.SlotClock
	genesisSlot  domain.Slot
	genesis      time.Duration
	slotDuration time.Duration

	slotsPerEpoch                *uint64
	attestationSubnets           *uint64
	syncSubnetSize               *uint64
	syncCommitteeSubnets         *uint64
	targetAggregators            *uint64
	totalValidators              *uint64
	epochsPerSyncCommitteePeriod *uint64
}

func NewGeneratorBuilder() *GeneratorBuilder {
	return &GeneratorBuilder{slotDuration: domain.DefaultSlotDuration}
}

// SlotClock configures a system-time clock. genesisSlot starts genesis after
// the Unix epoch.
func (b *GeneratorBuilder) SlotClock(genesisSlot domain.Slot, genesis, slotDuration time.Duration) *GeneratorBuilder {
	b.clock = nil
	b.genesisSlot = genesisSlot
	b.genesis = genesis
	b.slotDuration = slotDuration
	return b
}

// Clock uses the given clock instead of the system-time one.
func (b *GeneratorBuilder) Clock(clock ports.SlotClock) *GeneratorBuilder {
	b.clock = clock
	return b
}

// AttestationSubnets is the number of attestation subnets to split validators.
func (b *GeneratorBuilder) AttestationSubnets(n uint64) *GeneratorBuilder {
	b.attestationSubnets = &n
	return b
}

// TargetAggregators is the number of aggregators per attestation subnet and
// per sync subnet.
func (b *GeneratorBuilder) TargetAggregators(n uint64) *GeneratorBuilder {
	b.targetAggregators = &n
	return b
}

// SyncSubnetSize is the number of validators in each sync subnet.
func (b *GeneratorBuilder) SyncSubnetSize(n uint64) *GeneratorBuilder {
	b.syncSubnetSize = &n
	return b
}

// SyncCommitteeSubnets is the number of subcommittees the sync committee is split in.
func (b *GeneratorBuilder) SyncCommitteeSubnets(n uint64) *GeneratorBuilder {
	b.syncCommitteeSubnets = &n
	return b
}

func (b *GeneratorBuilder) SlotsPerEpoch(n uint64) *GeneratorBuilder {
	b.slotsPerEpoch = &n
	return b
}

// TotalValidators is the number of validators in the network.
func (b *GeneratorBuilder) TotalValidators(n uint64) *GeneratorBuilder {
	b.totalValidators = &n
	return b
}

func (b *GeneratorBuilder) EpochsPerSyncCommitteePeriod(n uint64) *GeneratorBuilder {
	b.epochsPerSyncCommitteePeriod = &n
	return b
}

func valueOr(v *uint64, def uint64) uint64 {
	if v == nil {
		return def
	}
	return *v
}

// BuildParams validates the settings. The result can build any number of
// generators for the same network.
func (b *GeneratorBuilder) BuildParams() (GeneratorParams, error) {
	if b.totalValidators == nil {
		return GeneratorParams{}, ErrTotalValidatorsNotSet
	}

	params, err := domain.NewParams(
		valueOr(b.slotsPerEpoch, domain.DefaultSlotsPerEpoch),
		valueOr(b.attestationSubnets, domain.DefaultAttestationSubnets),
		valueOr(b.syncSubnetSize, domain.DefaultSyncSubnetSize),
		valueOr(b.syncCommitteeSubnets, domain.DefaultSyncCommitteeSubnets),
		valueOr(b.targetAggregators, domain.DefaultTargetAggregators),
		*b.totalValidators,
		valueOr(b.epochsPerSyncCommitteePeriod, domain.DefaultEpochsPerSyncCommitteePeriod),
	)
	if err != nil {
		return GeneratorParams{}, err
	}

	clock := b.clock
	if clock == nil {
		sysClock, err := slotclock.New(b.genesisSlot, b.genesis, b.slotDuration)
		if err != nil {
			return GeneratorParams{}, fmt.Errorf("%w: %w", domain.ErrInvalidParams, err)
		}
		clock = sysClock
	}

	return GeneratorParams{clock: clock, params: params}, nil
}

// Build is BuildParams followed by GeneratorParams.Build.
func (b *GeneratorBuilder) Build(validators domain.ValidatorSet, opts ...GeneratorOption) (*Generator, error) {
	p, err := b.BuildParams()
	if err != nil {
		return nil, err
	}
	return p.Build(validators, opts...)
}

// GeneratorParams are validated parameters together with the clock that
// drives them. It is a small value, cheap to copy.
type GeneratorParams struct {
	clock  ports.SlotClock
	params domain.Params
}

func (p GeneratorParams) Params() domain.Params  { return p.params }
func (p GeneratorParams) Clock() ports.SlotClock { return p.clock }

// Build creates a generator for the validators. Every id must be below
// total_validators and the clock must be able to place the next slot.
func (p GeneratorParams) Build(validators domain.ValidatorSet, opts ...GeneratorOption) (*Generator, error) {
	if p.params.IsZero() || p.clock == nil {
		return nil, fmt.Errorf("%w: params were not built", domain.ErrInvalidParams)
	}
	if highest, ok := validators.Max(); ok && uint64(highest) >= p.params.TotalValidators() {
		return nil, fmt.Errorf("%w: got %d with %d validators", ErrValidatorOutOfRange, highest, p.params.TotalValidators())
	}
	if _, err := p.clock.DurationToNextSlot(); err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrClockUnavailable, err)
	}
	return newGenerator(p.clock, p.params, validators, opts...)
}
