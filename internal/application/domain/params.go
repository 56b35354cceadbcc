package domain

import (
	"errors"
	"fmt"
	"math/bits"
	"time"
)

// Network-wide defaults.
const (
	DefaultSlotDuration                 = 12 * time.Second
	DefaultSlotsPerEpoch                = uint64(32)
	DefaultAttestationSubnets           = uint64(64)
	DefaultTargetAggregators            = uint64(16)
	DefaultSyncCommitteeSize            = uint64(512)
	DefaultSyncCommitteeSubnets         = uint64(4)
	DefaultSyncSubnetSize               = DefaultSyncCommitteeSize / DefaultSyncCommitteeSubnets
	DefaultEpochsPerSyncCommitteePeriod = uint64(256)
)

var ErrInvalidParams = errors.New("invalid generator params")

// Params is the validated, immutable network configuration shared by every
// engine of one simulated network. Build it with NewParams.
type Params struct {
	slotsPerEpoch                uint64
	attestationSubnets           uint64
	syncSubnetSize               uint64
	syncCommitteeSubnets         uint64
	targetAggregators            uint64
	totalValidators              uint64
	epochsPerSyncCommitteePeriod uint64
}

// NewParams checks the configuration invariants in a fixed order and returns
// the first violation.
func NewParams(
	slotsPerEpoch uint64,
	attestationSubnets uint64,
	syncSubnetSize uint64,
	syncCommitteeSubnets uint64,
	targetAggregators uint64,
	totalValidators uint64,
	epochsPerSyncCommitteePeriod uint64,
) (Params, error) {
	positive := []struct {
		name  string
		value uint64
	}{
		{"slots_per_epoch", slotsPerEpoch},
		{"total_validators", totalValidators},
		{"attestation_subnets", attestationSubnets},
		{"sync_committee_subnets", syncCommitteeSubnets},
		{"sync_subnet_size", syncSubnetSize},
		{"target_aggregators", targetAggregators},
		{"epochs_per_sync_committee_period", epochsPerSyncCommitteePeriod},
	}
	for _, p := range positive {
		if p.value == 0 {
			return Params{}, fmt.Errorf("%w: %s must be positive", ErrInvalidParams, p.name)
		}
	}

	syncCommitteeSize, ok := mul(syncSubnetSize, syncCommitteeSubnets)
	if !ok {
		return Params{}, fmt.Errorf("%w: sync committee size is too large", ErrInvalidParams)
	}
	if syncCommitteeSize > totalValidators {
		return Params{}, fmt.Errorf("%w: not enough validators to reach the sync committee size (%d > %d)",
			ErrInvalidParams, syncCommitteeSize, totalValidators)
	}

	attAggregators, ok := mul(targetAggregators, attestationSubnets)
	if !ok {
		return Params{}, fmt.Errorf("%w: total attestation aggregators across the network is too large", ErrInvalidParams)
	}
	if attAggregators > totalValidators {
		return Params{}, fmt.Errorf("%w: not enough validators to reach the target aggregators in the attestation subnets (%d > %d)",
			ErrInvalidParams, attAggregators, totalValidators)
	}

	syncAggregators, ok := mul(targetAggregators, syncCommitteeSubnets)
	if !ok {
		return Params{}, fmt.Errorf("%w: target sync aggregators across the network is too large", ErrInvalidParams)
	}
	if syncAggregators > totalValidators {
		return Params{}, fmt.Errorf("%w: not enough validators to reach the target aggregators in the sync committees (%d > %d)",
			ErrInvalidParams, syncAggregators, totalValidators)
	}

	return Params{
		slotsPerEpoch:                slotsPerEpoch,
		attestationSubnets:           attestationSubnets,
		syncSubnetSize:               syncSubnetSize,
		syncCommitteeSubnets:         syncCommitteeSubnets,
		targetAggregators:            targetAggregators,
		totalValidators:              totalValidators,
		epochsPerSyncCommitteePeriod: epochsPerSyncCommitteePeriod,
	}, nil
}

func mul(a, b uint64) (uint64, bool) {
	hi, lo := bits.Mul64(a, b)
	return lo, hi == 0
}

func (p Params) SlotsPerEpoch() uint64                { return p.slotsPerEpoch }
func (p Params) AttestationSubnets() uint64           { return p.attestationSubnets }
func (p Params) SyncSubnetSize() uint64               { return p.syncSubnetSize }
func (p Params) SyncCommitteeSubnets() uint64         { return p.syncCommitteeSubnets }
func (p Params) TargetAggregators() uint64            { return p.targetAggregators }
func (p Params) TotalValidators() uint64              { return p.totalValidators }
func (p Params) EpochsPerSyncCommitteePeriod() uint64 { return p.epochsPerSyncCommitteePeriod }

// SyncCommitteeSize is the number of sync-committee members across all subnets.
func (p Params) SyncCommitteeSize() uint64 { return p.syncSubnetSize * p.syncCommitteeSubnets }

// IsZero reports whether p was not produced by NewParams.
func (p Params) IsZero() bool { return p == Params{} }

func (p Params) EpochOf(slot Slot) Epoch {
	return Epoch(uint64(slot) / p.slotsPerEpoch)
}

func (p Params) SyncCommitteePeriodOf(slot Slot) SyncCommitteePeriod {
	return SyncCommitteePeriod(uint64(p.EpochOf(slot)) / p.epochsPerSyncCommitteePeriod)
}

// EpochStartSlot returns the first slot of the epoch.
func (p Params) EpochStartSlot(epoch Epoch) Slot {
	return Slot(uint64(epoch) * p.slotsPerEpoch)
}
