// Package committee decides, for every slot, which validators produce which
// gossip messages and on which subnet.
//
// Committee structure is derived from validator ids alone. Every epoch (or
// sync-committee period) the ids are "shaken": the epoch number is added to the
// id with wraparound and the sum is reduced modulo the validator count. The
// result is a rotation of [0, total_validators) that every engine computes
// identically, so independent engines agree on committees without talking to
// each other.
package committee

import (
	"iter"
	"math/bits"

	"github.com/Marketen/duties-traffic-generator/internal/application/domain"
)

// Assigner computes committee and subnet assignments. It holds no state beyond
// the parameters and is safe for concurrent use.
type Assigner struct {
	slotsPerEpoch         uint64
	attestationSubnets    uint64
	syncSubnetSize        uint64
	syncCommitteeSubnets  uint64
	targetAggregators     uint64
	totalValidators       uint64
	epochsPerSyncPeriod   uint64
	syncCommitteeSize     uint64
	attestationAggregates uint64
}

// New builds an Assigner. Params must come from domain.NewParams.
func New(p domain.Params) *Assigner {
	if p.IsZero() {
		panic("committee: assigner built from unvalidated params")
	}
	return &Assigner{
		slotsPerEpoch:         p.SlotsPerEpoch(),
		attestationSubnets:    p.AttestationSubnets(),
		syncSubnetSize:        p.SyncSubnetSize(),
		syncCommitteeSubnets:  p.SyncCommitteeSubnets(),
		targetAggregators:     p.TargetAggregators(),
		totalValidators:       p.TotalValidators(),
		epochsPerSyncPeriod:   p.EpochsPerSyncCommitteePeriod(),
		syncCommitteeSize:     p.SyncCommitteeSize(),
		attestationAggregates: p.TargetAggregators() * p.AttestationSubnets(),
	}
}

// shake moves a validator id by counter positions inside [0, total_validators).
// The addition wraps at 2^64.
func (a *Assigner) shake(v domain.ValidatorIndex, counter uint64) uint64 {
	sum, _ := bits.Add64(uint64(v), counter, 0)
	return sum % a.totalValidators
}

func (a *Assigner) epoch(slot domain.Slot) uint64 {
	return uint64(slot) / a.slotsPerEpoch
}

func (a *Assigner) syncPeriod(slot domain.Slot) uint64 {
	return a.epoch(slot) / a.epochsPerSyncPeriod
}

// Proposer returns the single block proposer of the slot if it belongs to the set.
func (a *Assigner) Proposer(slot domain.Slot, validators domain.ValidatorSet) (domain.ValidatorIndex, bool) {
	proposer := domain.ValidatorIndex(uint64(slot) % a.totalValidators)
	return proposer, validators.Contains(proposer)
}

// Attesters yields the validators attesting at the slot with their subnet.
// Each validator attests in exactly one slot of every epoch.
func (a *Assigner) Attesters(slot domain.Slot, validators domain.ValidatorSet) iter.Seq2[domain.ValidatorIndex, domain.Subnet] {
	epoch := a.epoch(slot)
	slotInEpoch := uint64(slot) % a.slotsPerEpoch
	return func(yield func(domain.ValidatorIndex, domain.Subnet) bool) {
		for v := range validators.All() {
			shaken := a.shake(v, epoch)
			if shaken%a.slotsPerEpoch != slotInEpoch {
				continue
			}
			if !yield(v, domain.Subnet(shaken%a.attestationSubnets)) {
				return
			}
		}
	}
}

// Aggregators yields the attestation aggregators of the slot with their subnet.
// The first target_aggregators members of every subnet's committee aggregate.
func (a *Assigner) Aggregators(slot domain.Slot, validators domain.ValidatorSet) iter.Seq2[domain.ValidatorIndex, domain.Subnet] {
	epoch := a.epoch(slot)
	return func(yield func(domain.ValidatorIndex, domain.Subnet) bool) {
		for v := range validators.All() {
			shaken := a.shake(v, epoch)
			idxInCommittee := shaken / a.attestationSubnets
			if idxInCommittee/a.targetAggregators != 0 {
				continue
			}
			if !yield(v, domain.Subnet(shaken%a.attestationSubnets)) {
				return
			}
		}
	}
}

// syncPosition returns the validator's position inside the sync committee of
// the period, or false if it is not a member.
func (a *Assigner) syncPosition(v domain.ValidatorIndex, period uint64) (uint64, bool) {
	shaken := a.shake(v, period)
	return shaken, shaken/a.syncCommitteeSize == 0
}

// SyncCommitteeMembers yields the sync-committee members with their sync subnet.
// Membership only changes at sync-committee period boundaries.
func (a *Assigner) SyncCommitteeMembers(slot domain.Slot, validators domain.ValidatorSet) iter.Seq2[domain.ValidatorIndex, domain.SyncSubnet] {
	period := a.syncPeriod(slot)
	return func(yield func(domain.ValidatorIndex, domain.SyncSubnet) bool) {
		for v := range validators.All() {
			pos, member := a.syncPosition(v, period)
			if !member {
				continue
			}
			if !yield(v, domain.SyncSubnet(pos%a.syncCommitteeSubnets)) {
				return
			}
		}
	}
}

// SyncCommitteeAggregators yields the sync-committee aggregators of the slot.
// The aggregator window slides by one member per slot inside every subnet so
// the same members do not aggregate for a whole period.
func (a *Assigner) SyncCommitteeAggregators(slot domain.Slot, validators domain.ValidatorSet) iter.Seq2[domain.ValidatorIndex, domain.SyncSubnet] {
	period := a.syncPeriod(slot)
	rotation := uint64(slot) % a.syncSubnetSize
	return func(yield func(domain.ValidatorIndex, domain.SyncSubnet) bool) {
		for v := range validators.All() {
			pos, member := a.syncPosition(v, period)
			if !member {
				continue
			}
			idxInSubcommittee := pos / a.syncCommitteeSubnets
			if ((idxInSubcommittee+rotation)%a.syncSubnetSize)/a.targetAggregators != 0 {
				continue
			}
			if !yield(v, domain.SyncSubnet(pos%a.syncCommitteeSubnets)) {
				return
			}
		}
	}
}

// Messages materialises the assignments of the given kinds at the slot. Kinds
// are emitted in the order given, validators in ascending order.
func (a *Assigner) Messages(slot domain.Slot, validators domain.ValidatorSet, kinds ...domain.MessageKind) []domain.Message {
	var out []domain.Message
	for _, kind := range kinds {
		switch kind {
		case domain.BeaconBlock:
			if proposer, ok := a.Proposer(slot, validators); ok {
				out = append(out, domain.NewBeaconBlock(slot, proposer))
			}
		case domain.Attestation:
			for v, subnet := range a.Attesters(slot, validators) {
				out = append(out, domain.NewAttestation(slot, v, subnet))
			}
		case domain.AggregateAndProof:
			for v, subnet := range a.Aggregators(slot, validators) {
				out = append(out, domain.NewAggregateAndProof(slot, v, subnet))
			}
		case domain.SyncCommitteeMessage:
			for v, subnet := range a.SyncCommitteeMembers(slot, validators) {
				out = append(out, domain.NewSyncCommitteeMessage(slot, v, subnet))
			}
		case domain.SyncCommitteeContribution:
			for v, subnet := range a.SyncCommitteeAggregators(slot, validators) {
				out = append(out, domain.NewSyncCommitteeContribution(slot, v, subnet))
			}
		}
	}
	return out
}

// Duties lists the epoch duties of every validator in the set.
func (a *Assigner) Duties(epoch domain.Epoch, validators domain.ValidatorSet) []domain.ValidatorDuty {
	start := uint64(epoch) * a.slotsPerEpoch
	period := uint64(epoch) / a.epochsPerSyncPeriod
	duties := make([]domain.ValidatorDuty, 0, validators.Len())
	for v := range validators.All() {
		shaken := a.shake(v, uint64(epoch))
		duty := domain.ValidatorDuty{
			ValidatorIndex:    v,
			AttestationSlot:   domain.Slot(start + shaken%a.slotsPerEpoch),
			AttestationSubnet: domain.Subnet(shaken % a.attestationSubnets),
			IsAggregator:      shaken < a.attestationAggregates,
		}
		if pos, member := a.syncPosition(v, period); member {
			duty.InSyncCommittee = true
			duty.SyncSubnet = domain.SyncSubnet(pos % a.syncCommitteeSubnets)
		}
		duties = append(duties, duty)
	}
	return duties
}
