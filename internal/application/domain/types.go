package domain

import "fmt"

// Basic consensus types
type Epoch uint64
type Slot uint64
type ValidatorIndex uint64
type SyncCommitteePeriod uint64

// Subnet is an attestation subnet in [0, attestation_subnets).
type Subnet uint64

// SyncSubnet is a sync-committee subnet in [0, sync_committee_subnets).
// It is a different numbering space than Subnet.
type SyncSubnet uint64

func (v ValidatorIndex) String() string { return fmt.Sprintf("V%d", uint64(v)) }
func (s Subnet) String() string         { return fmt.Sprintf("S%d", uint64(s)) }
func (s SyncSubnet) String() string     { return fmt.Sprintf("SC%d", uint64(s)) }

// MessageKind identifies one of the gossip message types produced by validators.
type MessageKind uint8

const (
	BeaconBlock MessageKind = iota
	Attestation
	AggregateAndProof
	SyncCommitteeMessage
	SyncCommitteeContribution
)

// AllKinds lists every kind in emission order.
var AllKinds = []MessageKind{
	BeaconBlock,
	Attestation,
	AggregateAndProof,
	SyncCommitteeMessage,
	SyncCommitteeContribution,
}

// AggregateKinds are the kinds emitted two thirds into a slot.
var AggregateKinds = []MessageKind{
	AggregateAndProof,
	SyncCommitteeContribution,
}

func (k MessageKind) String() string {
	switch k {
	case BeaconBlock:
		return "beacon_block"
	case Attestation:
		return "attestation"
	case AggregateAndProof:
		return "aggregate_and_proof"
	case SyncCommitteeMessage:
		return "sync_committee_message"
	case SyncCommitteeContribution:
		return "sync_committee_contribution"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Message is a single gossip message produced by a validator at a slot.
// Subnet is meaningful for Attestation and AggregateAndProof, SyncSubnet for
// the two sync-committee kinds.
type Message struct {
	Kind       MessageKind
	Slot       Slot
	Validator  ValidatorIndex
	Subnet     Subnet
	SyncSubnet SyncSubnet
}

func NewBeaconBlock(slot Slot, proposer ValidatorIndex) Message {
	return Message{Kind: BeaconBlock, Slot: slot, Validator: proposer}
}

func NewAttestation(slot Slot, validator ValidatorIndex, subnet Subnet) Message {
	return Message{Kind: Attestation, Slot: slot, Validator: validator, Subnet: subnet}
}

func NewAggregateAndProof(slot Slot, aggregator ValidatorIndex, subnet Subnet) Message {
	return Message{Kind: AggregateAndProof, Slot: slot, Validator: aggregator, Subnet: subnet}
}

func NewSyncCommitteeMessage(slot Slot, validator ValidatorIndex, subnet SyncSubnet) Message {
	return Message{Kind: SyncCommitteeMessage, Slot: slot, Validator: validator, SyncSubnet: subnet}
}

func NewSyncCommitteeContribution(slot Slot, aggregator ValidatorIndex, subnet SyncSubnet) Message {
	return Message{Kind: SyncCommitteeContribution, Slot: slot, Validator: aggregator, SyncSubnet: subnet}
}

func (m Message) String() string {
	switch m.Kind {
	case Attestation, AggregateAndProof:
		return fmt.Sprintf("%s{slot=%d %s %s}", m.Kind, m.Slot, m.Validator, m.Subnet)
	case SyncCommitteeMessage, SyncCommitteeContribution:
		return fmt.Sprintf("%s{slot=%d %s %s}", m.Kind, m.Slot, m.Validator, m.SyncSubnet)
	default:
		return fmt.Sprintf("%s{slot=%d %s}", m.Kind, m.Slot, m.Validator)
	}
}

// ValidatorDuty describes what a validator does during one epoch.
type ValidatorDuty struct {
	ValidatorIndex    ValidatorIndex
	AttestationSlot   Slot
	AttestationSubnet Subnet
	IsAggregator      bool
	InSyncCommittee   bool
	SyncSubnet        SyncSubnet
}

// NetworkProfile is the slice of a live network's configuration that can seed
// the generator parameters.
type NetworkProfile struct {
	GenesisTime      int64 // unix seconds
	SecondsPerSlot   uint64
	SlotsPerEpoch    uint64
	ActiveValidators uint64
}
