package adapters

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/attestantio/go-eth2-client/spec/altair"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/prysmaticlabs/go-bitfield"

	"github.com/Marketen/duties-traffic-generator/internal/application/domain"
	"github.com/Marketen/duties-traffic-generator/internal/application/ports"
)

// sizeRange is the inclusive size range of a kind's payload in bytes.
type sizeRange struct {
	min, max int
}

var payloadSizes = map[domain.MessageKind]sizeRange{
	domain.BeaconBlock:               {60_000, 80_000},
	domain.AggregateAndProof:         {80_000, 135_000},
	domain.Attestation:               {30_000, 55_000},
	domain.SyncCommitteeContribution: {3_000, 8_000},
	domain.SyncCommitteeMessage:      {8_000, 20_000},
}

// maxCommitteeSize bounds the aggregation bitlist of attestations.
const maxCommitteeSize = 2048

// SSZPayloadSynthesizer encodes the consensus container matching each message
// kind and pads it with pseudo-random bytes to a size typical for that kind.
// It is safe for concurrent use.
type SSZPayloadSynthesizer struct {
	slotsPerEpoch uint64

	mu  sync.Mutex
	rng *rand.Rand
}

var _ ports.PayloadSynthesizer = (*SSZPayloadSynthesizer)(nil)

// NewSSZPayloadSynthesizer seeds the padding. slotsPerEpoch sets the
// checkpoint epochs of attestations; zero means the default.
func NewSSZPayloadSynthesizer(seed, slotsPerEpoch uint64) *SSZPayloadSynthesizer {
	if slotsPerEpoch == 0 {
		slotsPerEpoch = domain.DefaultSlotsPerEpoch
	}
	return &SSZPayloadSynthesizer{
		slotsPerEpoch: slotsPerEpoch,
		rng:           rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *SSZPayloadSynthesizer) Payload(msg domain.Message) ([]byte, error) {
	body, err := encodeContainer(msg, s.slotsPerEpoch)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg, err)
	}

	size, ok := payloadSizes[msg.Kind]
	if !ok {
		return nil, fmt.Errorf("no payload size for kind %s", msg.Kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	target := size.min + s.rng.IntN(size.max-size.min+1)
	if len(body) >= target {
		return body, nil
	}
	out := make([]byte, target)
	copy(out, body)
	s.fill(out[len(body):])
	return out, nil
}

func (s *SSZPayloadSynthesizer) fill(b []byte) {
	for len(b) >= 8 {
		binary.LittleEndian.PutUint64(b, s.rng.Uint64())
		b = b[8:]
	}
	for i := range b {
		b[i] = byte(s.rng.Uint32())
	}
}

// root derives a stable placeholder root from the message coordinates.
func root(msg domain.Message, tag byte) phase0.Root {
	var r phase0.Root
	binary.LittleEndian.PutUint64(r[0:], uint64(msg.Slot))
	binary.LittleEndian.PutUint64(r[8:], uint64(msg.Validator))
	r[31] = tag
	return r
}

func attestationData(msg domain.Message, slotsPerEpoch uint64) *phase0.AttestationData {
	epoch := phase0.Epoch(uint64(msg.Slot) / slotsPerEpoch)
	source := epoch
	if source > 0 {
		source--
	}
	return &phase0.AttestationData{
		Slot:            phase0.Slot(msg.Slot),
		Index:           phase0.CommitteeIndex(msg.Subnet),
		BeaconBlockRoot: root(msg, 'b'),
		Source:          &phase0.Checkpoint{Epoch: source, Root: root(msg, 's')},
		Target:          &phase0.Checkpoint{Epoch: epoch, Root: root(msg, 't')},
	}
}

func attestation(msg domain.Message, slotsPerEpoch, participants uint64) *phase0.Attestation {
	bits := bitfield.NewBitlist(maxCommitteeSize)
	for i := uint64(0); i < participants; i++ {
		bits.SetBitAt(i, true)
	}
	return &phase0.Attestation{
		AggregationBits: bits,
		Data:            attestationData(msg, slotsPerEpoch),
	}
}

func encodeContainer(msg domain.Message, slotsPerEpoch uint64) ([]byte, error) {
	switch msg.Kind {
	case domain.BeaconBlock:
		block := &phase0.SignedBeaconBlock{
			Message: &phase0.BeaconBlock{
				Slot:          phase0.Slot(msg.Slot),
				ProposerIndex: phase0.ValidatorIndex(msg.Validator),
				ParentRoot:    root(msg, 'p'),
				StateRoot:     root(msg, 'r'),
				Body: &phase0.BeaconBlockBody{
					ETH1Data: &phase0.ETH1Data{
						DepositRoot: root(msg, 'd'),
						BlockHash:   make([]byte, 32),
					},
				},
			},
		}
		return block.MarshalSSZ()

	case domain.Attestation:
		att := attestation(msg, slotsPerEpoch, 1)
		return att.MarshalSSZ()

	case domain.AggregateAndProof:
		aggregate := &phase0.SignedAggregateAndProof{
			Message: &phase0.AggregateAndProof{
				AggregatorIndex: phase0.ValidatorIndex(msg.Validator),
				Aggregate:       attestation(msg, slotsPerEpoch, maxCommitteeSize/2),
			},
		}
		return aggregate.MarshalSSZ()

	case domain.SyncCommitteeMessage:
		vote := &altair.SyncCommitteeMessage{
			Slot:            phase0.Slot(msg.Slot),
			BeaconBlockRoot: root(msg, 'b'),
			ValidatorIndex:  phase0.ValidatorIndex(msg.Validator),
		}
		return vote.MarshalSSZ()

	case domain.SyncCommitteeContribution:
		bits := bitfield.NewBitvector128()
		for i := uint64(0); i < bits.Len(); i += 2 {
			bits.SetBitAt(i, true)
		}
		contribution := &altair.SignedContributionAndProof{
			Message: &altair.ContributionAndProof{
				AggregatorIndex: phase0.ValidatorIndex(msg.Validator),
				Contribution: &altair.SyncCommitteeContribution{
					Slot:              phase0.Slot(msg.Slot),
					BeaconBlockRoot:   root(msg, 'b'),
					SubcommitteeIndex: uint64(msg.SyncSubnet),
					AggregationBits:   bits,
				},
			},
		}
		return contribution.MarshalSSZ()

	default:
		return nil, fmt.Errorf("unknown message kind %d", msg.Kind)
	}
}
