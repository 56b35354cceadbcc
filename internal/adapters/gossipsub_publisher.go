package adapters

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	pb "github.com/libp2p/go-libp2p-pubsub/pb"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
	"github.com/rs/zerolog"

	"github.com/Marketen/duties-traffic-generator/internal/application/domain"
	"github.com/Marketen/duties-traffic-generator/internal/application/ports"
	"github.com/Marketen/duties-traffic-generator/internal/logger"
)

// Gossip topic layout: /eth2/<fork digest>/<name>/ssz_snappy
const topicFmt = "/eth2/%s/%s/ssz_snappy"

// Domain types for message ID isolation.
var (
	messageDomainInvalidSnappy = [4]byte{0x00, 0x00, 0x00, 0x00}
	messageDomainValidSnappy   = [4]byte{0x01, 0x00, 0x00, 0x00}
)

var ErrPublisherClosed = errors.New("publisher closed")

// TopicName returns the gossip topic msg is published on.
func TopicName(forkDigest string, msg domain.Message) string {
	var name string
	switch msg.Kind {
	case domain.BeaconBlock:
		name = "beacon_block"
	case domain.Attestation:
		name = fmt.Sprintf("beacon_attestation_%d", msg.Subnet)
	case domain.AggregateAndProof:
		name = "beacon_aggregate_and_proof"
	case domain.SyncCommitteeMessage:
		name = fmt.Sprintf("sync_committee_%d", msg.SyncSubnet)
	case domain.SyncCommitteeContribution:
		name = "sync_committee_contribution_and_proof"
	default:
		name = msg.Kind.String()
	}
	return fmt.Sprintf(topicFmt, forkDigest, name)
}

// messageID computes SHA256(domain + uint64_le(len(topic)) + topic + data)[:20]
// where data is the decompressed payload when it is valid snappy.
func messageID(m *pb.Message) string {
	topic := m.GetTopic()
	d := messageDomainInvalidSnappy
	data := m.GetData()
	if decoded, err := snappy.Decode(nil, data); err == nil {
		d = messageDomainValidSnappy
		data = decoded
	}

	var topicLen [8]byte
	binary.LittleEndian.PutUint64(topicLen[:], uint64(len(topic)))

	h := sha256.New()
	h.Write(d[:])
	h.Write(topicLen[:])
	h.Write([]byte(topic))
	h.Write(data)
	return string(h.Sum(nil)[:20])
}

type GossipConfig struct {
	ListenAddr string
	Bootnodes  []string
	ForkDigest string
}

// GossipPublisher publishes snappy-compressed payloads over libp2p gossipsub.
// Topics are joined lazily on first use.
type GossipPublisher struct {
	host       host.Host
	ps         *pubsub.PubSub
	forkDigest string
	cancel     context.CancelFunc
	log        zerolog.Logger

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
	closed bool
}

var _ ports.MessagePublisher = (*GossipPublisher)(nil)

func NewGossipPublisher(cfg GossipConfig) (*GossipPublisher, error) {
	ctx, cancel := context.WithCancel(context.Background())

	addr, err := multiaddr.NewMultiaddr(cfg.ListenAddr)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("parse listen addr: %w", err)
	}

	h, err := libp2p.New(libp2p.ListenAddrs(addr))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("new host: %w", err)
	}

	ps, err := newGossipSub(ctx, h)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("gossipsub: %w", err)
	}

	p := &GossipPublisher{
		host:       h,
		ps:         ps,
		forkDigest: cfg.ForkDigest,
		cancel:     cancel,
		log:        logger.Component("gossip"),
		topics:     make(map[string]*pubsub.Topic),
	}
	p.log.Info().Str("peer_id", h.ID().String()).Strs("addrs", multiaddrStrings(h.Addrs())).Msg("libp2p host started")
	p.connectBootnodes(ctx, cfg.Bootnodes)
	return p, nil
}

func newGossipSub(ctx context.Context, h host.Host) (*pubsub.PubSub, error) {
	params := pubsub.DefaultGossipSubParams()
	params.D = 8
	params.Dlo = 6
	params.Dhi = 12
	params.Dlazy = 6
	params.HeartbeatInterval = 700 * time.Millisecond
	params.HistoryLength = 6
	params.HistoryGossip = 3

	return pubsub.NewGossipSub(ctx, h,
		pubsub.WithMessageSignaturePolicy(pubsub.StrictNoSign),
		pubsub.WithNoAuthor(),
		pubsub.WithGossipSubParams(params),
		pubsub.WithMessageIdFn(messageID),
		pubsub.WithMaxMessageSize(10*(1<<20)),
	)
}

func multiaddrStrings(addrs []multiaddr.Multiaddr) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.String())
	}
	return out
}

// connectBootnodes dials the given multiaddrs. Failures are logged and skipped.
func (p *GossipPublisher) connectBootnodes(ctx context.Context, addrs []string) {
	for _, addr := range addrs {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			p.log.Warn().Str("addr", addr).Err(err).Msg("invalid bootnode multiaddr")
			continue
		}
		pi, err := peer.AddrInfoFromP2pAddr(ma)
		if err != nil {
			p.log.Warn().Str("addr", addr).Err(err).Msg("invalid bootnode peer info")
			continue
		}
		if pi.ID == p.host.ID() {
			continue
		}
		if err := p.host.Connect(ctx, *pi); err != nil {
			p.log.Warn().Str("peer_id", pi.ID.String()).Err(err).Msg("failed to connect to bootnode")
			continue
		}
		p.log.Info().Str("peer_id", pi.ID.String()).Msg("connected to bootnode")
	}
}

func (p *GossipPublisher) topic(name string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPublisherClosed
	}
	if t, ok := p.topics[name]; ok {
		return t, nil
	}
	t, err := p.ps.Join(name)
	if err != nil {
		return nil, fmt.Errorf("join topic %s: %w", name, err)
	}
	p.topics[name] = t
	return t, nil
}

func (p *GossipPublisher) Publish(ctx context.Context, msg domain.Message, payload []byte) error {
	t, err := p.topic(TopicName(p.forkDigest, msg))
	if err != nil {
		return err
	}
	return t.Publish(ctx, snappy.Encode(nil, payload))
}

// Close leaves every topic and shuts the host down.
func (p *GossipPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	for name, t := range p.topics {
		if err := t.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close topic %s: %w", name, err))
		}
	}
	p.cancel()
	if err := p.host.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
