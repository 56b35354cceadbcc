package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Marketen/duties-traffic-generator/internal/application/domain"
)

type Publisher string

const (
	PublisherLog       Publisher = "log"
	PublisherGossipsub Publisher = "gossipsub"
)

// Config holds runtime configuration for the traffic generator. Unset
// network parameters are nil so that the generator defaults apply.
type Config struct {
	TotalValidators              *uint64
	SlotsPerEpoch                *uint64
	AttestationSubnets           *uint64
	TargetAggregators            *uint64
	SyncSubnetSize               *uint64
	SyncCommitteeSubnets         *uint64
	EpochsPerSyncCommitteePeriod *uint64

	SlotDuration *time.Duration
	GenesisTime  *int64 // unix seconds
	GenesisSlot  domain.Slot

	// Empty means every validator of the network.
	ValidatorIndices []domain.ValidatorIndex
	Nodes            int
	MaxQueueDepth    int

	Publisher      Publisher
	PublishWorkers int
	ListenAddr     string
	Bootnodes      []string
	ForkDigest     string

	MetricsAddr   string
	BeaconNodeURL string
	PayloadSeed   uint64
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Nodes:          1,
		Publisher:      PublisherLog,
		PublishWorkers: 4,
		ListenAddr:     "/ip4/0.0.0.0/tcp/9000",
		ForkDigest:     "00000000",
	}

	uints := []struct {
		env string
		dst **uint64
	}{
		{"TOTAL_VALIDATORS", &cfg.TotalValidators},
		{"SLOTS_PER_EPOCH", &cfg.SlotsPerEpoch},
		{"ATTESTATION_SUBNETS", &cfg.AttestationSubnets},
		{"TARGET_AGGREGATORS", &cfg.TargetAggregators},
		{"SYNC_SUBNET_SIZE", &cfg.SyncSubnetSize},
		{"SYNC_COMMITTEE_SUBNETS", &cfg.SyncCommitteeSubnets},
		{"EPOCHS_PER_SYNC_COMMITTEE_PERIOD", &cfg.EpochsPerSyncCommitteePeriod},
	}
	for _, u := range uints {
		v, err := optionalUint(u.env)
		if err != nil {
			return nil, err
		}
		*u.dst = v
	}

	cfg.BeaconNodeURL = env("BEACON_NODE_URL")
	if cfg.TotalValidators == nil && cfg.BeaconNodeURL == "" {
		return nil, fmt.Errorf("TOTAL_VALIDATORS is required unless BEACON_NODE_URL is set")
	}

	if s := env("SLOT_DURATION"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid SLOT_DURATION: %q", s)
		}
		cfg.SlotDuration = &d
	}

	if s := env("GENESIS_TIME"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid GENESIS_TIME: %q", s)
		}
		cfg.GenesisTime = &n
	}

	if s := env("GENESIS_SLOT"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid GENESIS_SLOT: %q", s)
		}
		cfg.GenesisSlot = domain.Slot(n)
	}

	if s := env("VALIDATOR_INDICES"); s != "" {
		indices, err := ParseValidatorIndices(s)
		if err != nil {
			return nil, fmt.Errorf("invalid VALIDATOR_INDICES: %w", err)
		}
		cfg.ValidatorIndices = indices
	}

	var err error
	if cfg.Nodes, err = positiveInt("NODES", cfg.Nodes); err != nil {
		return nil, err
	}
	if cfg.PublishWorkers, err = positiveInt("PUBLISH_WORKERS", cfg.PublishWorkers); err != nil {
		return nil, err
	}
	if s := env("MAX_QUEUE_DEPTH"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid MAX_QUEUE_DEPTH: %q", s)
		}
		cfg.MaxQueueDepth = n
	}

	if s := env("PUBLISHER"); s != "" {
		switch p := Publisher(strings.ToLower(s)); p {
		case PublisherLog, PublisherGossipsub:
			cfg.Publisher = p
		default:
			return nil, fmt.Errorf("invalid PUBLISHER: %q (expected %q or %q)", s, PublisherLog, PublisherGossipsub)
		}
	}
	if s := env("LISTEN_ADDR"); s != "" {
		cfg.ListenAddr = s
	}
	for _, b := range strings.Split(env("BOOTNODES"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.Bootnodes = append(cfg.Bootnodes, b)
		}
	}
	if s := env("FORK_DIGEST"); s != "" {
		s = strings.TrimPrefix(strings.ToLower(s), "0x")
		if b, err := hex.DecodeString(s); err != nil || len(b) != 4 {
			return nil, fmt.Errorf("invalid FORK_DIGEST: %q (expected 4 hex bytes)", s)
		}
		cfg.ForkDigest = s
	}

	cfg.MetricsAddr = env("METRICS_ADDR")
	if s := env("PAYLOAD_SEED"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid PAYLOAD_SEED: %q", s)
		}
		cfg.PayloadSeed = n
	}

	return cfg, nil
}

// MaxValidatorIndices bounds how many indices VALIDATOR_INDICES may expand to.
const MaxValidatorIndices = 1 << 22

// ParseValidatorIndices parses a comma-separated list of indices and
// inclusive ranges, e.g. "1,2,10-20".
func ParseValidatorIndices(s string) ([]domain.ValidatorIndex, error) {
	var indices []domain.ValidatorIndex
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		from, to, isRange := strings.Cut(p, "-")
		lo, err := strconv.ParseUint(strings.TrimSpace(from), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid validator index %q: %w", p, err)
		}
		hi := lo
		if isRange {
			hi, err = strconv.ParseUint(strings.TrimSpace(to), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid validator range %q: %w", p, err)
			}
			if hi < lo {
				return nil, fmt.Errorf("invalid validator range %q: end before start", p)
			}
		}
		if hi-lo >= MaxValidatorIndices-uint64(len(indices)) {
			return nil, fmt.Errorf("validator indices %q expand to more than %d entries", s, MaxValidatorIndices)
		}
		for v := lo; ; v++ {
			indices = append(indices, domain.ValidatorIndex(v))
			if v == hi {
				break
			}
		}
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("no valid validator indices parsed from %q", s)
	}
	return indices, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func optionalUint(key string) (*uint64, error) {
	s := env(key)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", key, s)
	}
	return &n, nil
}

func positiveInt(key string, def int) (int, error) {
	s := env(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}
