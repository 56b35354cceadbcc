package adapters

import (
	"context"
	"fmt"
	nethttp "net/http"
	"strconv"
	"time"

	"github.com/Marketen/duties-traffic-generator/internal/application/domain"
	"github.com/Marketen/duties-traffic-generator/internal/application/ports"

	"github.com/attestantio/go-eth2-client/api"
	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	eth2http "github.com/attestantio/go-eth2-client/http"
	"github.com/rs/zerolog"
)

// beaconHTTPClient implements ports.BeaconChainAdapter using go-eth2-client.
type beaconHTTPClient struct {
	client *eth2http.Service
}

// NewBeaconHTTPAdapter is the constructor used from main.go.
func NewBeaconHTTPAdapter(endpoint string) (ports.BeaconChainAdapter, error) {
	customHTTPClient := &nethttp.Client{
		Timeout: 120 * time.Second, // global upper bound; per-request timeout below
	}

	client, err := eth2http.New(
		context.Background(),
		eth2http.WithAddress(endpoint),
		// Silence go-eth2-client logs unless they are warnings+.
		eth2http.WithLogLevel(zerolog.WarnLevel),
		eth2http.WithHTTPClient(customHTTPClient),
		// The validator list of a large network takes a while to download.
		eth2http.WithTimeout(60*time.Second),
	)
	if err != nil {
		return nil, err
	}

	return &beaconHTTPClient{client: client.(*eth2http.Service)}, nil
}

// GetNetworkProfile reads genesis, slot timing and the active validator
// count from the node.
func (b *beaconHTTPClient) GetNetworkProfile(ctx context.Context) (domain.NetworkProfile, error) {
	genesis, err := b.client.Genesis(ctx, &api.GenesisOpts{})
	if err != nil {
		return domain.NetworkProfile{}, fmt.Errorf("fetch genesis: %w", err)
	}

	spec, err := b.client.Spec(ctx, &api.SpecOpts{})
	if err != nil {
		return domain.NetworkProfile{}, fmt.Errorf("fetch spec: %w", err)
	}
	secondsPerSlot, err := specSeconds(spec.Data, "SECONDS_PER_SLOT")
	if err != nil {
		return domain.NetworkProfile{}, err
	}
	slotsPerEpoch, err := specUint(spec.Data, "SLOTS_PER_EPOCH")
	if err != nil {
		return domain.NetworkProfile{}, err
	}

	active, err := b.countActiveValidators(ctx)
	if err != nil {
		return domain.NetworkProfile{}, err
	}

	return domain.NetworkProfile{
		GenesisTime:      genesis.Data.GenesisTime.Unix(),
		SecondsPerSlot:   secondsPerSlot,
		SlotsPerEpoch:    slotsPerEpoch,
		ActiveValidators: active,
	}, nil
}

func (b *beaconHTTPClient) countActiveValidators(ctx context.Context) (uint64, error) {
	validators, err := b.client.Validators(ctx, &api.ValidatorsOpts{
		State: "head",
		ValidatorStates: []apiv1.ValidatorState{
			apiv1.ValidatorStateActiveOngoing,
			apiv1.ValidatorStateActiveExiting,
			apiv1.ValidatorStateActiveSlashed,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("fetch active validators: %w", err)
	}
	return uint64(len(validators.Data)), nil
}

// specSeconds accepts the forms go-eth2-client decodes SECONDS_* values to.
func specSeconds(spec map[string]any, key string) (uint64, error) {
	switch v := spec[key].(type) {
	case time.Duration:
		return uint64(v / time.Second), nil
	default:
		return specUint(spec, key)
	}
}

func specUint(spec map[string]any, key string) (uint64, error) {
	switch v := spec[key].(type) {
	case uint64:
		return v, nil
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q in beacon spec: %w", key, v, err)
		}
		return n, nil
	case nil:
		return 0, fmt.Errorf("%s missing from beacon spec", key)
	default:
		return 0, fmt.Errorf("unexpected type %T for %s in beacon spec", v, key)
	}
}
