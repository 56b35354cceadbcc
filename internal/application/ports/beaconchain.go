package ports

import (
	"context"

	"github.com/Marketen/duties-traffic-generator/internal/application/domain"
)

// BeaconChainAdapter is the hexagonal port for reading a live network's
// configuration. The generator only uses it to seed its parameters.
type BeaconChainAdapter interface {
	// GetNetworkProfile returns genesis time, slot timing and the number of
	// active validators known by the node.
	GetNetworkProfile(ctx context.Context) (domain.NetworkProfile, error)
}
