package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Marketen/duties-traffic-generator/internal/application/domain"
	"github.com/Marketen/duties-traffic-generator/internal/logger"
)

// Network simulates several nodes sharing one set of parameters. Each node
// owns a contiguous disjoint range of the validators.
type Network struct {
	generators []*Generator
}

// NewNetwork splits validators across nodes generators. Options apply to every
// generator; each one is named after its node.
func NewNetwork(params GeneratorParams, validators domain.ValidatorSet, nodes int, opts ...GeneratorOption) (*Network, error) {
	if nodes < 1 {
		return nil, fmt.Errorf("%w: need at least one node, got %d", domain.ErrInvalidParams, nodes)
	}
	if validators.Len() < nodes {
		return nil, fmt.Errorf("%w: %d validators cannot be split across %d nodes", domain.ErrInvalidParams, validators.Len(), nodes)
	}

	parts := validators.Split(nodes)
	generators := make([]*Generator, 0, len(parts))
	for i, part := range parts {
		nodeOpts := append([]GeneratorOption{WithName(fmt.Sprintf("node-%d", i))}, opts...)
		g, err := params.Build(part, nodeOpts...)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		generators = append(generators, g)
	}
	return &Network{generators: generators}, nil
}

func (n *Network) Generators() []*Generator { return n.generators }

// Run drains every generator into the emitter until ctx is done or one of
// them fails. Cancellation is not an error.
func (n *Network) Run(ctx context.Context, emitter *Emitter) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, gen := range n.generators {
		logger.Info("Starting %s with %d validators", gen.Name(), gen.Validators().Len())
		g.Go(func() error {
			if err := emitter.Run(ctx, gen); err != nil {
				return fmt.Errorf("%s: %w", gen.Name(), err)
			}
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
