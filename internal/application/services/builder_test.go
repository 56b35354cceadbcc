package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marketen/duties-traffic-generator/internal/application/domain"
	"github.com/Marketen/duties-traffic-generator/internal/application/ports"
)

func TestBuilderRequiresTotalValidators(t *testing.T) {
	_, err := NewGeneratorBuilder().BuildParams()
	assert.ErrorIs(t, err, ErrTotalValidatorsNotSet)

	_, err = NewGeneratorBuilder().Build(domain.ValidatorRange(0, 4))
	assert.ErrorIs(t, err, ErrTotalValidatorsNotSet)
}

func TestBuilderDefaults(t *testing.T) {
	p, err := NewGeneratorBuilder().TotalValidators(2048).BuildParams()
	require.NoError(t, err)

	params := p.Params()
	assert.Equal(t, domain.DefaultSlotsPerEpoch, params.SlotsPerEpoch())
	assert.Equal(t, domain.DefaultAttestationSubnets, params.AttestationSubnets())
	assert.Equal(t, domain.DefaultTargetAggregators, params.TargetAggregators())
	assert.Equal(t, domain.DefaultSyncSubnetSize, params.SyncSubnetSize())
	assert.Equal(t, domain.DefaultSyncCommitteeSubnets, params.SyncCommitteeSubnets())
	assert.Equal(t, domain.DefaultEpochsPerSyncCommitteePeriod, params.EpochsPerSyncCommitteePeriod())
	assert.Equal(t, uint64(2048), params.TotalValidators())
	assert.Equal(t, domain.DefaultSlotDuration, p.Clock().SlotDuration())
}

func TestBuilderRejectsInvalidParams(t *testing.T) {
	cases := map[string]*GeneratorBuilder{
		"zero subnets":          NewGeneratorBuilder().TotalValidators(2048).AttestationSubnets(0),
		"zero aggregators":      NewGeneratorBuilder().TotalValidators(2048).TargetAggregators(0),
		"too few validators":    NewGeneratorBuilder().TotalValidators(100),
		"zero slot duration":    NewGeneratorBuilder().TotalValidators(2048).SlotClock(0, 0, 0),
		"negative genesis":      NewGeneratorBuilder().TotalValidators(2048).SlotClock(0, -time.Second, time.Second),
		"zero slots per epoch":  NewGeneratorBuilder().TotalValidators(2048).SlotsPerEpoch(0),
		"zero sync period":      NewGeneratorBuilder().TotalValidators(2048).EpochsPerSyncCommitteePeriod(0),
		"zero sync subnet size": NewGeneratorBuilder().TotalValidators(2048).SyncSubnetSize(0),
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := b.BuildParams()
			assert.ErrorIs(t, err, domain.ErrInvalidParams)
		})
	}
}

func TestBuildRejectsValidatorsOutOfRange(t *testing.T) {
	p := smallParams(t, newFakeClock(0))

	_, err := p.Build(domain.NewValidatorSet(3, 16))
	assert.ErrorIs(t, err, ErrValidatorOutOfRange)

	g, err := p.Build(domain.NewValidatorSet(3, 15))
	require.NoError(t, err)
	assert.Equal(t, 2, g.Validators().Len())
}

func TestBuildFailsFastOnBrokenClock(t *testing.T) {
	p := smallParams(t, brokenClock{})
	_, err := p.Build(domain.ValidatorRange(0, 16))
	assert.ErrorIs(t, err, ports.ErrClockUnavailable)
}

func TestZeroGeneratorParamsCannotBuild(t *testing.T) {
	_, err := GeneratorParams{}.Build(domain.ValidatorRange(0, 1))
	assert.ErrorIs(t, err, domain.ErrInvalidParams)
}

func TestParamsAreReusable(t *testing.T) {
	p := smallParams(t, newFakeClock(0))
	a, err := p.Build(domain.ValidatorRange(0, 8), WithName("a"))
	require.NoError(t, err)
	b, err := p.Build(domain.ValidatorRange(8, 16), WithName("b"))
	require.NoError(t, err)

	assert.Equal(t, "a", a.Name())
	assert.Equal(t, "b", b.Name())
	assert.Equal(t, 8, a.Validators().Len())
	assert.Equal(t, 8, b.Validators().Len())
}
