package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParams(t *testing.T) {
	tests := []struct {
		name    string
		spe     uint64
		att     uint64
		syncSz  uint64
		syncNet uint64
		aggs    uint64
		total   uint64
		period  uint64
		wantErr string
	}{
		{"mainnet like", 32, 64, 128, 4, 16, 765878, 256, ""},
		{"tiny", 2, 8, 1, 1, 1, 50, 256, ""},
		{"exact sync fit", 1, 1, 25, 2, 1, 50, 1, ""},
		{"zero slots per epoch", 0, 64, 128, 4, 16, 765878, 256, "slots_per_epoch must be positive"},
		{"zero total validators", 32, 64, 128, 4, 16, 0, 256, "total_validators must be positive"},
		{"zero attestation subnets", 32, 0, 128, 4, 16, 765878, 256, "attestation_subnets must be positive"},
		{"zero sync subnets", 32, 64, 128, 0, 16, 765878, 256, "sync_committee_subnets must be positive"},
		{"zero sync subnet size", 32, 64, 0, 4, 16, 765878, 256, "sync_subnet_size must be positive"},
		{"zero aggregators", 32, 64, 128, 4, 0, 765878, 256, "target_aggregators must be positive"},
		{"zero period", 32, 64, 128, 4, 16, 765878, 0, "epochs_per_sync_committee_period must be positive"},
		{"sync committee too big", 32, 64, 128, 4, 16, 511, 256, "not enough validators to reach the sync committee size"},
		{"attestation aggregators too many", 32, 64, 1, 4, 16, 1023, 256, "not enough validators to reach the target aggregators in the attestation subnets"},
		{"sync aggregators too many", 32, 1, 1, 8, 16, 127, 256, "not enough validators to reach the target aggregators in the sync committees"},
		{"sync size overflow", 32, 64, math.MaxUint64, 2, 16, 1024, 256, "sync committee size is too large"},
		{"attestation aggregators overflow", 32, math.MaxUint64, 1, 1, 2, 1024, 256, "total attestation aggregators across the network is too large"},
		{"sync aggregators overflow", 32, 1, 1, math.MaxUint64 / 2, 4, math.MaxUint64, 256, "target sync aggregators across the network is too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewParams(tt.spe, tt.att, tt.syncSz, tt.syncNet, tt.aggs, tt.total, tt.period)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.spe, p.SlotsPerEpoch())
				assert.Equal(t, tt.total, p.TotalValidators())
				assert.False(t, p.IsZero())
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidParams))
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, p.IsZero())
		})
	}
}

func TestNewParamsReportsFirstViolation(t *testing.T) {
	// every invariant is broken, slots_per_epoch is checked first
	_, err := NewParams(0, 0, 0, 0, 0, 0, 0)
	require.ErrorContains(t, err, "slots_per_epoch")

	// positivity holds, sync size and aggregator counts both too large
	_, err = NewParams(32, 64, 100, 4, 16, 300, 256)
	require.ErrorContains(t, err, "sync committee size")
}

func TestParamsEpochArithmetic(t *testing.T) {
	p, err := NewParams(32, 64, 128, 4, 16, 100_000, 256)
	require.NoError(t, err)

	assert.Equal(t, Epoch(0), p.EpochOf(31))
	assert.Equal(t, Epoch(1), p.EpochOf(32))
	assert.Equal(t, Slot(64), p.EpochStartSlot(2))
	assert.Equal(t, SyncCommitteePeriod(0), p.SyncCommitteePeriodOf(32*256-1))
	assert.Equal(t, SyncCommitteePeriod(1), p.SyncCommitteePeriodOf(32*256))
	assert.Equal(t, uint64(512), p.SyncCommitteeSize())
}

func TestValidatorSet(t *testing.T) {
	s := NewValidatorSet(5, 1, 3, 3, 1)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []ValidatorIndex{1, 3, 5}, s.Indices())
	assert.True(t, s.Contains(3))
	assert.False(t, s.Contains(4))

	highest, ok := s.Max()
	require.True(t, ok)
	assert.Equal(t, ValidatorIndex(5), highest)

	_, ok = NewValidatorSet().Max()
	assert.False(t, ok)

	r := ValidatorRange(10, 15)
	assert.Equal(t, []ValidatorIndex{10, 11, 12, 13, 14}, r.Indices())
	assert.Equal(t, 0, ValidatorRange(3, 3).Len())
}

func TestValidatorSetSplit(t *testing.T) {
	s := ValidatorRange(0, 10)
	parts := s.Split(3)
	require.Len(t, parts, 3)
	assert.Equal(t, []ValidatorIndex{0, 1, 2, 3}, parts[0].Indices())
	assert.Equal(t, []ValidatorIndex{4, 5, 6}, parts[1].Indices())
	assert.Equal(t, []ValidatorIndex{7, 8, 9}, parts[2].Indices())

	parts = ValidatorRange(0, 2).Split(4)
	require.Len(t, parts, 4)
	total := 0
	for _, p := range parts {
		total += p.Len()
	}
	assert.Equal(t, 2, total)
	assert.Nil(t, s.Split(0))
}
