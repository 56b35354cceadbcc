package slotclock

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marketen/duties-traffic-generator/internal/application/domain"
	"github.com/Marketen/duties-traffic-generator/internal/application/ports"
)

func fixedAt(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewRejectsBadDurations(t *testing.T) {
	_, err := New(0, 0, 0)
	require.Error(t, err)

	_, err = New(0, -time.Second, time.Second)
	require.Error(t, err)
}

func TestSlotAndDurationToNextSlot(t *testing.T) {
	genesis := 1_000 * time.Second
	c, err := New(10, genesis, 12*time.Second)
	require.NoError(t, err)

	t.Run("before genesis", func(t *testing.T) {
		clk := c.WithTimeSource(fixedAt(time.Unix(990, 0)))
		assert.Equal(t, domain.Slot(10), clk.Now())
		d, err := clk.DurationToNextSlot()
		require.NoError(t, err)
		assert.Equal(t, 10*time.Second, d)
	})

	t.Run("at genesis", func(t *testing.T) {
		clk := c.WithTimeSource(fixedAt(time.Unix(1_000, 0)))
		assert.Equal(t, domain.Slot(10), clk.Now())
		d, err := clk.DurationToNextSlot()
		require.NoError(t, err)
		assert.Equal(t, 12*time.Second, d)
	})

	t.Run("mid slot", func(t *testing.T) {
		clk := c.WithTimeSource(fixedAt(time.Unix(1_000+12*5+4, 0)))
		assert.Equal(t, domain.Slot(15), clk.Now())
		d, err := clk.DurationToNextSlot()
		require.NoError(t, err)
		assert.Equal(t, 8*time.Second, d)
	})

	t.Run("slot start", func(t *testing.T) {
		assert.Equal(t, time.Unix(1_000+24, 0), c.SlotStart(12))
		assert.Equal(t, time.Unix(1_000, 0), c.SlotStart(0))
	})
}

func TestClockBeforeUnixEpoch(t *testing.T) {
	c, err := New(0, 0, time.Second)
	require.NoError(t, err)
	clk := c.WithTimeSource(fixedAt(time.Unix(-5, 0)))

	_, err = clk.DurationToNextSlot()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrClockUnavailable))
	assert.Equal(t, domain.Slot(0), clk.Now())
}
