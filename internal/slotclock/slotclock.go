// Package slotclock maps system time to slots.
package slotclock

import (
	"fmt"
	"time"

	"github.com/Marketen/duties-traffic-generator/internal/application/domain"
	"github.com/Marketen/duties-traffic-generator/internal/application/ports"
)

var now = time.Now

// SystemTimeSlotClock is a slot clock driven by the system time. Genesis is
// expressed as the duration since the Unix epoch at which genesisSlot starts.
type SystemTimeSlotClock struct {
	genesisSlot  domain.Slot
	genesis      time.Duration
	slotDuration time.Duration
	now          func() time.Time
}

var _ ports.SlotClock = (*SystemTimeSlotClock)(nil)

// New returns a clock. slotDuration must be positive.
func New(genesisSlot domain.Slot, genesis, slotDuration time.Duration) (*SystemTimeSlotClock, error) {
	if slotDuration <= 0 {
		return nil, fmt.Errorf("slot duration must be positive, got %s", slotDuration)
	}
	if genesis < 0 {
		return nil, fmt.Errorf("genesis must not be before the unix epoch, got %s", genesis)
	}
	return &SystemTimeSlotClock{
		genesisSlot:  genesisSlot,
		genesis:      genesis,
		slotDuration: slotDuration,
		now:          now,
	}, nil
}

// WithTimeSource returns a copy of the clock reading time from fn.
func (c *SystemTimeSlotClock) WithTimeSource(fn func() time.Time) *SystemTimeSlotClock {
	cp := *c
	cp.now = fn
	return &cp
}

// sinceUnixEpoch returns the current time as a duration since the Unix epoch.
func (c *SystemTimeSlotClock) sinceUnixEpoch() (time.Duration, error) {
	d := time.Duration(c.now().UnixNano())
	if d < 0 {
		return 0, fmt.Errorf("%w: system time is before the unix epoch", ports.ErrClockUnavailable)
	}
	return d, nil
}

// Now returns the current slot, or the genesis slot before genesis.
func (c *SystemTimeSlotClock) Now() domain.Slot {
	t, err := c.sinceUnixEpoch()
	if err != nil || t < c.genesis {
		return c.genesisSlot
	}
	return c.genesisSlot + domain.Slot((t-c.genesis)/c.slotDuration)
}

func (c *SystemTimeSlotClock) DurationToNextSlot() (time.Duration, error) {
	t, err := c.sinceUnixEpoch()
	if err != nil {
		return 0, err
	}
	if t < c.genesis {
		return c.genesis - t, nil
	}
	sinceSlotStart := (t - c.genesis) % c.slotDuration
	return c.slotDuration - sinceSlotStart, nil
}

func (c *SystemTimeSlotClock) SlotDuration() time.Duration {
	return c.slotDuration
}

// SlotStart returns the instant at which the slot begins.
func (c *SystemTimeSlotClock) SlotStart(slot domain.Slot) time.Time {
	if slot < c.genesisSlot {
		return time.Unix(0, int64(c.genesis))
	}
	offset := time.Duration(slot-c.genesisSlot) * c.slotDuration
	return time.Unix(0, int64(c.genesis+offset))
}
