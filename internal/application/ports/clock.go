package ports

import (
	"errors"
	"time"

	"github.com/Marketen/duties-traffic-generator/internal/application/domain"
)

// ErrClockUnavailable is returned when the time source cannot place the
// current instant relative to the slot schedule.
var ErrClockUnavailable = errors.New("slot clock unavailable")

// SlotClock maps wall-clock time to slots. Implementations must be monotonic:
// Now never reports a slot earlier than a previously reported one.
type SlotClock interface {
	// Now returns the current slot. Before genesis it returns the genesis slot.
	Now() domain.Slot

	// DurationToNextSlot returns the time left until the next slot boundary
	// (until genesis, before genesis).
	DurationToNextSlot() (time.Duration, error)

	// SlotDuration is the fixed length of one slot.
	SlotDuration() time.Duration
}
