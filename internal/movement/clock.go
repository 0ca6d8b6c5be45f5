package movement

import "time"

// Clock supplies the current time. Production code uses SystemClock, whose
// readings carry Go's monotonic component so cooldown checks are immune to
// wall-clock adjustments.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }
