package sim

import "time"

// Countdown is the shared shape for the bankruptcy and reputation-termination
// windows. Remaining seconds are recomputed from the simulated clock on every
// tick; negative remainders clamp to zero and count as expired.
type Countdown struct {
	StartTime        time.Time `json:"startTime"`
	EndTime          time.Time `json:"endTime"`
	RemainingSeconds int       `json:"remainingSeconds"`
}

func NewCountdown(now time.Time, window time.Duration) *Countdown {
	c := &Countdown{StartTime: now, EndTime: now.Add(window)}
	c.Refresh(now)
	return c
}

// Refresh recomputes RemainingSeconds against the simulated now.
func (c *Countdown) Refresh(now time.Time) {
	remaining := int(c.EndTime.Sub(now) / time.Second)
	if remaining < 0 {
		remaining = 0
	}
	c.RemainingSeconds = remaining
}

// Expired reports whether the window has fully elapsed at now.
func (c *Countdown) Expired(now time.Time) bool {
	return !now.Before(c.EndTime)
}

// RestoreCountdown rebuilds a countdown from a saved remaining duration,
// anchored at the simulated time the save is loaded into.
func RestoreCountdown(now time.Time, remaining time.Duration) *Countdown {
	if remaining < 0 {
		remaining = 0
	}
	return NewCountdown(now, remaining)
}
