package sim

import (
	"fmt"
	"sync"
	"time"
)

// Screen states the game moves through. The simulated clock only advances on
// the desktop, with one exception: a reboot flagged as active is an
// in-fiction event and the clock keeps running through its animation.
type Screen string

const (
	ScreenBoot    Screen = "boot"
	ScreenLogin   Screen = "login"
	ScreenDesktop Screen = "desktop"
	ScreenReboot  Screen = "reboot"
)

// TickFunc receives the simulated time after each one-second advance.
type TickFunc func(now time.Time)

const tickQuantum = time.Second

// GameClock advances a simulated timestamp in fixed one-second increments at
// a real-time cadence of 1s divided by the speed multiplier. It owns the
// speed value every Scheduler timer depends on: SetSpeed is the sole writer
// and always triggers RescheduleAll.
type GameClock struct {
	mu           sync.Mutex
	current      time.Time
	speed        int
	paused       bool
	screen       Screen
	activeReboot bool

	allowedSpeeds map[int]bool
	scheduler     *Scheduler
	onTick        TickFunc
	onSpeed       func(speed int)

	timer   *time.Timer
	running bool
	gen     int
}

// NewGameClock starts suspended on the boot screen at the given simulated
// start time. allowedSpeeds defaults to {1, 10, 100}.
func NewGameClock(start time.Time, scheduler *Scheduler, allowedSpeeds []int) *GameClock {
	allowed := make(map[int]bool)
	if len(allowedSpeeds) == 0 {
		allowedSpeeds = []int{1, 10, 100}
	}
	for _, s := range allowedSpeeds {
		if s >= 1 {
			allowed[s] = true
		}
	}
	return &GameClock{
		current:       start,
		speed:         1,
		screen:        ScreenBoot,
		allowedSpeeds: allowed,
		scheduler:     scheduler,
	}
}

// OnTick registers the single tick handler. The engine fans out to its
// subsystems from there so each tick reads one consistent snapshot.
func (c *GameClock) OnTick(fn TickFunc) {
	c.mu.Lock()
	c.onTick = fn
	c.mu.Unlock()
}

// OnSpeedChange registers a notification hook invoked after a successful
// SetSpeed, outside the clock lock.
func (c *GameClock) OnSpeedChange(fn func(speed int)) {
	c.mu.Lock()
	c.onSpeed = fn
	c.mu.Unlock()
}

// Now returns the current simulated timestamp.
func (c *GameClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Speed returns the current multiplier.
func (c *GameClock) Speed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// SetTime overwrites the simulated timestamp. Used by the save loader and
// the scenario facility, never during normal play.
func (c *GameClock) SetTime(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// SetSpeed validates the multiplier, swaps it, reschedules every pending
// Scheduler timer, and restarts the tick interval at the new cadence.
func (c *GameClock) SetSpeed(speed int) error {
	c.mu.Lock()
	if !c.allowedSpeeds[speed] {
		c.mu.Unlock()
		return fmt.Errorf("unsupported speed multiplier: %d", speed)
	}
	c.speed = speed
	if c.running {
		c.rearmLocked()
	}
	hook := c.onSpeed
	c.mu.Unlock()

	// Timers armed before the change would otherwise keep converting game
	// time to real time at the old rate.
	if c.scheduler != nil {
		c.scheduler.RescheduleAll(speed)
	}
	if hook != nil {
		hook(speed)
	}
	return nil
}

// Pause stops the tick interval without resetting the simulated time.
func (c *GameClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
	c.stopLocked()
}

// Resume restarts the tick interval if the current screen permits it.
func (c *GameClock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
	c.syncRunningLocked()
}

// Paused reports the explicit pause flag (screen suspension is separate).
func (c *GameClock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// EnterScreen records the screen the game is on and suspends or resumes the
// clock accordingly.
func (c *GameClock) EnterScreen(s Screen) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.screen = s
	c.syncRunningLocked()
}

// SetActiveReboot flags the current reboot transition as in-fiction, letting
// the clock keep advancing through the reboot screen.
func (c *GameClock) SetActiveReboot(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeReboot = active
	c.syncRunningLocked()
}

// Stop halts the clock entirely. Used at shutdown and before a load.
func (c *GameClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *GameClock) shouldRunLocked() bool {
	if c.paused {
		return false
	}
	switch c.screen {
	case ScreenDesktop:
		return true
	case ScreenReboot:
		return c.activeReboot
	default:
		return false
	}
}

func (c *GameClock) syncRunningLocked() {
	if c.shouldRunLocked() {
		if !c.running {
			c.rearmLocked()
		}
		return
	}
	c.stopLocked()
}

func (c *GameClock) stopLocked() {
	c.running = false
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *GameClock) rearmLocked() {
	c.running = true
	c.gen++
	gen := c.gen
	if c.timer != nil {
		c.timer.Stop()
	}
	period := time.Second / time.Duration(c.speed)
	c.timer = time.AfterFunc(period, func() { c.tick(gen) })
}

func (c *GameClock) tick(gen int) {
	c.mu.Lock()
	if gen != c.gen || !c.running {
		// Stale timer from before a pause, stop, or speed change.
		c.mu.Unlock()
		return
	}
	c.current = c.current.Add(tickQuantum)
	now := c.current
	fn := c.onTick
	c.rearmLocked()
	c.mu.Unlock()

	if fn != nil {
		fn(now)
	}
}
