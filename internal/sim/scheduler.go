package sim

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TimerID identifies a scheduled callback.
type TimerID string

// PendingTimer is the serializable view of an armed callback: its kind and
// how much simulated time is left. Remaining durations (not deadlines) are
// what goes into a save so timers can be re-armed after load.
type PendingTimer struct {
	ID              TimerID `json:"id"`
	Kind            string  `json:"kind"`
	RemainingGameMs int64   `json:"remainingGameMs"`
}

type scheduled struct {
	id            TimerID
	kind          string
	fn            func()
	armedAt       time.Time
	remainingGame time.Duration
	speedAtArm    int
	timer         *time.Timer
}

// Scheduler arms real timers for delays expressed in simulated time. A delay
// of d game-milliseconds at speed s fires after d/s real milliseconds. When
// the speed multiplier changes the owner must call RescheduleAll, otherwise
// every in-flight timer keeps running at the stale rate.
type Scheduler struct {
	mu      sync.Mutex
	clock   Clock
	pending map[TimerID]*scheduled
}

func NewScheduler(clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{
		clock:   clock,
		pending: make(map[TimerID]*scheduled),
	}
}

// Schedule arms fn to run after gameDelay of simulated time at the given
// speed multiplier. The kind labels the timer for save snapshots.
func (s *Scheduler) Schedule(kind string, fn func(), gameDelay time.Duration, speed int) TimerID {
	if speed < 1 {
		speed = 1
	}
	if gameDelay < 0 {
		gameDelay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := TimerID(uuid.NewString())
	rec := &scheduled{
		id:            id,
		kind:          kind,
		fn:            fn,
		armedAt:       s.clock.Now(),
		remainingGame: gameDelay,
		speedAtArm:    speed,
	}
	rec.timer = time.AfterFunc(gameDelay/time.Duration(speed), func() { s.fire(id) })
	s.pending[id] = rec
	return id
}

func (s *Scheduler) fire(id TimerID) {
	s.mu.Lock()
	rec, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()

	// A concurrent Cancel or RescheduleAll may have removed or re-armed the
	// record; in that case this firing is stale and must not run.
	if ok {
		rec.fn()
	}
}

// Cancel removes the record and stops the underlying real timer. Unknown and
// already-fired ids are a no-op.
func (s *Scheduler) Cancel(id TimerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.pending[id]
	if !ok {
		return
	}
	rec.timer.Stop()
	delete(s.pending, id)
}

// Active reports whether id is still armed.
func (s *Scheduler) Active(id TimerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}

// RescheduleAll re-arms every pending callback for a new speed multiplier.
// For each record the simulated time already served is credited at the speed
// it was armed with, and the remainder is re-armed at newSpeed.
func (s *Scheduler) RescheduleAll(newSpeed int) {
	if newSpeed < 1 {
		newSpeed = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	for _, rec := range s.pending {
		elapsedGame := now.Sub(rec.armedAt) * time.Duration(rec.speedAtArm)
		remaining := rec.remainingGame - elapsedGame
		if remaining < 0 {
			remaining = 0
		}

		rec.timer.Stop()
		rec.armedAt = now
		rec.remainingGame = remaining
		rec.speedAtArm = newSpeed

		id := rec.id
		rec.timer = time.AfterFunc(remaining/time.Duration(newSpeed), func() { s.fire(id) })
	}
}

// Pending returns the serializable state of every armed timer, with the
// simulated time already served at the current instant credited off.
func (s *Scheduler) Pending() []PendingTimer {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	out := make([]PendingTimer, 0, len(s.pending))
	for _, rec := range s.pending {
		elapsedGame := now.Sub(rec.armedAt) * time.Duration(rec.speedAtArm)
		remaining := rec.remainingGame - elapsedGame
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, PendingTimer{
			ID:              rec.id,
			Kind:            rec.kind,
			RemainingGameMs: remaining.Milliseconds(),
		})
	}
	return out
}

// CancelAll stops and drops every pending timer. Used when tearing a game
// down before loading a save.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.pending {
		rec.timer.Stop()
		delete(s.pending, id)
	}
}
