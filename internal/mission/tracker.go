package mission

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/aabaaiaaa/SourceNet-sub005/internal/event"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/sim"
)

// DefaultVerifyDelay is the fixed verification window between the last real
// objective completing and the mission finalizing, in simulated time.
const DefaultVerifyDelay = 3000 * time.Millisecond

// Outcome is handed to the finalize hook once obj-verify completes or the
// mission fails.
type Outcome struct {
	Mission Mission
	Success bool
}

var (
	ErrMissionActive   = errors.New("another mission is already active")
	ErrNoActiveMission = errors.New("no active mission")
	ErrUnknownMission  = errors.New("unknown mission")
)

// Tracker watches bus signals and the simulated clock to auto-complete
// objectives and enforce the verification delay. One mission is active at a
// time.
type Tracker struct {
	mu sync.Mutex

	bus       *event.Bus
	scheduler *sim.Scheduler
	speed     func() int
	gameNow   func() time.Time

	verifyDelay time.Duration
	logger      *log.Logger

	available        map[string]Mission
	active           *Mission
	history          []Mission
	awaitingScripted bool
	verifyArmed      bool
	verifyTimer      sim.TimerID

	finalize func(Outcome)
	unsubs   []func()
}

// Options wires the tracker's collaborators. Speed and GameNow come from the
// game clock; Finalize is the engine hook that applies rewards and revokes
// the network grant.
type Options struct {
	Bus         *event.Bus
	Scheduler   *sim.Scheduler
	Speed       func() int
	GameNow     func() time.Time
	VerifyDelay time.Duration
	Finalize    func(Outcome)
	Logger      *log.Logger
}

func NewTracker(opts Options) *Tracker {
	if opts.VerifyDelay <= 0 {
		opts.VerifyDelay = DefaultVerifyDelay
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	t := &Tracker{
		bus:         opts.Bus,
		scheduler:   opts.Scheduler,
		speed:       opts.Speed,
		gameNow:     opts.GameNow,
		verifyDelay: opts.VerifyDelay,
		logger:      opts.Logger,
		finalize:    opts.Finalize,
		available:   make(map[string]Mission),
	}
	t.subscribe()
	return t
}

func (t *Tracker) subscribe() {
	t.unsubs = append(t.unsubs,
		t.bus.On(event.FileSystemConnected, func(p any) {
			if c, ok := p.(event.ConnectedPayload); ok {
				t.signal(ObjectiveConnect, c.Address)
			}
		}),
		t.bus.On(event.FileOperationComplete, func(p any) {
			if f, ok := p.(event.FileOperationPayload); ok {
				t.signal(ObjectiveFileOperation, f.Target)
			}
		}),
		t.bus.On(event.NetworkScanComplete, func(p any) {
			if s, ok := p.(event.ScanPayload); ok {
				t.signal(ObjectiveScan, s.Address)
			}
		}),
		t.bus.On(event.ScriptedEventComplete, func(any) {
			t.scriptedEventComplete()
		}),
	)
}

// Close detaches the tracker from the bus and cancels any armed verification
// timer.
func (t *Tracker) Close() {
	for _, off := range t.unsubs {
		off()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelVerifyLocked()
}

// AddAvailable registers missions offered to the player.
func (t *Tracker) AddAvailable(missions ...Mission) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range missions {
		m.Status = MissionAvailable
		t.available[m.ID] = m
	}
}

// Available lists missions the player may accept.
func (t *Tracker) Available() []Mission {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Mission, 0, len(t.available))
	for _, m := range t.available {
		out = append(out, m)
	}
	return out
}

// Active returns a copy of the active mission, or nil.
func (t *Tracker) Active() *Mission {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == nil {
		return nil
	}
	m := *t.active
	m.Objectives = append([]Objective(nil), t.active.Objectives...)
	return &m
}

// History returns completed and failed missions, oldest first.
func (t *Tracker) History() []Mission {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Mission(nil), t.history...)
}

// Accept activates an available mission. The synthetic obj-verify objective
// is appended here, at registration time.
func (t *Tracker) Accept(missionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Unknown ids are reported even while a mission is active; the single-
	// active guard only applies to missions that could otherwise start.
	m, ok := t.available[missionID]
	if !ok {
		return ErrUnknownMission
	}
	if t.active != nil {
		return ErrMissionActive
	}
	delete(t.available, missionID)

	for i := range m.Objectives {
		if m.Objectives[i].Status == "" {
			m.Objectives[i].Status = StatusPending
		}
	}
	m.Objectives = append(m.Objectives, Objective{
		ID:     VerifyObjectiveID,
		Type:   ObjectiveVerify,
		Status: StatusPending,
	})
	m.Status = MissionActive
	now := t.gameNow()
	m.AcceptedAtGame = &now

	t.active = &m
	t.awaitingScripted = false
	return nil
}

// signal completes pending objectives of the given type whose target matches
// (an empty objective target matches any signal).
func (t *Tracker) signal(typ ObjectiveType, target string) {
	t.mu.Lock()
	if t.active == nil || t.active.Status != MissionActive {
		t.mu.Unlock()
		return
	}

	var completed []string
	for i := range t.active.Objectives {
		o := &t.active.Objectives[i]
		if o.Type != typ || o.Status != StatusPending {
			continue
		}
		if o.Target != "" && o.Target != target {
			continue
		}
		o.Status = StatusComplete
		completed = append(completed, o.ID)
	}
	missionID := t.active.ID
	t.mu.Unlock()

	for _, id := range completed {
		t.bus.Emit(event.ObjectiveComplete, event.ObjectivePayload{MissionID: missionID, ObjectiveID: id})
	}
	if len(completed) > 0 {
		t.evaluate()
	}
}

// evaluate decides whether the mission is clear to enter verification.
func (t *Tracker) evaluate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil || t.active.Status != MissionActive {
		return
	}
	if !t.active.realObjectivesComplete() {
		return
	}
	if t.active.ScriptedEvents && !t.awaitingScripted {
		// Narrative beats tied to objective completion must play out before
		// verification starts; wait for the explicit completion signal.
		t.awaitingScripted = true
		return
	}
	if t.active.ScriptedEvents && t.awaitingScripted {
		return
	}
	t.armVerifyLocked()
}

func (t *Tracker) scriptedEventComplete() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil || !t.awaitingScripted {
		return
	}
	t.awaitingScripted = false
	if t.active.realObjectivesComplete() {
		t.armVerifyLocked()
	}
}

// armVerifyLocked schedules obj-verify exactly once. Re-entrant effect runs
// (several objectiveComplete events landing together) hit the guard and
// skip re-arming.
func (t *Tracker) armVerifyLocked() {
	if t.verifyArmed {
		return
	}
	t.verifyArmed = true
	t.active.Status = MissionCompleting
	t.armVerifyTimerLocked(t.verifyDelay)
}

func (t *Tracker) armVerifyTimerLocked(delay time.Duration) {
	t.verifyTimer = t.scheduler.Schedule("missionVerify", t.completeVerify, delay, t.speed())
}

func (t *Tracker) cancelVerifyLocked() {
	if t.verifyArmed {
		t.scheduler.Cancel(t.verifyTimer)
		t.verifyArmed = false
	}
}

// completeVerify fires when the verification delay elapses in simulated
// time. It finalizes the mission as a success.
func (t *Tracker) completeVerify() {
	t.mu.Lock()
	if t.active == nil || t.active.Status != MissionCompleting {
		t.mu.Unlock()
		return
	}
	if o := t.active.objective(VerifyObjectiveID); o != nil {
		o.Status = StatusComplete
	}
	missionID := t.active.ID
	t.mu.Unlock()

	t.bus.Emit(event.ObjectiveComplete, event.ObjectivePayload{MissionID: missionID, ObjectiveID: VerifyObjectiveID})
	t.finalizeActive(true)
}

// FailActive finalizes the active mission as a failure.
func (t *Tracker) FailActive() error {
	t.mu.Lock()
	if t.active == nil {
		t.mu.Unlock()
		return ErrNoActiveMission
	}
	t.cancelVerifyLocked()
	t.mu.Unlock()

	t.finalizeActive(false)
	return nil
}

func (t *Tracker) finalizeActive(success bool) {
	t.mu.Lock()
	if t.active == nil {
		t.mu.Unlock()
		return
	}
	m := t.active
	if success {
		m.Status = MissionCompleted
	} else {
		m.Status = MissionFailed
	}
	m.Succeeded = success
	now := t.gameNow()
	m.CompletedAtGame = &now

	done := *m
	done.Objectives = append([]Objective(nil), m.Objectives...)
	t.history = append(t.history, done)
	t.active = nil
	t.verifyArmed = false
	t.awaitingScripted = false
	hook := t.finalize
	t.mu.Unlock()

	t.logger.Printf("mission %s finalized: success=%v", done.ID, success)
	t.bus.Emit(event.MissionCompleted, Outcome{Mission: done, Success: success})
	if hook != nil {
		hook(Outcome{Mission: done, Success: success})
	}
}

// State is the serializable mission snapshot. The verification timer is
// expressed as its remaining simulated duration.
type State struct {
	Available         []Mission `json:"available"`
	Active            *Mission  `json:"active,omitempty"`
	History           []Mission `json:"history"`
	AwaitingScripted  bool      `json:"awaitingScripted"`
	VerifyRemainingMs *int64    `json:"verifyRemainingMs,omitempty"`
}

// Snapshot captures mission state for a save. Remaining verification time is
// read from the scheduler so the delay resumes where it left off.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := State{
		History:          append([]Mission(nil), t.history...),
		AwaitingScripted: t.awaitingScripted,
	}
	for _, m := range t.available {
		st.Available = append(st.Available, m)
	}
	if t.active != nil {
		m := *t.active
		m.Objectives = append([]Objective(nil), t.active.Objectives...)
		st.Active = &m
	}
	if t.verifyArmed {
		for _, p := range t.scheduler.Pending() {
			if p.ID == t.verifyTimer {
				ms := p.RemainingGameMs
				st.VerifyRemainingMs = &ms
			}
		}
	}
	return st
}

// Restore replaces mission state from a save, re-arming the verification
// timer from its saved remaining duration.
func (t *Tracker) Restore(st State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelVerifyLocked()
	t.available = make(map[string]Mission)
	for _, m := range st.Available {
		t.available[m.ID] = m
	}
	t.history = append([]Mission(nil), st.History...)
	t.awaitingScripted = st.AwaitingScripted
	t.active = nil
	if st.Active != nil {
		m := *st.Active
		m.Objectives = append([]Objective(nil), st.Active.Objectives...)
		t.active = &m
	}

	if t.active != nil && st.VerifyRemainingMs != nil {
		t.verifyArmed = true
		t.active.Status = MissionCompleting
		t.armVerifyTimerLocked(time.Duration(*st.VerifyRemainingMs) * time.Millisecond)
	}
}
