package reputation

import (
	"math"
	"sync"
	"time"

	"github.com/aabaaiaaa/SourceNet-sub005/internal/sim"
)

// Tier bounds. Tier 1 is terminal-risk; reaching it arms the termination
// countdown. Tier 11 is the ceiling.
const (
	MinTier      = 1
	MaxTier      = 11
	StartingTier = 5
)

// TerminationWindow is how long a tier-1 operative has to recover before the
// agency lets them go.
const TerminationWindow = 10 * time.Minute

// Tier is a read-only row of the reputation table.
type Tier struct {
	Name             string   `json:"name"`
	PayoutMultiplier float64  `json:"payoutMultiplier"`
	ClientTypes      []string `json:"clientTypes"`
}

// tiers is keyed 1..11 (index 0 unused).
var tiers = [MaxTier + 1]Tier{
	1:  {Name: "Liability", PayoutMultiplier: 0.50, ClientTypes: []string{"individual"}},
	2:  {Name: "Probationary", PayoutMultiplier: 0.65, ClientTypes: []string{"individual"}},
	3:  {Name: "Junior Operative", PayoutMultiplier: 0.80, ClientTypes: []string{"individual", "smallBusiness"}},
	4:  {Name: "Operative", PayoutMultiplier: 0.90, ClientTypes: []string{"individual", "smallBusiness"}},
	5:  {Name: "Contractor", PayoutMultiplier: 1.00, ClientTypes: []string{"individual", "smallBusiness", "corporate"}},
	6:  {Name: "Senior Contractor", PayoutMultiplier: 1.15, ClientTypes: []string{"individual", "smallBusiness", "corporate"}},
	7:  {Name: "Specialist", PayoutMultiplier: 1.30, ClientTypes: []string{"smallBusiness", "corporate", "financial"}},
	8:  {Name: "Veteran", PayoutMultiplier: 1.50, ClientTypes: []string{"corporate", "financial", "government"}},
	9:  {Name: "Elite", PayoutMultiplier: 1.70, ClientTypes: []string{"corporate", "financial", "government"}},
	10: {Name: "Shadow Broker", PayoutMultiplier: 1.85, ClientTypes: []string{"financial", "government", "military"}},
	11: {Name: "Legend", PayoutMultiplier: 2.00, ClientTypes: []string{"financial", "government", "military", "blackSite"}},
}

// Lookup returns the tier row for a 1..11 key, clamping out-of-range keys.
func Lookup(tier int) Tier {
	return tiers[Clamp(tier)]
}

// Clamp forces a tier into [1, 11].
func Clamp(tier int) int {
	if tier < MinTier {
		return MinTier
	}
	if tier > MaxTier {
		return MaxTier
	}
	return tier
}

// Payout applies the tier multiplier to a base payout, floored.
func Payout(basePayout, tier int) int {
	return int(math.Floor(float64(basePayout) * Lookup(tier).PayoutMultiplier))
}

// Next computes the tier after a mission outcome: success climbs one tier,
// failure drops one, clamped at both ends.
func Next(success bool, currentTier int) int {
	if success {
		return Clamp(currentTier + 1)
	}
	return Clamp(currentTier - 1)
}

// Warning classifies a tier transition into the notification it should
// produce.
type Warning string

const (
	WarningNone        Warning = ""
	WarningPerformance Warning = "performance-plan"
	WarningTermination Warning = "final-termination"
	WarningRecovered   Warning = "performance-improved"
)

// WarningFor is a pure transition classifier over (oldTier, newTier).
func WarningFor(oldTier, newTier int) Warning {
	switch {
	case newTier == MinTier && oldTier > MinTier:
		return WarningTermination
	case newTier == MinTier+1 && oldTier != MinTier+1 && oldTier != MinTier:
		return WarningPerformance
	case oldTier == MinTier && newTier > MinTier:
		return WarningRecovered
	default:
		return WarningNone
	}
}

// CountdownStatus mirrors the banking countdown outcomes.
type CountdownStatus int

const (
	CountdownRunning CountdownStatus = iota
	CountdownCancelled
	CountdownExpired
)

// UpdateTerminationCountdown refreshes the countdown against the simulated
// now. Climbing above tier 1 cancels it; expiry is terminal.
func UpdateTerminationCountdown(c *sim.Countdown, now time.Time, tier int) (*sim.Countdown, CountdownStatus) {
	if c == nil {
		return nil, CountdownCancelled
	}
	if tier > MinTier {
		return nil, CountdownCancelled
	}
	c.Refresh(now)
	if c.RemainingSeconds <= 0 {
		return nil, CountdownExpired
	}
	return c, CountdownRunning
}

// Tracker owns the mutable reputation state: the current tier, the
// termination countdown, and the send-once warning flags.
type Tracker struct {
	mu        sync.Mutex
	tier      int
	window    time.Duration
	countdown *sim.Countdown
	sent      map[Warning]bool
}

// NewTracker starts at the given tier. A window of 0 or less selects the
// default TerminationWindow.
func NewTracker(tier int, window time.Duration) *Tracker {
	if window <= 0 {
		window = TerminationWindow
	}
	return &Tracker{
		tier:   Clamp(tier),
		window: window,
		sent:   make(map[Warning]bool),
	}
}

func (t *Tracker) Tier() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tier
}

// Countdown returns a copy of the active termination countdown, or nil.
func (t *Tracker) Countdown() *sim.Countdown {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.countdown == nil {
		return nil
	}
	c := *t.countdown
	return &c
}

// SetTier overwrites the tier directly (debug/scenario facility).
func (t *Tracker) SetTier(tier int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tier = Clamp(tier)
}

// ApplyOutcome moves the tier for a mission outcome and returns the warning
// to send, if any. Entering tier 1 arms the termination countdown.
func (t *Tracker) ApplyOutcome(success bool, now time.Time) Warning {
	t.mu.Lock()
	defer t.mu.Unlock()

	oldTier := t.tier
	t.tier = Next(success, oldTier)

	if t.tier == MinTier && t.countdown == nil {
		t.countdown = sim.NewCountdown(now, t.window)
	}

	t.resetFlagsLocked()
	w := WarningFor(oldTier, t.tier)
	if w == WarningNone || t.sent[w] {
		return WarningNone
	}
	t.sent[w] = true
	return w
}

// Tick updates the termination countdown; a true result means the window
// expired and the run is over.
func (t *Tracker) Tick(now time.Time) (Warning, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.countdown == nil {
		return WarningNone, false
	}
	updated, status := UpdateTerminationCountdown(t.countdown, now, t.tier)
	t.countdown = updated
	switch status {
	case CountdownExpired:
		return WarningNone, true
	case CountdownCancelled:
		t.resetFlagsLocked()
		if t.sent[WarningRecovered] {
			return WarningNone, false
		}
		t.sent[WarningRecovered] = true
		return WarningRecovered, false
	}
	return WarningNone, false
}

// resetFlagsLocked re-arms warnings whose triggering condition has reversed.
func (t *Tracker) resetFlagsLocked() {
	if t.tier > MinTier+1 {
		delete(t.sent, WarningPerformance)
	}
	if t.tier > MinTier {
		delete(t.sent, WarningTermination)
	}
	if t.tier == MinTier {
		delete(t.sent, WarningRecovered)
	}
}

// State is the serializable reputation snapshot.
type State struct {
	Tier                 int       `json:"tier"`
	CountdownRemainingMs *int64    `json:"countdownRemainingMs,omitempty"`
	SentWarnings         []Warning `json:"sentWarnings"`
}

func (t *Tracker) Snapshot(now time.Time) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := State{Tier: t.tier}
	for w := range t.sent {
		st.SentWarnings = append(st.SentWarnings, w)
	}
	if t.countdown != nil {
		c := *t.countdown
		c.Refresh(now)
		ms := int64(c.RemainingSeconds) * 1000
		st.CountdownRemainingMs = &ms
	}
	return st
}

func (t *Tracker) Restore(st State, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if st.Tier == 0 {
		st.Tier = StartingTier
	}
	t.tier = Clamp(st.Tier)
	t.sent = make(map[Warning]bool)
	for _, w := range st.SentWarnings {
		t.sent[w] = true
	}
	t.countdown = nil
	if st.CountdownRemainingMs != nil {
		t.countdown = sim.RestoreCountdown(now, time.Duration(*st.CountdownRemainingMs)*time.Millisecond)
	}
}
