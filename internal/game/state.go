package game

import (
	"errors"
	"time"

	"github.com/aabaaiaaa/SourceNet-sub005/internal/save"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/sim"
)

var ErrNoStore = errors.New("no save store configured")

// Snapshot captures the whole simulation at the current simulated time.
// Countdowns and the pending verification delay are stored as remaining
// durations so a later load can re-arm them against a fresh wall clock.
func (e *Engine) Snapshot() save.Snapshot {
	now := e.Clock.Now()

	e.mu.Lock()
	gameOver, why := e.gameOver, e.gameOverWhy
	windows := append([]save.Window(nil), e.windows...)
	e.mu.Unlock()

	return save.Snapshot{
		PlayerID:    e.playerID,
		SavedAt:     time.Now().UTC(),
		GameTime:    now,
		Speed:       e.Clock.Speed(),
		Paused:      e.Clock.Paused(),
		GameOver:    gameOver,
		GameOverWhy: why,
		Bank:        e.Ledger.Snapshot(now),
		Reputation:  e.Reputation.Snapshot(now),
		Missions:    e.Missions.Snapshot(),
		Network:     e.Network.Snapshot(),
		Bandwidth:   e.Bandwidth.Snapshot(now),
		Windows:     windows,
	}
}

// SaveGame writes the current snapshot into the named slot.
func (e *Engine) SaveGame(slot string) error {
	if e.store == nil {
		return ErrNoStore
	}
	return e.store.Save(e.playerID, slot, e.Snapshot())
}

// LoadGame replaces the running simulation with the named slot's snapshot.
// The clock is held paused while subsystems restore; speed is applied before
// mission restore so the re-armed verification timer scales correctly.
func (e *Engine) LoadGame(slot string) error {
	if e.store == nil {
		return ErrNoStore
	}
	snap, err := e.store.Load(e.playerID, slot)
	if err != nil {
		return err
	}
	e.restore(snap)
	return nil
}

func (e *Engine) restore(snap save.Snapshot) {
	e.Clock.Pause()
	e.Scheduler.CancelAll()

	e.mu.Lock()
	e.gameOver = snap.GameOver
	e.gameOverWhy = snap.GameOverWhy
	e.windows = snap.Windows
	e.mu.Unlock()

	e.Clock.SetTime(snap.GameTime)
	if err := e.Clock.SetSpeed(snap.Speed); err != nil {
		// Older save with a speed no longer allowed: fall back to realtime.
		_ = e.Clock.SetSpeed(1)
	}

	e.Ledger.Restore(snap.Bank, snap.GameTime)
	e.Reputation.Restore(snap.Reputation, snap.GameTime)
	e.Network.Restore(snap.Network)
	e.Bandwidth.Restore(snap.Bandwidth, snap.GameTime)
	e.Missions.Restore(snap.Missions)

	e.Clock.EnterScreen(sim.ScreenDesktop)
	if !snap.Paused && !snap.GameOver {
		e.Clock.Resume()
	}
}

// Slots lists the player's save slots.
func (e *Engine) Slots() ([]string, error) {
	if e.store == nil {
		return nil, ErrNoStore
	}
	return e.store.Slots(e.playerID)
}

// Scenario is a debug overlay applied directly to live state, bypassing the
// normal pipelines. Nil fields are left untouched.
type Scenario struct {
	Credits                *int       `json:"credits,omitempty" yaml:"credits,omitempty"`
	Tier                   *int       `json:"tier,omitempty" yaml:"tier,omitempty"`
	BankruptcyRemainingMs  *int64     `json:"bankruptcyRemainingMs,omitempty" yaml:"bankruptcy_remaining_ms,omitempty"`
	TerminationRemainingMs *int64     `json:"terminationRemainingMs,omitempty" yaml:"termination_remaining_ms,omitempty"`
	GameTime               *time.Time `json:"gameTime,omitempty" yaml:"game_time,omitempty"`
	Speed                  *int       `json:"speed,omitempty" yaml:"speed,omitempty"`
}

// ApplyScenario force-sets the targeted state. Credits are adjusted on the
// primary account; countdowns are installed with the given remaining time.
func (e *Engine) ApplyScenario(sc Scenario) error {
	if sc.GameTime != nil {
		e.Clock.SetTime(*sc.GameTime)
	}
	if sc.Speed != nil {
		if err := e.Clock.SetSpeed(*sc.Speed); err != nil {
			return err
		}
	}
	now := e.Clock.Now()

	if sc.Credits != nil || sc.BankruptcyRemainingMs != nil {
		st := e.Ledger.Snapshot(now)
		if sc.Credits != nil && len(st.Accounts) > 0 {
			st.Accounts[0].Balance = *sc.Credits
		}
		if sc.BankruptcyRemainingMs != nil {
			st.CountdownRemainingMs = sc.BankruptcyRemainingMs
		}
		e.Ledger.Restore(st, now)
	}

	if sc.Tier != nil || sc.TerminationRemainingMs != nil {
		st := e.Reputation.Snapshot(now)
		if sc.Tier != nil {
			st.Tier = *sc.Tier
		}
		if sc.TerminationRemainingMs != nil {
			st.CountdownRemainingMs = sc.TerminationRemainingMs
		}
		e.Reputation.Restore(st, now)
	}

	return nil
}
