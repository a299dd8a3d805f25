package mission

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aabaaiaaa/SourceNet-sub005/internal/event"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/sim"
)

var gameEpoch = time.Date(2087, 3, 14, 9, 0, 0, 0, time.UTC)

type trackerFixture struct {
	bus       *event.Bus
	scheduler *sim.Scheduler
	tracker   *Tracker

	mu       sync.Mutex
	speed    int
	outcomes []Outcome
}

func (f *trackerFixture) setSpeed(s int) {
	f.mu.Lock()
	f.speed = s
	f.mu.Unlock()
	f.scheduler.RescheduleAll(s)
}

func (f *trackerFixture) outcomeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.outcomes)
}

func newFixture(t *testing.T, verifyDelay time.Duration) *trackerFixture {
	t.Helper()
	f := &trackerFixture{
		bus:       event.NewBus(nil),
		scheduler: sim.NewScheduler(sim.RealClock{}),
		speed:     1,
	}
	f.tracker = NewTracker(Options{
		Bus:         f.bus,
		Scheduler:   f.scheduler,
		Speed:       func() int { f.mu.Lock(); defer f.mu.Unlock(); return f.speed },
		GameNow:     func() time.Time { return gameEpoch },
		VerifyDelay: verifyDelay,
		Finalize: func(o Outcome) {
			f.mu.Lock()
			f.outcomes = append(f.outcomes, o)
			f.mu.Unlock()
		},
	})
	t.Cleanup(f.tracker.Close)
	return f
}

func testMission(scripted bool) Mission {
	return Mission{
		ID:         "m-heist",
		Title:      "Copy the payroll records",
		BasePayout: 4000,
		Network:    NetworkGrant{Address: "10.44.0.9", RevokeOnComplete: true},
		Objectives: []Objective{
			{ID: "obj-1", Type: ObjectiveConnect, Target: "10.44.0.9"},
			{ID: "obj-2", Type: ObjectiveFileOperation, Target: "payroll.db"},
		},
		ScriptedEvents: scripted,
	}
}

func waitForOutcome(t *testing.T, f *trackerFixture, within time.Duration) Outcome {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if f.outcomeCount() > 0 {
			f.mu.Lock()
			defer f.mu.Unlock()
			return f.outcomes[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("mission did not finalize in time")
	return Outcome{}
}

func TestAccept_AppendsVerifyObjectiveAndEnforcesSingleActive(t *testing.T) {
	f := newFixture(t, DefaultVerifyDelay)
	f.tracker.AddAvailable(testMission(false))
	other := testMission(false)
	other.ID = "m-other"
	f.tracker.AddAvailable(other)

	require.NoError(t, f.tracker.Accept("m-heist"))
	assert.ErrorIs(t, f.tracker.Accept("m-other"), ErrMissionActive)
	assert.ErrorIs(t, f.tracker.Accept("m-missing"), ErrUnknownMission)

	active := f.tracker.Active()
	require.NotNil(t, active)
	assert.Equal(t, MissionActive, active.Status)
	require.Len(t, active.Objectives, 3)
	assert.Equal(t, VerifyObjectiveID, active.Objectives[2].ID)
	assert.Equal(t, StatusPending, active.Objectives[2].Status)
}

func TestObjectives_AutoCompleteFromBusSignals(t *testing.T) {
	f := newFixture(t, 5*time.Second)
	f.tracker.AddAvailable(testMission(false))
	require.NoError(t, f.tracker.Accept("m-heist"))

	var completed []string
	f.bus.On(event.ObjectiveComplete, func(p any) {
		completed = append(completed, p.(event.ObjectivePayload).ObjectiveID)
	})

	// Wrong target: no completion.
	f.bus.Emit(event.FileSystemConnected, event.ConnectedPayload{Address: "10.0.0.1"})
	assert.Empty(t, completed)

	f.bus.Emit(event.FileSystemConnected, event.ConnectedPayload{Address: "10.44.0.9"})
	assert.Equal(t, []string{"obj-1"}, completed)

	// One real objective still pending: verification must not be armed yet.
	active := f.tracker.Active()
	assert.Equal(t, MissionActive, active.Status)

	f.bus.Emit(event.FileOperationComplete, event.FileOperationPayload{Target: "payroll.db"})
	assert.Equal(t, []string{"obj-1", "obj-2"}, completed)
	assert.Equal(t, MissionCompleting, f.tracker.Active().Status)

	// obj-verify completes after the delay, not immediately.
	assert.Equal(t, 0, f.outcomeCount())
	f.tracker.FailActive() // cleanup without waiting 5s
}

func TestVerification_CompletesAfterSimulatedDelay(t *testing.T) {
	// 3000 simulated ms at 100x is 30 real ms.
	f := newFixture(t, DefaultVerifyDelay)
	f.setSpeed(100)
	f.tracker.AddAvailable(testMission(false))
	require.NoError(t, f.tracker.Accept("m-heist"))

	f.bus.Emit(event.FileSystemConnected, event.ConnectedPayload{Address: "10.44.0.9"})
	f.bus.Emit(event.FileOperationComplete, event.FileOperationPayload{Target: "payroll.db"})

	o := waitForOutcome(t, f, 3*time.Second)
	assert.True(t, o.Success)
	assert.Equal(t, MissionCompleted, o.Mission.Status)
	assert.Equal(t, StatusComplete, *objStatus(t, o.Mission, VerifyObjectiveID))

	assert.Nil(t, f.tracker.Active())
	require.Len(t, f.tracker.History(), 1)
}

func TestVerification_AtSpeedOneDoesNotFireEarly(t *testing.T) {
	f := newFixture(t, DefaultVerifyDelay)
	f.tracker.AddAvailable(testMission(false))
	require.NoError(t, f.tracker.Accept("m-heist"))

	f.bus.Emit(event.FileSystemConnected, event.ConnectedPayload{Address: "10.44.0.9"})
	f.bus.Emit(event.FileOperationComplete, event.FileOperationPayload{Target: "payroll.db"})

	// At 1x the 3000 sim-ms delay is 3000 real ms; 200 real ms is nowhere
	// near enough.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 0, f.outcomeCount())
	f.tracker.FailActive()
}

func TestVerification_ArmedAtMostOnce(t *testing.T) {
	f := newFixture(t, DefaultVerifyDelay)
	f.setSpeed(100)
	f.tracker.AddAvailable(testMission(false))
	require.NoError(t, f.tracker.Accept("m-heist"))

	f.bus.Emit(event.FileSystemConnected, event.ConnectedPayload{Address: "10.44.0.9"})
	// Duplicate completion signals arriving close together must not re-arm.
	f.bus.Emit(event.FileOperationComplete, event.FileOperationPayload{Target: "payroll.db"})
	f.bus.Emit(event.FileOperationComplete, event.FileOperationPayload{Target: "payroll.db"})
	f.bus.Emit(event.FileSystemConnected, event.ConnectedPayload{Address: "10.44.0.9"})

	waitForOutcome(t, f, 3*time.Second)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, f.outcomeCount())
	assert.Len(t, f.tracker.History(), 1)
}

func TestScriptedEvents_GateVerification(t *testing.T) {
	f := newFixture(t, DefaultVerifyDelay)
	f.setSpeed(100)
	f.tracker.AddAvailable(testMission(true))
	require.NoError(t, f.tracker.Accept("m-heist"))

	f.bus.Emit(event.FileSystemConnected, event.ConnectedPayload{Address: "10.44.0.9"})
	f.bus.Emit(event.FileOperationComplete, event.FileOperationPayload{Target: "payroll.db"})

	// All real objectives done, but the narrative beat has not played out.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, MissionActive, f.tracker.Active().Status)
	assert.Equal(t, 0, f.outcomeCount())

	f.bus.Emit(event.ScriptedEventComplete, nil)
	o := waitForOutcome(t, f, 3*time.Second)
	assert.True(t, o.Success)
}

func TestFailActive_CancelsVerification(t *testing.T) {
	f := newFixture(t, DefaultVerifyDelay)
	f.tracker.AddAvailable(testMission(false))
	require.NoError(t, f.tracker.Accept("m-heist"))

	f.bus.Emit(event.FileSystemConnected, event.ConnectedPayload{Address: "10.44.0.9"})
	f.bus.Emit(event.FileOperationComplete, event.FileOperationPayload{Target: "payroll.db"})
	require.NoError(t, f.tracker.FailActive())

	require.Len(t, f.tracker.History(), 1)
	assert.Equal(t, MissionFailed, f.tracker.History()[0].Status)
	assert.False(t, f.tracker.History()[0].Succeeded)

	// The cancelled verification timer must never fire.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, f.outcomeCount())
}

func TestSnapshotRestore_ReArmsVerificationFromRemaining(t *testing.T) {
	f := newFixture(t, DefaultVerifyDelay)
	f.tracker.AddAvailable(testMission(false))
	require.NoError(t, f.tracker.Accept("m-heist"))

	f.bus.Emit(event.FileSystemConnected, event.ConnectedPayload{Address: "10.44.0.9"})
	f.bus.Emit(event.FileOperationComplete, event.FileOperationPayload{Target: "payroll.db"})

	st := f.tracker.Snapshot()
	require.NotNil(t, st.Active)
	assert.Equal(t, MissionCompleting, st.Active.Status)
	require.NotNil(t, st.VerifyRemainingMs)
	assert.LessOrEqual(t, *st.VerifyRemainingMs, int64(3000))
	assert.Greater(t, *st.VerifyRemainingMs, int64(0))

	// Restore into a fresh tracker running at 100x: the saved remainder
	// fires quickly instead of restarting the full 3s window.
	g := newFixture(t, DefaultVerifyDelay)
	g.setSpeed(100)
	g.tracker.Restore(st)
	g.scheduler.RescheduleAll(100)

	o := waitForOutcome(t, g, 3*time.Second)
	assert.True(t, o.Success)
	f.tracker.FailActive()
}

func objStatus(t *testing.T, m Mission, id string) *ObjectiveStatus {
	t.Helper()
	for i := range m.Objectives {
		if m.Objectives[i].ID == id {
			return &m.Objectives[i].Status
		}
	}
	t.Fatalf("objective %s not found", id)
	return nil
}
