package sim

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tickRecorder struct {
	mu    sync.Mutex
	ticks []time.Time
}

func (r *tickRecorder) record(now time.Time) {
	r.mu.Lock()
	r.ticks = append(r.ticks, now)
	r.mu.Unlock()
}

func (r *tickRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ticks)
}

var gameEpoch = time.Date(2087, 3, 14, 9, 0, 0, 0, time.UTC)

func TestGameClock_AdvancesOneSimSecondPerTick(t *testing.T) {
	c := NewGameClock(gameEpoch, nil, []int{1, 10, 100})
	rec := &tickRecorder{}
	c.OnTick(rec.record)

	// 100x: one simulated second every 10 real ms.
	require.NoError(t, c.SetSpeed(100))
	c.EnterScreen(ScreenDesktop)
	defer c.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for rec.count() < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.GreaterOrEqual(t, rec.count(), 5)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i, tick := range rec.ticks[:5] {
		assert.Equal(t, gameEpoch.Add(time.Duration(i+1)*time.Second), tick)
	}
}

func TestGameClock_SuspendedOutsideDesktop(t *testing.T) {
	c := NewGameClock(gameEpoch, nil, []int{1, 10, 100})
	rec := &tickRecorder{}
	c.OnTick(rec.record)
	require.NoError(t, c.SetSpeed(100))

	// Boot and login never tick.
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
	c.EnterScreen(ScreenLogin)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, rec.count())

	// A reboot only ticks when flagged active.
	c.EnterScreen(ScreenReboot)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, rec.count())

	c.SetActiveReboot(true)
	deadline := time.Now().Add(2 * time.Second)
	for rec.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Greater(t, rec.count(), 0)
	c.Stop()
}

func TestGameClock_PauseHoldsCurrentTime(t *testing.T) {
	c := NewGameClock(gameEpoch, nil, []int{1, 10, 100})
	rec := &tickRecorder{}
	c.OnTick(rec.record)
	require.NoError(t, c.SetSpeed(100))
	c.EnterScreen(ScreenDesktop)
	defer c.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for rec.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.GreaterOrEqual(t, rec.count(), 2)

	c.Pause()
	frozen := c.Now()
	n := rec.count()
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, n, rec.count())
	assert.Equal(t, frozen, c.Now())

	c.Resume()
	deadline = time.Now().Add(2 * time.Second)
	for rec.count() == n && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Greater(t, rec.count(), n)
	assert.True(t, c.Now().After(frozen))
}

func TestGameClock_SetSpeedValidatesMultiplier(t *testing.T) {
	c := NewGameClock(gameEpoch, nil, []int{1, 10, 100})
	assert.Error(t, c.SetSpeed(7))
	assert.Error(t, c.SetSpeed(0))
	assert.NoError(t, c.SetSpeed(10))
	assert.Equal(t, 10, c.Speed())
}

func TestGameClock_SetSpeedReschedulesPendingTimers(t *testing.T) {
	s := NewScheduler(RealClock{})
	c := NewGameClock(gameEpoch, s, []int{1, 10, 100})
	defer c.Stop()

	// 10 simulated seconds at 1x would take 10 real seconds. Jumping the
	// clock to 100x must drag the armed timer along to ~100 real ms.
	ch := make(chan struct{}, 1)
	s.Schedule("verify", func() { ch <- struct{}{} }, 10*time.Second, c.Speed())

	var notified int
	c.OnSpeedChange(func(speed int) { notified = speed })
	require.NoError(t, c.SetSpeed(100))
	assert.Equal(t, 100, notified)

	waitFired(t, ch, 3*time.Second)
}
