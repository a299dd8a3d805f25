package netops

import (
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aabaaiaaa/SourceNet-sub005/internal/event"
)

func newTestBus() *event.Bus {
	return event.NewBus(log.New(os.Stderr, "", 0))
}

func TestConnect_RequiresGrant(t *testing.T) {
	bus := newTestBus()
	reg := NewRegister(bus)

	err := reg.Connect("10.44.0.9")
	assert.ErrorIs(t, err, ErrUnknownAddress)

	reg.Grant("10.44.0.9", "payroll server")

	var connected []string
	bus.On(event.FileSystemConnected, func(p any) {
		connected = append(connected, p.(event.ConnectedPayload).Address)
	})

	require.NoError(t, reg.Connect("10.44.0.9"))
	assert.True(t, reg.Connected("10.44.0.9"))
	assert.Equal(t, []string{"10.44.0.9"}, connected)
}

func TestRevoke_ForceDisconnectsLiveConnection(t *testing.T) {
	bus := newTestBus()
	reg := NewRegister(bus)
	reg.Grant("10.44.0.9", "payroll server")
	require.NoError(t, reg.Connect("10.44.0.9"))

	var forced []bool
	bus.On(event.NetworkDisconnected, func(p any) {
		forced = append(forced, p.(event.DisconnectPayload).Forced)
	})

	reg.Revoke("10.44.0.9")
	assert.False(t, reg.Connected("10.44.0.9"))
	assert.Equal(t, []bool{true}, forced)

	err := reg.Connect("10.44.0.9")
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestDisconnect_NoEventWhenNotConnected(t *testing.T) {
	bus := newTestBus()
	reg := NewRegister(bus)
	reg.Grant("10.44.0.9", "payroll server")

	fired := 0
	bus.On(event.NetworkDisconnected, func(any) { fired++ })

	reg.Disconnect("10.44.0.9")
	assert.Zero(t, fired)

	require.NoError(t, reg.Connect("10.44.0.9"))
	reg.Disconnect("10.44.0.9")
	assert.Equal(t, 1, fired)
}

func TestRegister_SnapshotRestore(t *testing.T) {
	bus := newTestBus()
	reg := NewRegister(bus)
	reg.Grant("10.44.0.9", "payroll server")
	reg.Grant("10.81.3.2", "mail relay")
	require.NoError(t, reg.Connect("10.44.0.9"))
	reg.Revoke("10.81.3.2")

	st := reg.Snapshot()

	restored := NewRegister(newTestBus())
	restored.Restore(st)

	assert.True(t, restored.Connected("10.44.0.9"))
	assert.False(t, restored.Connected("10.81.3.2"))
	assert.ErrorIs(t, restored.Connect("10.81.3.2"), ErrNotAuthorized)
	assert.Len(t, restored.Entries(), 2)
}
