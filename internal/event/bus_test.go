package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmit_RegistrationOrder(t *testing.T) {
	b := NewBus(nil)

	var got []string
	b.On(ObjectiveComplete, func(any) { got = append(got, "first") })
	b.On(ObjectiveComplete, func(any) { got = append(got, "second") })
	b.On(ObjectiveComplete, func(any) { got = append(got, "third") })

	b.Emit(ObjectiveComplete, nil)
	assert.Equal(t, []string{"first", "second", "third"}, got)
}

func TestEmit_PanickingHandlerDoesNotBlockOthers(t *testing.T) {
	b := NewBus(nil)

	delivered := false
	b.On(FileOperationComplete, func(any) { panic("boom") })
	b.On(FileOperationComplete, func(any) { delivered = true })

	b.Emit(FileOperationComplete, nil)
	assert.True(t, delivered)
}

func TestOnce_FiresExactlyOnce(t *testing.T) {
	b := NewBus(nil)

	count := 0
	b.Once(ScriptedEventComplete, func(any) { count++ })

	b.Emit(ScriptedEventComplete, nil)
	b.Emit(ScriptedEventComplete, nil)
	assert.Equal(t, 1, count)
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	b := NewBus(nil)

	count := 0
	off := b.On(MessageRead, func(any) { count++ })

	b.Emit(MessageRead, nil)
	off()
	off()
	b.Emit(MessageRead, nil)
	assert.Equal(t, 1, count)
}

func TestHistory_BoundedRing(t *testing.T) {
	b := NewBus(nil)

	for i := 0; i < 150; i++ {
		b.Emit(BankBalanceChanged, i)
	}

	all := b.History(0)
	require.Len(t, all, defaultHistoryCap)
	assert.Equal(t, 50, all[0].Payload)
	assert.Equal(t, 149, all[len(all)-1].Payload)

	recent := b.History(10)
	require.Len(t, recent, 10)
	assert.Equal(t, 140, recent[0].Payload)
}

func TestClear_DropsSubscribersAndHistory(t *testing.T) {
	b := NewBus(nil)

	count := 0
	b.On(GameOver, func(any) { count++ })
	b.Emit(GameOver, nil)

	b.Clear()
	b.Emit(GameOver, nil)

	assert.Equal(t, 1, count)
	assert.Empty(t, b.History(0))
}
