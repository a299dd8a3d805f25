package ops

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aabaaiaaa/SourceNet-sub005/internal/bank"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/reputation"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/save"
)

func TestInspectSaveDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "saves.db")

	store, err := save.OpenStore(dbPath)
	require.NoError(t, err)

	snap := save.Snapshot{
		SavedAt:  time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC),
		GameTime: time.Date(2087, time.March, 14, 9, 30, 0, 0, time.UTC),
		Speed:    10,
		Bank: bank.State{
			Accounts: []bank.Account{
				{ID: "acct-main", BankName: "Meridian First Digital", Balance: 3300},
			},
		},
		Reputation: reputation.State{Tier: 6},
	}
	require.NoError(t, store.Save("player-1", "before-heist", snap))
	require.NoError(t, store.Close())

	infos, err := InspectSaveDB(dbPath)
	require.NoError(t, err)
	require.Len(t, infos, 1)

	info := infos[0]
	assert.Equal(t, "player-1", info.PlayerID)
	assert.Equal(t, "before-heist", info.Slot)
	assert.Equal(t, 3300, info.Credits)
	assert.Equal(t, 6, info.Tier)
	assert.False(t, info.GameOver)
	assert.Equal(t, snap.GameTime, info.GameTime)
	assert.Positive(t, info.Bytes)
}

func TestInspectSaveDB_MissingFile(t *testing.T) {
	_, err := InspectSaveDB(filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
}
