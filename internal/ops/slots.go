package ops

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// SlotInfo is a summary of one save slot, read without loading the full
// snapshot into the engine.
type SlotInfo struct {
	PlayerID string    `json:"playerId"`
	Slot     string    `json:"slot"`
	SavedAt  time.Time `json:"savedAt"`
	GameTime time.Time `json:"gameTime"`
	Credits  int       `json:"credits"`
	Tier     int       `json:"tier"`
	GameOver bool      `json:"gameOver"`
	Bytes    int       `json:"bytes"`
}

// slotHeader pulls just the fields SlotInfo reports out of a stored
// snapshot. Unknown fields are ignored so this stays valid across snapshot
// format additions.
type slotHeader struct {
	PlayerID string    `json:"playerId"`
	SavedAt  time.Time `json:"savedAt"`
	GameTime time.Time `json:"gameTime"`
	GameOver bool      `json:"gameOver"`
	Bank     struct {
		Accounts []struct {
			Balance int `json:"balance"`
		} `json:"accounts"`
	} `json:"bank"`
	Reputation struct {
		Tier int `json:"tier"`
	} `json:"reputation"`
}

// InspectSaveDB opens the save database read-only and summarises every slot
// of every player. The server must not hold the database open at the same
// time; bbolt files are single-writer.
func InspectSaveDB(path string) ([]SlotInfo, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{ReadOnly: true, Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open save db: %w", err)
	}
	defer db.Close()

	var infos []SlotInfo
	err = db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(player []byte, b *bbolt.Bucket) error {
			return b.ForEach(func(slot, raw []byte) error {
				info := SlotInfo{
					PlayerID: string(player),
					Slot:     string(slot),
					Bytes:    len(raw),
				}
				var hdr slotHeader
				if err := json.Unmarshal(raw, &hdr); err != nil {
					// Report the slot even when the payload is unreadable.
					infos = append(infos, info)
					return nil
				}
				info.SavedAt = hdr.SavedAt
				info.GameTime = hdr.GameTime
				info.GameOver = hdr.GameOver
				info.Tier = hdr.Reputation.Tier
				for _, acct := range hdr.Bank.Accounts {
					info.Credits += acct.Balance
				}
				infos = append(infos, info)
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}
