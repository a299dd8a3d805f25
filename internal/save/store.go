package save

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.etcd.io/bbolt"
)

// DefaultSlot is used when a save or load names no slot.
const DefaultSlot = "autosave"

var ErrNoSave = errors.New("no save in slot")

// Store persists snapshots in a bbolt file: one bucket per player, one key
// per named slot, JSON values.
type Store struct {
	db *bbolt.DB
}

// OpenStore opens (creating if needed) the save database at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create save dir: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open save db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes the snapshot under the player's bucket. An empty slot name
// falls back to DefaultSlot; an existing slot is overwritten.
func (s *Store) Save(playerID, slot string, snap Snapshot) error {
	if playerID == "" {
		return errors.New("player id required")
	}
	if slot == "" {
		slot = DefaultSlot
	}
	snap.PlayerID = playerID

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(playerID))
		if err != nil {
			return err
		}
		return b.Put([]byte(slot), raw)
	})
}

// Load reads and normalizes the snapshot in the named slot. Missing
// optional fields get their documented defaults; only a snapshot without a
// player identity is rejected as malformed.
func (s *Store) Load(playerID, slot string) (Snapshot, error) {
	if slot == "" {
		slot = DefaultSlot
	}

	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(playerID))
		if b == nil {
			return fmt.Errorf("%w: %s/%s", ErrNoSave, playerID, slot)
		}
		v := b.Get([]byte(slot))
		if v == nil {
			return fmt.Errorf("%w: %s/%s", ErrNoSave, playerID, slot)
		}
		raw = append(raw, v...)
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.PlayerID == "" {
		return Snapshot{}, errors.New("snapshot missing player id")
	}
	snap.Normalize()
	return snap, nil
}

// Slots lists the player's save slots sorted by name.
func (s *Store) Slots(playerID string) ([]string, error) {
	var slots []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(playerID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, _ []byte) error {
			slots = append(slots, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(slots)
	return slots, nil
}

// Delete removes one slot. Deleting an absent slot is a no-op.
func (s *Store) Delete(playerID, slot string) error {
	if slot == "" {
		slot = DefaultSlot
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(playerID))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(slot))
	})
}
