package netops

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aabaaiaaa/SourceNet-sub005/internal/event"
)

// Entry is one row of the network address register: a remote system the
// player may connect to, and whether the authorization is still standing.
type Entry struct {
	Address    string `json:"address"`
	Label      string `json:"label"`
	Authorized bool   `json:"authorized"`
}

var (
	ErrUnknownAddress = errors.New("address not in register")
	ErrNotAuthorized  = errors.New("address not authorized")
)

// Register tracks authorized addresses and live connections. Revoking an
// address force-disconnects any live connection using it.
type Register struct {
	mu        sync.Mutex
	entries   map[string]*Entry
	connected map[string]bool
	bus       *event.Bus
}

func NewRegister(bus *event.Bus) *Register {
	return &Register{
		entries:   make(map[string]*Entry),
		connected: make(map[string]bool),
		bus:       bus,
	}
}

// Grant adds or re-authorizes an address.
func (r *Register) Grant(address, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[address] = &Entry{Address: address, Label: label, Authorized: true}
}

// Connect opens a connection to an authorized address and emits
// fileSystemConnected so mission objectives can pick it up.
func (r *Register) Connect(address string) error {
	r.mu.Lock()
	e, ok := r.entries[address]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownAddress, address)
	}
	if !e.Authorized {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotAuthorized, address)
	}
	r.connected[address] = true
	r.mu.Unlock()

	r.bus.Emit(event.FileSystemConnected, event.ConnectedPayload{Address: address})
	return nil
}

// Disconnect closes a live connection. Unknown or already-closed addresses
// are a no-op.
func (r *Register) Disconnect(address string) {
	r.mu.Lock()
	live := r.connected[address]
	delete(r.connected, address)
	r.mu.Unlock()

	if live {
		r.bus.Emit(event.NetworkDisconnected, event.DisconnectPayload{Address: address})
	}
}

// Revoke marks the entry unauthorized and force-disconnects any live
// connection using it. Used for mission grants flagged revokeOnComplete.
func (r *Register) Revoke(address string) {
	r.mu.Lock()
	e, ok := r.entries[address]
	if ok {
		e.Authorized = false
	}
	live := r.connected[address]
	delete(r.connected, address)
	r.mu.Unlock()

	if live {
		r.bus.Emit(event.NetworkDisconnected, event.DisconnectPayload{Address: address, Forced: true})
	}
}

// Connected reports whether a live connection to address exists.
func (r *Register) Connected(address string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected[address]
}

// Entries returns a copy of the register.
func (r *Register) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	return out
}

// State is the serializable register snapshot.
type State struct {
	Entries   []Entry  `json:"entries"`
	Connected []string `json:"connected"`
}

func (r *Register) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := State{}
	for _, e := range r.entries {
		st.Entries = append(st.Entries, *e)
	}
	for addr, live := range r.connected {
		if live {
			st.Connected = append(st.Connected, addr)
		}
	}
	return st
}

func (r *Register) Restore(st State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*Entry)
	for _, e := range st.Entries {
		entry := e
		r.entries[e.Address] = &entry
	}
	r.connected = make(map[string]bool)
	for _, addr := range st.Connected {
		r.connected[addr] = true
	}
}
