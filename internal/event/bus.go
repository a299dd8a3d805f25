package event

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Name identifies a bus event. The core emits and consumes a fixed set;
// the UI gateway forwards all of them to connected clients.
type Name string

const (
	MessageRead           Name = "messageRead"
	ObjectiveComplete     Name = "objectiveComplete"
	ScriptedEventComplete Name = "scriptedEventComplete"
	NetworkDisconnected   Name = "networkDisconnected"
	FileSystemConnected   Name = "fileSystemConnected"
	FileOperationComplete Name = "fileOperationComplete"
	NetworkScanComplete   Name = "networkScanComplete"
	MissionCompleted      Name = "missionCompleted"
	BankBalanceChanged    Name = "bankBalanceChanged"
	GameOver              Name = "gameOver"
	SpeedChanged          Name = "speedChanged"
	DownloadComplete      Name = "downloadComplete"
)

// Handler receives the payload passed to Emit.
type Handler func(payload any)

// Payload shapes shared by producers and consumers of the core events.
type ConnectedPayload struct {
	Address string `json:"address"`
}

type FileOperationPayload struct {
	Target string `json:"target"`
}

type ScanPayload struct {
	Address string `json:"address"`
}

type ObjectivePayload struct {
	MissionID   string `json:"missionId"`
	ObjectiveID string `json:"objectiveId"`
}

type DisconnectPayload struct {
	Address string `json:"address"`
	Forced  bool   `json:"forced"`
}

// Record is one delivered event kept in the bounded history ring.
type Record struct {
	Name    Name      `json:"name"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

const defaultHistoryCap = 100

type subscription struct {
	id      int
	handler Handler
	once    bool
}

// Bus is a synchronous publish/subscribe channel. Emit calls subscribers in
// registration order; a panicking handler is recovered and logged so the
// remaining handlers still run.
type Bus struct {
	mu         sync.Mutex
	subs       map[Name][]subscription
	nextID     int
	history    []Record
	historyCap int
	logger     *log.Logger
}

func NewBus(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.Default()
	}
	return &Bus{
		subs:       make(map[Name][]subscription),
		historyCap: defaultHistoryCap,
		logger:     logger,
	}
}

// On registers a handler and returns an unsubscribe func. Unsubscribing
// twice is a no-op.
func (b *Bus) On(name Name, h Handler) func() {
	return b.add(name, h, false)
}

// Once registers a handler that is removed after its first delivery.
func (b *Bus) Once(name Name, h Handler) func() {
	return b.add(name, h, true)
}

func (b *Bus) add(name Name, h Handler, once bool) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], subscription{id: id, handler: h, once: once})
	return func() { b.off(name, id) }
}

func (b *Bus) off(name Name, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[name]
	for i, s := range list {
		if s.id == id {
			b.subs[name] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Emit delivers payload to every current subscriber of name, synchronously,
// and appends a Record to the history ring.
func (b *Bus) Emit(name Name, payload any) {
	b.mu.Lock()
	list := make([]subscription, len(b.subs[name]))
	copy(list, b.subs[name])

	// Drop once-handlers before dispatch so a handler emitting the same
	// event cannot trigger a second delivery.
	kept := b.subs[name][:0]
	for _, s := range b.subs[name] {
		if !s.once {
			kept = append(kept, s)
		}
	}
	b.subs[name] = kept

	b.history = append(b.history, Record{Name: name, Payload: payload, At: time.Now()})
	if len(b.history) > b.historyCap {
		b.history = b.history[len(b.history)-b.historyCap:]
	}
	b.mu.Unlock()

	for _, s := range list {
		b.dispatch(name, s, payload)
	}
}

func (b *Bus) dispatch(name Name, s subscription, payload any) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Printf("event %s: handler panic: %v", name, fmt.Sprint(rec))
		}
	}()
	s.handler(payload)
}

// History returns the most recent limit records, oldest first. limit <= 0
// returns the whole ring.
func (b *Bus) History(limit int) []Record {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Record, n)
	copy(out, b.history[len(b.history)-n:])
	return out
}

// Clear drops all subscribers and history.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[Name][]subscription)
	b.history = nil
}
