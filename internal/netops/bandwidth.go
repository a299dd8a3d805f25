package netops

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// OperationType distinguishes downloads from the other bandwidth consumers.
type OperationType string

const (
	OpDownload   OperationType = "download"
	OpFileRepair OperationType = "fileRepair"
	OpScan       OperationType = "networkScan"
)

// OperationStatus lifecycle.
type OperationStatus string

const (
	OpActive OperationStatus = "active"
	OpDone   OperationStatus = "done"
)

// Operation is one in-flight transfer. Progress is accrued in simulated
// time: per segment of constant active-set cardinality, the operation earns
// its equal share of the link. Already-earned megabytes are never
// recalculated when the share changes.
type Operation struct {
	ID                string          `json:"id"`
	Type              OperationType   `json:"type"`
	SizeMB            float64         `json:"sizeInMB"`
	Status            OperationStatus `json:"status"`
	StartedAtGameTime time.Time       `json:"startedAtGameTime"`
	ProgressMB        float64         `json:"progressMB"`
	EstimatedMs       int64           `json:"estimatedMs"`

	lastAccrual time.Time
}

// Fraction is the completed share of the operation in [0, 1].
func (o *Operation) Fraction() float64 {
	if o.SizeMB <= 0 {
		return 1
	}
	return math.Min(1, o.ProgressMB/o.SizeMB)
}

var ErrUnknownOperation = errors.New("unknown bandwidth operation")

// Manager divides the available link equally across concurrently active
// operations. Hardware numbers come from the player's loadout (external
// data); speeds are megabits per second on the wire, converted to MB/s for
// transfer math.
type Manager struct {
	mu             sync.Mutex
	adapterMbps    float64
	connectionMbps float64
	ops            map[string]*Operation
}

func NewManager(adapterMbps, connectionMbps float64) *Manager {
	return &Manager{
		adapterMbps:    adapterMbps,
		connectionMbps: connectionMbps,
		ops:            make(map[string]*Operation),
	}
}

// SetLink swaps the hardware/connection speeds (hardware purchases). New
// rates apply going forward from now.
func (m *Manager) SetLink(adapterMbps, connectionMbps float64, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accrueLocked(now)
	m.adapterMbps = adapterMbps
	m.connectionMbps = connectionMbps
}

// MaxBandwidthMbps is the link ceiling: the slower of adapter and
// connection.
func (m *Manager) MaxBandwidthMbps() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return math.Min(m.adapterMbps, m.connectionMbps)
}

func (m *Manager) activeCountLocked() int {
	n := 0
	for _, o := range m.ops {
		if o.Status == OpActive {
			n++
		}
	}
	return n
}

// perOpMBpsLocked is each active operation's transfer speed in MB of payload
// per simulated second.
func (m *Manager) perOpMBpsLocked(activeCount int) float64 {
	if activeCount < 1 {
		activeCount = 1
	}
	maxMbps := math.Min(m.adapterMbps, m.connectionMbps)
	return maxMbps / float64(activeCount) / 8
}

// TransferSpeedMBps reports the current per-operation speed.
func (m *Manager) TransferSpeedMBps() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.perOpMBpsLocked(m.activeCountLocked())
}

// accrueLocked folds the simulated time since each operation's last accrual
// into earned megabytes at the current share. Call before any change to the
// active set or the link so past segments keep their historical rate.
func (m *Manager) accrueLocked(now time.Time) {
	rate := m.perOpMBpsLocked(m.activeCountLocked())
	for _, o := range m.ops {
		if o.Status != OpActive {
			continue
		}
		elapsed := now.Sub(o.lastAccrual)
		if elapsed > 0 {
			o.ProgressMB += elapsed.Seconds() * rate
			o.lastAccrual = now
		}
	}
}

// RegisterOperation starts a transfer at simulated time now. The returned
// estimate includes the newly registered operation in the active count, so
// it reflects contention at registration time.
func (m *Manager) RegisterOperation(typ OperationType, sizeMB float64, now time.Time) (string, int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accrueLocked(now)

	op := &Operation{
		ID:                uuid.NewString(),
		Type:              typ,
		SizeMB:            sizeMB,
		Status:            OpActive,
		StartedAtGameTime: now,
		lastAccrual:       now,
	}
	m.ops[op.ID] = op

	speed := m.perOpMBpsLocked(m.activeCountLocked())
	if speed > 0 {
		op.EstimatedMs = int64(sizeMB / speed * 1000)
	}
	return op.ID, op.EstimatedMs
}

// Tick accrues progress up to the simulated now and returns operations that
// finished during this tick. Finishing frees their share for the remaining
// operations going forward.
func (m *Manager) Tick(now time.Time) []Operation {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accrueLocked(now)

	var done []Operation
	for _, o := range m.ops {
		if o.Status == OpActive && o.ProgressMB >= o.SizeMB {
			o.Status = OpDone
			done = append(done, *o)
		}
	}
	if len(done) > 0 {
		// The survivors' larger share starts now, not retroactively.
		for _, o := range m.ops {
			if o.Status == OpActive {
				o.lastAccrual = now
			}
		}
	}
	return done
}

// CompleteOperation force-finishes an operation (e.g. a cancel path),
// resharing bandwidth among the remainder from now on.
func (m *Manager) CompleteOperation(id string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	op, ok := m.ops[id]
	if !ok {
		return ErrUnknownOperation
	}
	m.accrueLocked(now)
	op.Status = OpDone
	return nil
}

// Operation returns a copy of the identified operation.
func (m *Manager) Operation(id string) (Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[id]
	if !ok {
		return Operation{}, ErrUnknownOperation
	}
	return *op, nil
}

// Active returns copies of all in-flight operations.
func (m *Manager) Active() []Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Operation
	for _, o := range m.ops {
		if o.Status == OpActive {
			out = append(out, *o)
		}
	}
	return out
}

// BandwidthState is the serializable manager snapshot.
type BandwidthState struct {
	AdapterMbps    float64     `json:"adapterMbps"`
	ConnectionMbps float64     `json:"connectionMbps"`
	Operations     []Operation `json:"operations"`
}

func (m *Manager) Snapshot(now time.Time) BandwidthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accrueLocked(now)

	st := BandwidthState{AdapterMbps: m.adapterMbps, ConnectionMbps: m.connectionMbps}
	for _, o := range m.ops {
		st.Operations = append(st.Operations, *o)
	}
	return st
}

func (m *Manager) Restore(st BandwidthState, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st.AdapterMbps > 0 {
		m.adapterMbps = st.AdapterMbps
	}
	if st.ConnectionMbps > 0 {
		m.connectionMbps = st.ConnectionMbps
	}
	m.ops = make(map[string]*Operation)
	for _, o := range st.Operations {
		op := o
		op.lastAccrual = now
		if math.IsNaN(op.ProgressMB) || op.ProgressMB < 0 {
			op.ProgressMB = 0
		}
		m.ops[op.ID] = &op
	}
}
