package mission

import "time"

// ObjectiveType declares which external signal auto-completes an objective.
type ObjectiveType string

const (
	ObjectiveConnect       ObjectiveType = "connect"       // network/filesystem connected
	ObjectiveFileOperation ObjectiveType = "fileOperation" // file copy/delete/repair finished
	ObjectiveScan          ObjectiveType = "scan"          // network scan results received
	ObjectiveVerify        ObjectiveType = "verify"        // synthetic, time-delayed
)

// ObjectiveStatus lifecycle.
type ObjectiveStatus string

const (
	StatusPending  ObjectiveStatus = "pending"
	StatusComplete ObjectiveStatus = "complete"
	StatusFailed   ObjectiveStatus = "failed"
)

// VerifyObjectiveID is the synthetic objective appended to every mission at
// registration. It is the only objective completed by elapsed simulated time
// rather than by an event.
const VerifyObjectiveID = "obj-verify"

// Objective is one mission goal. Target scopes the trigger (an address for
// connects and scans, a file name for file operations).
type Objective struct {
	ID     string          `json:"id"`
	Type   ObjectiveType   `json:"type"`
	Target string          `json:"target"`
	Status ObjectiveStatus `json:"status"`
}

// NetworkGrant is the mission-scoped network access handed to the player.
type NetworkGrant struct {
	Address          string `json:"address"`
	RevokeOnComplete bool   `json:"revokeOnComplete"`
}

// MissionStatus lifecycle: Available -> Active -> Completing -> Completed or
// Failed. Completing means all real objectives are done and the verification
// delay is armed.
type MissionStatus string

const (
	MissionAvailable  MissionStatus = "available"
	MissionActive     MissionStatus = "active"
	MissionCompleting MissionStatus = "completing"
	MissionCompleted  MissionStatus = "completed"
	MissionFailed     MissionStatus = "failed"
)

// Mission is a contract offered to the player.
type Mission struct {
	ID              string        `json:"missionId"`
	Title           string        `json:"title"`
	ClientType      string        `json:"clientType"`
	BasePayout      int           `json:"basePayout"`
	Objectives      []Objective   `json:"objectives"`
	Network         NetworkGrant  `json:"network"`
	Status          MissionStatus `json:"status"`
	ScriptedEvents  bool          `json:"scriptedEvents"`
	AcceptedAtGame  *time.Time    `json:"acceptedAtGame,omitempty"`
	CompletedAtGame *time.Time    `json:"completedAtGame,omitempty"`
	Succeeded       bool          `json:"succeeded"`
}

// realObjectivesComplete reports whether every non-synthetic objective is
// complete.
func (m *Mission) realObjectivesComplete() bool {
	for i := range m.Objectives {
		o := &m.Objectives[i]
		if o.ID == VerifyObjectiveID {
			continue
		}
		if o.Status != StatusComplete {
			return false
		}
	}
	return true
}

func (m *Mission) objective(id string) *Objective {
	for i := range m.Objectives {
		if m.Objectives[i].ID == id {
			return &m.Objectives[i]
		}
	}
	return nil
}
