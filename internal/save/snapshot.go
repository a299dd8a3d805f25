package save

import (
	"math"
	"time"

	"github.com/aabaaiaaa/SourceNet-sub005/internal/bank"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/mission"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/netops"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/reputation"
)

// Window is the persisted placement of one UI window. Geometry is advisory:
// invalid values are replaced with a cascade position on load rather than
// handed to the client.
type Window struct {
	ID   string  `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	W    float64 `json:"w"`
	H    float64 `json:"h"`
	Open bool    `json:"open"`
}

// Cascade geometry applied to windows restored with invalid positions.
const (
	cascadeOriginX = 40.0
	cascadeOriginY = 40.0
	cascadeStep    = 24.0
	defaultWindowW = 640.0
	defaultWindowH = 480.0
)

// Snapshot is the full serializable state graph. Countdowns and pending
// timers inside the component states carry remaining durations, so a load
// can re-arm them without assuming wall-clock continuity since the save.
type Snapshot struct {
	PlayerID    string    `json:"playerId"`
	SavedAt     time.Time `json:"savedAt"`
	GameTime    time.Time `json:"gameTime"`
	Speed       int       `json:"speed"`
	Paused      bool      `json:"paused"`
	GameOver    bool      `json:"gameOver"`
	GameOverWhy string    `json:"gameOverReason,omitempty"`

	Bank       bank.State            `json:"bank"`
	Reputation reputation.State      `json:"reputation"`
	Missions   mission.State         `json:"missions"`
	Network    netops.State          `json:"network"`
	Bandwidth  netops.BandwidthState `json:"bandwidth"`
	Windows    []Window              `json:"windows"`
}

// Normalize fills documented defaults for fields an older save may omit and
// repairs invalid window geometry. Component states apply their own
// defaults in Restore; Normalize handles everything the snapshot itself
// owns. The loader only rejects a snapshot for a missing player identity.
func (s *Snapshot) Normalize() {
	if s.Speed <= 0 {
		s.Speed = 1
	}
	if s.GameTime.IsZero() {
		s.GameTime = s.SavedAt
	}
	if s.Missions.Available == nil {
		s.Missions.Available = []mission.Mission{}
	}
	if s.Missions.History == nil {
		s.Missions.History = []mission.Mission{}
	}
	if s.Windows == nil {
		s.Windows = []Window{}
	}
	for i := range s.Windows {
		w := &s.Windows[i]
		if !validCoord(w.X) || !validCoord(w.Y) {
			w.X = cascadeOriginX + cascadeStep*float64(i)
			w.Y = cascadeOriginY + cascadeStep*float64(i)
		}
		if !validSize(w.W) {
			w.W = defaultWindowW
		}
		if !validSize(w.H) {
			w.H = defaultWindowH
		}
	}
}

func validCoord(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func validSize(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
