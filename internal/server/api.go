package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aabaaiaaa/SourceNet-sub005/internal/bank"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/game"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/mission"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/reputation"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/save"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/telemetry"
)

// App holds what the handlers depend on. The engine is the single source of
// truth; handlers translate HTTP intents into engine calls.
type App struct {
	Engine *game.Engine
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps engine errors onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrGameOver):
		return http.StatusConflict
	case errors.Is(err, mission.ErrMissionActive),
		errors.Is(err, bank.ErrChequeDeposited):
		return http.StatusConflict
	case errors.Is(err, mission.ErrUnknownMission),
		errors.Is(err, mission.ErrNoActiveMission),
		errors.Is(err, bank.ErrUnknownCheque),
		errors.Is(err, save.ErrNoSave):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

type stateView struct {
	GameTime   time.Time `json:"gameTime"`
	Speed      int       `json:"speed"`
	Paused     bool      `json:"paused"`
	GameOver   bool      `json:"gameOver"`
	GameOverBy string    `json:"gameOverReason,omitempty"`
	Credits    int       `json:"credits"`
	Tier       int       `json:"tier"`
	TierName   string    `json:"tierName"`
}

func RegisterAPIRoutes(mux *http.ServeMux, rr *RouteRegistry, app *App) {
	e := app.Engine

	Handle(mux, rr, "GET /healthz", "liveness probe", "", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":      true,
			"service": "sourcenet",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	Handle(mux, rr, "GET /api/state", "composite game state", "", func(w http.ResponseWriter, r *http.Request) {
		over, why := e.GameOver()
		tier := e.Reputation.Tier()
		writeJSON(w, http.StatusOK, stateView{
			GameTime:   e.Clock.Now(),
			Speed:      e.Clock.Speed(),
			Paused:     e.Clock.Paused(),
			GameOver:   over,
			GameOverBy: why,
			Credits:    e.Ledger.TotalCredits(),
			Tier:       tier,
			TierName:   reputation.Lookup(tier).Name,
		})
	})

	Handle(mux, rr, "POST /api/speed", "set time speed", `{"speed":10}`, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Speed int `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := e.SetSpeed(body.Speed); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"speed": body.Speed})
	})

	Handle(mux, rr, "POST /api/pause", "pause the clock", "", func(w http.ResponseWriter, r *http.Request) {
		e.Pause()
		writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
	})

	Handle(mux, rr, "POST /api/resume", "resume the clock", "", func(w http.ResponseWriter, r *http.Request) {
		if err := e.Resume(); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"paused": false})
	})

	Handle(mux, rr, "POST /api/save", "save into a named slot", `{"slot":"before-heist"}`, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Slot string `json:"slot"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := e.SaveGame(body.Slot); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"slot": body.Slot})
	})

	Handle(mux, rr, "POST /api/load", "load a named slot", `{"slot":"before-heist"}`, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Slot string `json:"slot"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := e.LoadGame(body.Slot); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"slot": body.Slot})
	})

	Handle(mux, rr, "GET /api/slots", "list save slots", "", func(w http.ResponseWriter, r *http.Request) {
		slots, err := e.Slots()
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"slots": slots})
	})

	Handle(mux, rr, "GET /api/missions", "mission board", "", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"available": e.Missions.Available(),
			"active":    e.Missions.Active(),
			"history":   e.Missions.History(),
		})
	})

	Handle(mux, rr, "POST /api/missions/accept", "accept a mission", `{"missionId":"msn-intro"}`, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			MissionID string `json:"missionId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := e.AcceptMission(body.MissionID); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"missionId": body.MissionID})
	})

	Handle(mux, rr, "POST /api/missions/abandon", "fail the active mission", "", func(w http.ResponseWriter, r *http.Request) {
		if err := e.AbandonMission(); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"abandoned": true})
	})

	Handle(mux, rr, "GET /api/bank", "accounts, transactions, cheques", "", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"accounts":     e.Ledger.Accounts(),
			"transactions": e.Ledger.Transactions(),
			"cheques":      e.Ledger.Cheques(),
			"total":        e.Ledger.TotalCredits(),
		})
	})

	Handle(mux, rr, "POST /api/bank/cheques/{id}/deposit", "deposit a cheque", "", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := e.DepositCheque(id); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"chequeId": id, "total": e.Ledger.TotalCredits()})
	})

	Handle(mux, rr, "GET /api/messages", "mailbox", "", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"messages": e.Messages()})
	})

	Handle(mux, rr, "POST /api/messages/{id}/read", "mark a message read", "", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := e.ReadMessage(id); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"messageId": id})
	})

	Handle(mux, rr, "GET /api/network", "address register and connections", "", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, e.Network.Snapshot())
	})

	Handle(mux, rr, "POST /api/network/connect", "connect to an address", `{"address":"10.44.0.9"}`, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Address string `json:"address"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := e.Network.Connect(body.Address); err != nil {
			writeError(w, http.StatusForbidden, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"address": body.Address})
	})

	Handle(mux, rr, "POST /api/network/disconnect", "disconnect from an address", `{"address":"10.44.0.9"}`, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Address string `json:"address"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		e.Network.Disconnect(body.Address)
		writeJSON(w, http.StatusOK, map[string]string{"address": body.Address})
	})

	Handle(mux, rr, "POST /api/downloads", "start a bandwidth-shared download", `{"sizeMB":120}`, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			SizeMB float64 `json:"sizeMB"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if body.SizeMB <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("sizeMB must be positive"))
			return
		}
		id, eta, err := e.StartDownload(body.SizeMB)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"operationId": id, "estimatedMs": eta})
	})

	Handle(mux, rr, "GET /api/downloads", "in-flight bandwidth operations", "", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"active":           e.Bandwidth.Active(),
			"transferSpeedMBs": e.Bandwidth.TransferSpeedMBps(),
		})
	})

	Handle(mux, rr, "GET /api/events", "recent event history", "", func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if q := r.URL.Query().Get("limit"); q != "" {
			n, err := strconv.Atoi(q)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			limit = n
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": e.Bus.History(limit)})
	})

	Handle(mux, rr, "GET /api/stats", "session stats from event history", "", func(w http.ResponseWriter, r *http.Request) {
		since := time.Time{}
		if q := r.URL.Query().Get("since"); q != "" {
			parsed, err := time.Parse(time.RFC3339, q)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			since = parsed
		}
		writeJSON(w, http.StatusOK, telemetry.CalculateStats(e.Bus.History(0), since))
	})

	Handle(mux, rr, "POST /api/windows", "persist UI window layout", `{"windows":[{"id":"bank","x":40,"y":40,"w":640,"h":480,"open":true}]}`, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Windows []save.Window `json:"windows"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		e.SetWindows(body.Windows)
		writeJSON(w, http.StatusOK, map[string]int{"count": len(body.Windows)})
	})

	Handle(mux, rr, "POST /api/debug/scenario", "force live state for testing", `{"credits":-10500,"tier":2}`, func(w http.ResponseWriter, r *http.Request) {
		var sc game.Scenario
		if err := json.NewDecoder(r.Body).Decode(&sc); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := e.ApplyScenario(sc); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"applied": true})
	})
}
