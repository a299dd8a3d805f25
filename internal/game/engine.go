package game

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aabaaiaaa/SourceNet-sub005/internal/bank"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/config"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/event"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/mission"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/netops"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/reputation"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/save"
	"github.com/aabaaiaaa/SourceNet-sub005/internal/sim"
)

// Game-over reasons. Once either fires the engine stops mutating state.
const (
	GameOverBankruptcy  = "bankruptcy"
	GameOverTermination = "termination"
)

var ErrGameOver = errors.New("game is over")

// GameOverPayload rides the gameOver bus event.
type GameOverPayload struct {
	Reason string `json:"reason"`
}

// BalancePayload rides bankBalanceChanged.
type BalancePayload struct {
	Total  int              `json:"total"`
	Notice bank.MessageType `json:"notice,omitempty"`
}

// Message is one entry in the player's mailbox. Notification messages are
// generated by the tick pipeline; each threshold crossing produces at most
// one message until the condition reverses.
type Message struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Subject        string    `json:"subject"`
	ReceivedAtGame time.Time `json:"receivedAtGame"`
	Read           bool      `json:"read"`
}

// Options wires an Engine. Store may be nil for scenarios that never save.
type Options struct {
	Config   *config.Config
	PlayerID string
	Store    *save.Store
	Archive  bank.Archive
	Logger   *log.Logger
}

// Engine owns the simulation: the game clock drives a fixed tick pipeline
// (interest, bankruptcy countdown, reputation countdown, bandwidth) and the
// event bus carries everything else. One mutex guards the engine-level
// state; subsystems do their own locking.
type Engine struct {
	Bus        *event.Bus
	Clock      *sim.GameClock
	Scheduler  *sim.Scheduler
	Ledger     *bank.Ledger
	Reputation *reputation.Tracker
	Missions   *mission.Tracker
	Network    *netops.Register
	Bandwidth  *netops.Manager

	cfg    *config.Config
	store  *save.Store
	logger *log.Logger

	mu          sync.Mutex
	playerID    string
	gameOver    bool
	gameOverWhy string
	messages    []Message
	windows     []save.Window
}

func New(opts Options) (*Engine, error) {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.PlayerID == "" {
		opts.PlayerID = "player-1"
	}

	start, err := opts.Config.Game.Start()
	if err != nil {
		return nil, err
	}

	bus := event.NewBus(opts.Logger)
	scheduler := sim.NewScheduler(sim.RealClock{})
	clock := sim.NewGameClock(start, scheduler, opts.Config.Game.AllowedSpeeds)

	e := &Engine{
		Bus:       bus,
		Clock:     clock,
		Scheduler: scheduler,
		Network:   netops.NewRegister(bus),
		Bandwidth: netops.NewManager(opts.Config.Network.AdapterMbps, opts.Config.Network.ConnectionMbps),
		cfg:       opts.Config,
		store:     opts.Store,
		logger:    opts.Logger,
		playerID:  opts.PlayerID,
	}

	thresholds := bank.Thresholds{
		OverdraftWarning: opts.Config.Bank.OverdraftWarningBalance,
		Bankruptcy:       opts.Config.Bank.BankruptcyBalance,
		Window:           time.Duration(opts.Config.Bank.BankruptcyWindowS) * time.Second,
	}
	e.Ledger = bank.NewLedger(seedAccounts(opts.Config.Bank.StartingBalance), start, thresholds, opts.Archive, opts.Logger)
	e.Reputation = reputation.NewTracker(opts.Config.Reputation.StartingTier,
		time.Duration(opts.Config.Reputation.TerminationWindowS)*time.Second)
	e.Missions = mission.NewTracker(mission.Options{
		Bus:         bus,
		Scheduler:   scheduler,
		Speed:       clock.Speed,
		GameNow:     clock.Now,
		VerifyDelay: time.Duration(opts.Config.Game.VerifyDelayMs) * time.Millisecond,
		Finalize:    e.finalizeMission,
		Logger:      opts.Logger,
	})

	clock.OnTick(e.tick)
	clock.OnSpeedChange(func(speed int) {
		bus.Emit(event.SpeedChanged, speed)
	})

	e.seedContent()
	return e, nil
}

func seedAccounts(startingBalance int) []bank.Account {
	return []bank.Account{
		{ID: "acct-main", BankName: "Meridian First Digital", Balance: startingBalance},
	}
}

// seedContent installs the new-game content: the tutorial mission and its
// network grant sitting in the register unauthorized until accepted.
func (e *Engine) seedContent() {
	e.Missions.AddAvailable(mission.Mission{
		ID:         "msn-intro",
		Title:      "Routine file retrieval",
		ClientType: "individual",
		BasePayout: 800,
		Objectives: []mission.Objective{
			{ID: "obj-1", Type: mission.ObjectiveConnect, Target: "10.44.0.9"},
			{ID: "obj-2", Type: mission.ObjectiveFileOperation, Target: "payroll.db"},
		},
		Network: mission.NetworkGrant{Address: "10.44.0.9", RevokeOnComplete: true},
		Status:  mission.MissionAvailable,
	})
}

// Begin moves the player to the desktop and starts the clock.
func (e *Engine) Begin() {
	e.Clock.EnterScreen(sim.ScreenDesktop)
}

func (e *Engine) Stop() {
	e.Clock.Stop()
	e.Scheduler.CancelAll()
	e.Missions.Close()
}

// tick is the single clock callback: a fixed pipeline so every subsystem
// reads the same simulated now. Order matters: interest posts before the
// bankruptcy check reads the balance.
func (e *Engine) tick(now time.Time) {
	e.mu.Lock()
	if e.gameOver {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	res := e.Ledger.Tick(now)
	for _, n := range res.Notices {
		e.pushMessage(now, string(n.Type), bankSubject(n.Type))
		e.Bus.Emit(event.BankBalanceChanged, BalancePayload{Total: n.Balance, Notice: n.Type})
	}
	if res.InterestPaid > 0 {
		e.Bus.Emit(event.BankBalanceChanged, BalancePayload{Total: e.Ledger.TotalCredits()})
	}
	if res.Bankrupt {
		e.endGame(GameOverBankruptcy)
		return
	}

	warning, terminated := e.Reputation.Tick(now)
	if warning != reputation.WarningNone {
		e.pushMessage(now, string(warning), reputationSubject(warning))
	}
	if terminated {
		e.endGame(GameOverTermination)
		return
	}

	for _, op := range e.Bandwidth.Tick(now) {
		e.Bus.Emit(event.DownloadComplete, event.FileOperationPayload{Target: op.ID})
	}
}

func (e *Engine) endGame(reason string) {
	e.mu.Lock()
	if e.gameOver {
		e.mu.Unlock()
		return
	}
	e.gameOver = true
	e.gameOverWhy = reason
	e.mu.Unlock()

	e.logger.Printf("game over: %s", reason)
	e.Clock.Pause()
	e.Scheduler.CancelAll()
	e.Bus.Emit(event.GameOver, GameOverPayload{Reason: reason})
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// GameOver reports whether the run has ended and why.
func (e *Engine) GameOver() (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gameOver, e.gameOverWhy
}

func (e *Engine) guard() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gameOver {
		return ErrGameOver
	}
	return nil
}

// finalizeMission applies the completion side effects: the payout cheque at
// the current tier's multiplier, the reputation step, and the network grant
// revocation for missions flagged revokeOnComplete.
func (e *Engine) finalizeMission(out mission.Outcome) {
	now := e.Clock.Now()

	if out.Success {
		amount := reputation.Payout(out.Mission.BasePayout, e.Reputation.Tier())
		e.Ledger.AddCheque(bank.Cheque{
			ID:          "chq-" + out.Mission.ID,
			AccountID:   primaryAccount(e.Ledger),
			Amount:      amount,
			Description: "Payment: " + out.Mission.Title,
		})
		e.pushMessage(now, "missionPayment", "Payment cheque attached: "+out.Mission.Title)
	}

	warning := e.Reputation.ApplyOutcome(out.Success, now)
	if warning != reputation.WarningNone {
		e.pushMessage(now, string(warning), reputationSubject(warning))
	}

	if out.Mission.Network.RevokeOnComplete && out.Mission.Network.Address != "" {
		e.Network.Revoke(out.Mission.Network.Address)
	}
}

func primaryAccount(l *bank.Ledger) string {
	accts := l.Accounts()
	if len(accts) == 0 {
		return ""
	}
	return accts[0].ID
}

// AcceptMission activates the mission and authorizes its network grant.
func (e *Engine) AcceptMission(missionID string) error {
	if err := e.guard(); err != nil {
		return err
	}
	var grant mission.NetworkGrant
	for _, m := range e.Missions.Available() {
		if m.ID == missionID {
			grant = m.Network
		}
	}
	if err := e.Missions.Accept(missionID); err != nil {
		return err
	}
	if grant.Address != "" {
		e.Network.Grant(grant.Address, "mission access")
	}
	return nil
}

// AbandonMission fails the active mission outright.
func (e *Engine) AbandonMission() error {
	if err := e.guard(); err != nil {
		return err
	}
	return e.Missions.FailActive()
}

func (e *Engine) DepositCheque(chequeID string) error {
	if err := e.guard(); err != nil {
		return err
	}
	return e.Ledger.DepositCheque(chequeID, e.Clock.Now())
}

// StartDownload registers a bandwidth operation; completion surfaces later
// as a downloadComplete event carrying the operation id.
func (e *Engine) StartDownload(sizeMB float64) (string, int64, error) {
	if err := e.guard(); err != nil {
		return "", 0, err
	}
	id, eta := e.Bandwidth.RegisterOperation(netops.OpDownload, sizeMB, e.Clock.Now())
	return id, eta, nil
}

func (e *Engine) SetSpeed(speed int) error {
	if err := e.guard(); err != nil {
		return err
	}
	return e.Clock.SetSpeed(speed)
}

func (e *Engine) Pause() {
	e.Clock.Pause()
}

func (e *Engine) Resume() error {
	if err := e.guard(); err != nil {
		return err
	}
	e.Clock.Resume()
	return nil
}

func (e *Engine) pushMessage(now time.Time, typ, subject string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = append(e.messages, Message{
		ID:             uuid.NewString(),
		Type:           typ,
		Subject:        subject,
		ReceivedAtGame: now,
	})
}

func (e *Engine) Messages() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// ReadMessage marks a message read and announces it; scripted missions
// listen for the read to advance.
func (e *Engine) ReadMessage(id string) error {
	e.mu.Lock()
	var found *Message
	for i := range e.messages {
		if e.messages[i].ID == id {
			found = &e.messages[i]
			break
		}
	}
	if found == nil {
		e.mu.Unlock()
		return fmt.Errorf("unknown message %s", id)
	}
	already := found.Read
	found.Read = true
	e.mu.Unlock()

	if !already {
		e.Bus.Emit(event.MessageRead, id)
	}
	return nil
}

// SetWindows stores the UI layout for the next save. Geometry is sanitized
// on load, not here.
func (e *Engine) SetWindows(ws []save.Window) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.windows = append([]save.Window(nil), ws...)
}

func bankSubject(t bank.MessageType) string {
	switch t {
	case bank.MessageFirstOverdraft:
		return "Notice: account overdrawn"
	case bank.MessageApproachingBankrupt:
		return "Warning: approaching bankruptcy threshold"
	case bank.MessageBankruptcyCountdown:
		return "FINAL NOTICE: asset seizure countdown started"
	case bank.MessageBankruptcyCancelled:
		return "Notice: asset seizure cancelled"
	}
	return "Notice from your bank"
}

func reputationSubject(w reputation.Warning) string {
	switch w {
	case reputation.WarningPerformance:
		return "Warning: performance plan"
	case reputation.WarningTermination:
		return "FINAL WARNING: contract termination countdown"
	case reputation.WarningRecovered:
		return "Notice: performance plan lifted"
	}
	return "Notice from the agency"
}
