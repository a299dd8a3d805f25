package bank

import (
	"math"
	"time"

	"github.com/aabaaiaaa/SourceNet-sub005/internal/sim"
)

// Threshold constants for the overdraft/bankruptcy ladder, in credits.
const (
	OverdraftWarningBalance = -8000
	BankruptcyBalance       = -10000
)

// Overdraft interest rate applied once per elapsed simulated minute.
const interestRate = 0.01

// BankruptcyWindow is how long the player has to recover once the balance
// crosses BankruptcyBalance.
const BankruptcyWindow = 5 * time.Minute

// CalculateInterest returns the per-minute interest charge for a balance.
// Non-negative balances accrue nothing; negative balances are charged 1%,
// floored, so the result is itself negative (e.g. -9000 yields -90).
func CalculateInterest(balance int) int {
	if balance >= 0 {
		return 0
	}
	return int(math.Floor(float64(balance) * interestRate))
}

// Thresholds is the overdraft/bankruptcy ladder a ledger runs against. The
// package constants above are the shipped defaults; config may override
// every rung.
type Thresholds struct {
	OverdraftWarning int
	Bankruptcy       int
	Window           time.Duration
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		OverdraftWarning: OverdraftWarningBalance,
		Bankruptcy:       BankruptcyBalance,
		Window:           BankruptcyWindow,
	}
}

// ShouldTriggerBankruptcy reports whether the balance is past the bankruptcy
// threshold. A balance exactly at the threshold is still safe.
func (th Thresholds) ShouldTriggerBankruptcy(balance int) bool {
	return balance < th.Bankruptcy
}

// StartCountdown arms the recovery window.
func (th Thresholds) StartCountdown(now time.Time) *sim.Countdown {
	return sim.NewCountdown(now, th.Window)
}

// ShouldTriggerBankruptcy applies the default ladder. Exactly -10000 is
// still safe.
func ShouldTriggerBankruptcy(balance int) bool {
	return DefaultThresholds().ShouldTriggerBankruptcy(balance)
}

// StartBankruptcyCountdown arms the default 5-simulated-minute window.
func StartBankruptcyCountdown(now time.Time) *sim.Countdown {
	return DefaultThresholds().StartCountdown(now)
}

// CountdownStatus is the outcome of a per-tick countdown update.
type CountdownStatus int

const (
	CountdownRunning CountdownStatus = iota
	CountdownCancelled
	CountdownExpired
)

// UpdateCountdown refreshes the countdown against the simulated now.
// Recovery above the threshold cancels it; a fully elapsed window expires
// it (terminal). In both cases the returned countdown is nil.
func (th Thresholds) UpdateCountdown(c *sim.Countdown, now time.Time, balance int) (*sim.Countdown, CountdownStatus) {
	if c == nil {
		return nil, CountdownCancelled
	}
	if !th.ShouldTriggerBankruptcy(balance) {
		return nil, CountdownCancelled
	}
	c.Refresh(now)
	if c.RemainingSeconds <= 0 {
		return nil, CountdownExpired
	}
	return c, CountdownRunning
}

// UpdateBankruptcyCountdown applies the default ladder.
func UpdateBankruptcyCountdown(c *sim.Countdown, now time.Time, balance int) (*sim.Countdown, CountdownStatus) {
	return DefaultThresholds().UpdateCountdown(c, now, balance)
}

// MessageType classifies a balance transition into the banking notification
// it should produce. Each type fires at most once per threshold crossing;
// the Ledger keeps the sent flags and resets them on recovery.
type MessageType string

const (
	MessageNone                MessageType = ""
	MessageFirstOverdraft      MessageType = "firstOverdraft"
	MessageApproachingBankrupt MessageType = "approachingBankruptcy"
	MessageBankruptcyCountdown MessageType = "bankruptcyCountdownStart"
	MessageBankruptcyCancelled MessageType = "bankruptcyCancelled"
)

// MessageFor is a pure transition classifier over the old and new total
// balance plus countdown presence.
func (th Thresholds) MessageFor(newBalance, oldBalance int, countdownActive bool) MessageType {
	switch {
	case th.ShouldTriggerBankruptcy(newBalance) && !countdownActive:
		return MessageBankruptcyCountdown
	case !th.ShouldTriggerBankruptcy(newBalance) && countdownActive:
		return MessageBankruptcyCancelled
	case newBalance < th.OverdraftWarning && oldBalance >= th.OverdraftWarning:
		return MessageApproachingBankrupt
	case newBalance < 0 && oldBalance >= 0:
		return MessageFirstOverdraft
	default:
		return MessageNone
	}
}

// MessageFor applies the default ladder.
func MessageFor(newBalance, oldBalance int, countdownActive bool) MessageType {
	return DefaultThresholds().MessageFor(newBalance, oldBalance, countdownActive)
}
