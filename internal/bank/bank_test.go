package bank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var tickEpoch = time.Date(2087, 3, 14, 9, 0, 0, 0, time.UTC)

func TestCalculateInterest(t *testing.T) {
	assert.Equal(t, 0, CalculateInterest(0))
	assert.Equal(t, 0, CalculateInterest(5000))
	assert.Equal(t, -90, CalculateInterest(-9000))
	assert.Equal(t, -91, CalculateInterest(-9050))
	assert.Equal(t, -1, CalculateInterest(-1))
}

func TestShouldTriggerBankruptcy(t *testing.T) {
	assert.False(t, ShouldTriggerBankruptcy(-10000))
	assert.True(t, ShouldTriggerBankruptcy(-10001))
	assert.False(t, ShouldTriggerBankruptcy(0))
}

func TestBankruptcyCountdownLifecycle(t *testing.T) {
	c := StartBankruptcyCountdown(tickEpoch)
	assert.Equal(t, 300, c.RemainingSeconds)

	c, status := UpdateBankruptcyCountdown(c, tickEpoch.Add(100*time.Second), -12000)
	assert.Equal(t, CountdownRunning, status)
	assert.Equal(t, 200, c.RemainingSeconds)

	// Recovery above the threshold cancels, not expires.
	c, status = UpdateBankruptcyCountdown(c, tickEpoch.Add(150*time.Second), -9000)
	assert.Nil(t, c)
	assert.Equal(t, CountdownCancelled, status)

	c = StartBankruptcyCountdown(tickEpoch)
	c, status = UpdateBankruptcyCountdown(c, tickEpoch.Add(5*time.Minute), -12000)
	assert.Nil(t, c)
	assert.Equal(t, CountdownExpired, status)
}

func TestMessageFor_TransitionTable(t *testing.T) {
	cases := []struct {
		name      string
		newBal    int
		oldBal    int
		countdown bool
		want      MessageType
	}{
		{"crossing zero downward", -50, 100, false, MessageFirstOverdraft},
		{"already overdrawn", -200, -50, false, MessageNone},
		{"crossing warning threshold", -8100, -7900, false, MessageApproachingBankrupt},
		{"crossing bankruptcy threshold", -10500, -9900, false, MessageBankruptcyCountdown},
		{"recovering with countdown active", -9500, -10500, true, MessageBankruptcyCancelled},
		{"recovering with no countdown", -9500, -10500, false, MessageNone},
		{"deep dive with countdown already armed", -12000, -11000, true, MessageNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MessageFor(tc.newBal, tc.oldBal, tc.countdown))
		})
	}
}

func newTestLedger(balance int) *Ledger {
	return NewLedger([]Account{{ID: "acct-1", BankName: "First Galactic", Balance: balance}}, tickEpoch, Thresholds{}, nil, nil)
}

func TestDepositCheque_Idempotent(t *testing.T) {
	l := newTestLedger(500)
	l.AddCheque(Cheque{ID: "chq-1", AccountID: "acct-1", Amount: 1000, Description: "signing bonus"})

	assert.NoError(t, l.DepositCheque("chq-1", tickEpoch))
	assert.Equal(t, 1500, l.TotalCredits())

	txs := l.Transactions()
	assert.Len(t, txs, 1)
	assert.Equal(t, Income, txs[0].Type)
	assert.Equal(t, 1000, txs[0].Amount)
	assert.Equal(t, 1500, txs[0].BalanceAfter)

	// Double-triggering must produce no second credit.
	assert.ErrorIs(t, l.DepositCheque("chq-1", tickEpoch), ErrChequeDeposited)
	assert.Equal(t, 1500, l.TotalCredits())
	assert.Len(t, l.Transactions(), 1)
}

func TestTick_InterestPerElapsedMinute(t *testing.T) {
	l := newTestLedger(-9000)

	// Under a minute: nothing accrues.
	res := l.Tick(tickEpoch.Add(30 * time.Second))
	assert.Equal(t, 0, res.InterestPaid)

	// First minute boundary: 1% of -9000.
	res = l.Tick(tickEpoch.Add(61 * time.Second))
	assert.Equal(t, 90, res.InterestPaid)
	assert.Equal(t, -9090, l.TotalCredits())

	// Two minutes elapse in one tick (e.g. right after a load): both accrue.
	res = l.Tick(tickEpoch.Add(3*time.Minute + 5*time.Second))
	assert.Equal(t, 91+92, res.InterestPaid)
}

func TestTick_BankruptcyCountdownStartExpireAndAbsorb(t *testing.T) {
	l := newTestLedger(-9950)
	l.Charge("acct-1", 200, "hardware lease", tickEpoch)

	res := l.Tick(tickEpoch.Add(time.Second))
	assert.Len(t, res.Notices, 1)
	assert.Equal(t, MessageBankruptcyCountdown, res.Notices[0].Type)
	assert.NotNil(t, l.Countdown())
	assert.Equal(t, 300, l.Countdown().RemainingSeconds)

	// Same crossing must not notify twice.
	res = l.Tick(tickEpoch.Add(2 * time.Second))
	assert.Empty(t, res.Notices)
	assert.False(t, res.Bankrupt)

	res = l.Tick(tickEpoch.Add(time.Second + BankruptcyWindow))
	assert.True(t, res.Bankrupt)
}

func TestTick_ConfiguredThresholdsDriveCountdown(t *testing.T) {
	th := Thresholds{OverdraftWarning: -300, Bankruptcy: -500, Window: 10 * time.Second}
	l := NewLedger([]Account{{ID: "acct-1", BankName: "First Galactic", Balance: 0}}, tickEpoch, th, nil, nil)

	l.Charge("acct-1", 600, "hardware lease", tickEpoch)
	res := l.Tick(tickEpoch.Add(time.Second))
	assert.Len(t, res.Notices, 1)
	assert.Equal(t, MessageBankruptcyCountdown, res.Notices[0].Type)
	assert.NotNil(t, l.Countdown())
	assert.Equal(t, 10, l.Countdown().RemainingSeconds)

	res = l.Tick(tickEpoch.Add(time.Second + 10*time.Second))
	assert.True(t, res.Bankrupt)
}

func TestTick_ConfiguredOverdraftWarning(t *testing.T) {
	th := Thresholds{OverdraftWarning: -300, Bankruptcy: -500, Window: 10 * time.Second}
	l := NewLedger([]Account{{ID: "acct-1", BankName: "First Galactic", Balance: 0}}, tickEpoch, th, nil, nil)

	l.Charge("acct-1", 350, "software licence", tickEpoch)
	res := l.Tick(tickEpoch.Add(time.Second))
	// -350 crosses both zero and the configured -300 warning in one step;
	// the classifier picks the most severe applicable notice.
	assert.Len(t, res.Notices, 1)
	assert.Equal(t, MessageApproachingBankrupt, res.Notices[0].Type)
}

func TestTick_RecoveryCancelsCountdownAndRearmsNotices(t *testing.T) {
	l := newTestLedger(-10500)
	l.Tick(tickEpoch.Add(time.Second))
	assert.NotNil(t, l.Countdown())

	l.Deposit("acct-1", 2000, "client payout", tickEpoch.Add(2*time.Second))
	res := l.Tick(tickEpoch.Add(3 * time.Second))
	assert.Nil(t, l.Countdown())
	assert.Len(t, res.Notices, 1)
	assert.Equal(t, MessageBankruptcyCancelled, res.Notices[0].Type)

	// Cross again: the start notice fires again after the reset.
	l.Charge("acct-1", 2000, "fine", tickEpoch.Add(4*time.Second))
	res = l.Tick(tickEpoch.Add(5 * time.Second))
	assert.Len(t, res.Notices, 1)
	assert.Equal(t, MessageBankruptcyCountdown, res.Notices[0].Type)
}

func TestSnapshotRestore_CountdownAsRemainingDuration(t *testing.T) {
	l := newTestLedger(-10500)
	l.Tick(tickEpoch.Add(time.Second))

	// Let two simulated minutes pass: 300s window minus 120s -> 180s left.
	snapTime := tickEpoch.Add(time.Second + 120*time.Second)
	l.Tick(snapTime)
	st := l.Snapshot(snapTime)
	assert.NotNil(t, st.CountdownRemainingMs)
	assert.Equal(t, int64(180_000), *st.CountdownRemainingMs)

	// Reload at an unrelated simulated time: countdown re-anchors there.
	loadedAt := tickEpoch.Add(90 * 24 * time.Hour)
	restored := NewLedger(nil, loadedAt, Thresholds{}, nil, nil)
	restored.Restore(st, loadedAt)
	c := restored.Countdown()
	assert.NotNil(t, c)
	assert.Equal(t, 180, c.RemainingSeconds)
	assert.Equal(t, l.TotalCredits(), restored.TotalCredits())
	assert.Len(t, restored.Transactions(), len(l.Transactions()))
}

func TestRestore_DefaultsMissingFields(t *testing.T) {
	loadedAt := tickEpoch.Add(time.Hour)
	l := NewLedger(nil, loadedAt, Thresholds{}, nil, nil)
	l.Restore(State{Accounts: []Account{{ID: "acct-1", Balance: 100}}}, loadedAt)

	assert.Nil(t, l.Countdown())
	assert.Empty(t, l.Transactions())
	assert.Empty(t, l.Cheques())

	// A fresh interest mark: no instant back-charges on the next tick.
	res := l.Tick(loadedAt.Add(time.Second))
	assert.Equal(t, 0, res.InterestPaid)
}

func TestSQLiteArchive_RoundTrip(t *testing.T) {
	path := t.TempDir() + "/ledger.sqlite"
	archive, err := OpenSQLiteArchive(path)
	assert.NoError(t, err)
	defer archive.Close()

	l := NewLedger([]Account{{ID: "acct-1", BankName: "First Galactic", Balance: 0}}, tickEpoch, Thresholds{}, archive, nil)
	assert.NoError(t, l.Deposit("acct-1", 250, "mission payout", tickEpoch))
	assert.NoError(t, l.Charge("acct-1", 100, "software licence", tickEpoch.Add(time.Second)))

	rows, err := archive.TransactionsFor("acct-1")
	assert.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, 250, rows[0].Amount)
	assert.Equal(t, 150, rows[1].BalanceAfter)
}
