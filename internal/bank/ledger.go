package bank

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aabaaiaaa/SourceNet-sub005/internal/sim"
)

// TransactionType is the direction of a ledger entry.
type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Account is a player bank account. Balance may go negative (overdraft).
type Account struct {
	ID       string `json:"id"`
	BankName string `json:"bankName"`
	Balance  int    `json:"balance"`
}

// Transaction is an immutable, append-only ledger entry.
type Transaction struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"accountId"`
	Timestamp    time.Time       `json:"timestamp"`
	Type         TransactionType `json:"type"`
	Amount       int             `json:"amount"`
	Description  string          `json:"description"`
	BalanceAfter int             `json:"balanceAfter"`
}

// Cheque is a depositable credit note. Depositing is idempotent: once
// Deposited is set, further deposit attempts produce no second credit.
type Cheque struct {
	ID          string `json:"id"`
	AccountID   string `json:"accountId"`
	Amount      int    `json:"amount"`
	Description string `json:"description"`
	Deposited   bool   `json:"deposited"`
}

// Archive receives every appended transaction for durable bookkeeping. The
// sqlite implementation lives in archive_sqlite.go; a nil archive disables
// archiving.
type Archive interface {
	RecordTransaction(tx Transaction) error
}

// Notice is a banking notification the engine forwards to the player's
// mailbox. Message text is catalogue content and lives outside the core.
type Notice struct {
	Type    MessageType
	Balance int
}

var (
	ErrUnknownAccount  = errors.New("unknown account")
	ErrUnknownCheque   = errors.New("unknown cheque")
	ErrChequeDeposited = errors.New("cheque already deposited")
)

// Ledger owns all banking state: accounts, the transaction history, cheques,
// the bankruptcy countdown, per-message sent flags, and the interest
// high-water mark. Balances are mutated only through its operations so the
// history stays consistent with balance changes.
type Ledger struct {
	mu           sync.Mutex
	accounts     []Account
	transactions []Transaction
	cheques      map[string]*Cheque
	countdown    *sim.Countdown
	sent         map[MessageType]bool
	lastInterest time.Time
	prevTotal    int
	thresholds   Thresholds

	archive Archive
	logger  *log.Logger
}

// NewLedger builds a ledger over the seed accounts. A zero Thresholds value
// selects the default ladder.
func NewLedger(accounts []Account, start time.Time, th Thresholds, archive Archive, logger *log.Logger) *Ledger {
	if logger == nil {
		logger = log.Default()
	}
	if th == (Thresholds{}) {
		th = DefaultThresholds()
	}
	l := &Ledger{
		accounts:     append([]Account(nil), accounts...),
		cheques:      make(map[string]*Cheque),
		sent:         make(map[MessageType]bool),
		lastInterest: start,
		thresholds:   th,
		archive:      archive,
		logger:       logger,
	}
	l.prevTotal = l.totalLocked()
	return l
}

// TotalCredits is the sum across all accounts.
func (l *Ledger) TotalCredits() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalLocked()
}

func (l *Ledger) totalLocked() int {
	total := 0
	for _, a := range l.accounts {
		total += a.Balance
	}
	return total
}

// Accounts returns a copy of the account list.
func (l *Ledger) Accounts() []Account {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Account(nil), l.accounts...)
}

// Transactions returns a copy of the append-only history.
func (l *Ledger) Transactions() []Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Transaction(nil), l.transactions...)
}

// Countdown returns the active bankruptcy countdown, or nil.
func (l *Ledger) Countdown() *sim.Countdown {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.countdown == nil {
		return nil
	}
	c := *l.countdown
	return &c
}

func (l *Ledger) findLocked(accountID string) *Account {
	for i := range l.accounts {
		if l.accounts[i].ID == accountID {
			return &l.accounts[i]
		}
	}
	return nil
}

func (l *Ledger) appendLocked(acct *Account, now time.Time, typ TransactionType, amount int, desc string) {
	tx := Transaction{
		ID:           uuid.NewString(),
		AccountID:    acct.ID,
		Timestamp:    now,
		Type:         typ,
		Amount:       amount,
		Description:  desc,
		BalanceAfter: acct.Balance,
	}
	l.transactions = append(l.transactions, tx)
	if l.archive != nil {
		if err := l.archive.RecordTransaction(tx); err != nil {
			l.logger.Printf("ledger archive: %v", err)
		}
	}
}

// Deposit credits amount to an account and appends an Income entry.
func (l *Ledger) Deposit(accountID string, amount int, desc string, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct := l.findLocked(accountID)
	if acct == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, accountID)
	}
	acct.Balance += amount
	l.appendLocked(acct, now, Income, amount, desc)
	return nil
}

// Charge debits amount from an account (overdraft allowed) and appends an
// Expense entry.
func (l *Ledger) Charge(accountID string, amount int, desc string, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct := l.findLocked(accountID)
	if acct == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, accountID)
	}
	acct.Balance -= amount
	l.appendLocked(acct, now, Expense, amount, desc)
	return nil
}

// AddCheque registers a depositable cheque addressed to an account.
func (l *Ledger) AddCheque(c Cheque) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cheque := c
	l.cheques[c.ID] = &cheque
}

// Cheques returns a copy of all known cheques.
func (l *Ledger) Cheques() []Cheque {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Cheque, 0, len(l.cheques))
	for _, c := range l.cheques {
		out = append(out, *c)
	}
	return out
}

// DepositCheque credits the cheque amount exactly once. Double-triggering
// returns ErrChequeDeposited and produces no second credit.
func (l *Ledger) DepositCheque(chequeID string, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.cheques[chequeID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCheque, chequeID)
	}
	if c.Deposited {
		return ErrChequeDeposited
	}
	acct := l.findLocked(c.AccountID)
	if acct == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, c.AccountID)
	}
	c.Deposited = true
	acct.Balance += c.Amount
	l.appendLocked(acct, now, Income, c.Amount, c.Description)
	return nil
}

// TickResult is what one simulated tick of banking produced.
type TickResult struct {
	Notices      []Notice
	InterestPaid int
	Bankrupt     bool
}

// Tick runs the per-tick banking pipeline against the simulated now:
// interest for each fully elapsed minute, then countdown lifecycle, then
// notification classification. Bankruptcy detection deliberately reads the
// post-interest balance.
func (l *Ledger) Tick(now time.Time) TickResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	var res TickResult

	// Crossings are judged against the previous tick's total so deposits
	// and charges made between ticks still register.
	oldTotal := l.prevTotal

	// Interest accrues once per whole elapsed simulated minute, charged to
	// the primary account. Several minutes can elapse in one tick right
	// after a load.
	for !l.lastInterest.Add(time.Minute).After(now) {
		l.lastInterest = l.lastInterest.Add(time.Minute)
		interest := CalculateInterest(l.totalLocked())
		if interest < 0 && len(l.accounts) > 0 {
			acct := &l.accounts[0]
			acct.Balance += interest
			l.appendLocked(acct, l.lastInterest, Expense, -interest, "overdraft interest")
			res.InterestPaid += -interest
		}
	}

	newTotal := l.totalLocked()

	countdownActive := l.countdown != nil
	if countdownActive {
		updated, status := l.thresholds.UpdateCountdown(l.countdown, now, newTotal)
		l.countdown = updated
		switch status {
		case CountdownExpired:
			res.Bankrupt = true
		case CountdownCancelled:
			if notice := l.classifyLocked(newTotal, oldTotal, true); notice != MessageNone {
				res.Notices = append(res.Notices, Notice{Type: notice, Balance: newTotal})
			}
			l.resetFlagsLocked(newTotal)
			l.prevTotal = newTotal
			return res
		}
	}

	if notice := l.classifyLocked(newTotal, oldTotal, countdownActive); notice != MessageNone {
		res.Notices = append(res.Notices, Notice{Type: notice, Balance: newTotal})
		if notice == MessageBankruptcyCountdown {
			l.countdown = l.thresholds.StartCountdown(now)
		}
	}
	l.resetFlagsLocked(newTotal)
	l.prevTotal = newTotal
	return res
}

// classifyLocked applies the pure classifier plus the at-most-once-per-
// crossing discipline.
func (l *Ledger) classifyLocked(newTotal, oldTotal int, countdownActive bool) MessageType {
	msg := l.thresholds.MessageFor(newTotal, oldTotal, countdownActive)
	if msg == MessageNone || l.sent[msg] {
		return MessageNone
	}
	l.sent[msg] = true
	return msg
}

// resetFlagsLocked re-arms notifications once the balance recovers past the
// corresponding threshold, so the next crossing fires again.
func (l *Ledger) resetFlagsLocked(total int) {
	if total >= 0 {
		delete(l.sent, MessageFirstOverdraft)
	}
	if total >= l.thresholds.OverdraftWarning {
		delete(l.sent, MessageApproachingBankrupt)
	}
	if !l.thresholds.ShouldTriggerBankruptcy(total) {
		delete(l.sent, MessageBankruptcyCountdown)
	}
	if l.countdown != nil {
		delete(l.sent, MessageBankruptcyCancelled)
	}
}

// State is the serializable banking snapshot.
type State struct {
	Accounts             []Account     `json:"accounts"`
	Transactions         []Transaction `json:"transactions"`
	Cheques              []Cheque      `json:"cheques"`
	CountdownRemainingMs *int64        `json:"countdownRemainingMs,omitempty"`
	SentFlags            []MessageType `json:"sentFlags"`
	LastInterestAt       time.Time     `json:"lastInterestAt"`
}

// Snapshot captures the full banking state for a save.
func (l *Ledger) Snapshot(now time.Time) State {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := State{
		Accounts:       append([]Account(nil), l.accounts...),
		Transactions:   append([]Transaction(nil), l.transactions...),
		LastInterestAt: l.lastInterest,
	}
	for _, c := range l.cheques {
		st.Cheques = append(st.Cheques, *c)
	}
	for msg := range l.sent {
		st.SentFlags = append(st.SentFlags, msg)
	}
	if l.countdown != nil {
		c := *l.countdown
		c.Refresh(now)
		ms := int64(c.RemainingSeconds) * 1000
		st.CountdownRemainingMs = &ms
	}
	return st
}

// Restore replaces the banking state from a save, re-anchoring the countdown
// at the simulated time the save is loaded into.
func (l *Ledger) Restore(st State, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.accounts = append([]Account(nil), st.Accounts...)
	l.transactions = append([]Transaction(nil), st.Transactions...)
	l.cheques = make(map[string]*Cheque)
	for _, c := range st.Cheques {
		cheque := c
		l.cheques[c.ID] = &cheque
	}
	l.sent = make(map[MessageType]bool)
	for _, msg := range st.SentFlags {
		l.sent[msg] = true
	}
	l.lastInterest = st.LastInterestAt
	if l.lastInterest.IsZero() {
		l.lastInterest = now
	}
	l.countdown = nil
	if st.CountdownRemainingMs != nil {
		l.countdown = sim.RestoreCountdown(now, time.Duration(*st.CountdownRemainingMs)*time.Millisecond)
	}
	l.prevTotal = l.totalLocked()
}
